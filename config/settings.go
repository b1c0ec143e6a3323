package config

import (
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rushteam/prodrec/core"
)

// Settings 是服务配置，来源优先级：命令行 > 环境变量（PRODREC_ 前缀）> 配置文件 > 默认值。
//
//	server:
//	  addr: ":5000"
//	data:
//	  source: file          # file / redis / memory
//	  path: data/ecommerce_data.json
//	redis:
//	  addr: 127.0.0.1:6379
//	recommend:
//	  default_n: 5
//	  collab_weight: 0.7
//	  rebuild_interval: 10m
type Settings struct {
	Server    ServerSettings    `mapstructure:"server"`
	Data      DataSettings      `mapstructure:"data"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Recommend RecommendSettings `mapstructure:"recommend"`
}

type ServerSettings struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

type DataSettings struct {
	Source          string `mapstructure:"source" validate:"oneof=file redis memory"`
	Path            string `mapstructure:"path" validate:"required_unless=Source redis"`
	SnapshotKey     string `mapstructure:"snapshot_key" validate:"required"`
	InteractionsKey string `mapstructure:"interactions_key" validate:"required"`
	PopularKey      string `mapstructure:"popular_key"`
}

type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

type RecommendSettings struct {
	DefaultN        int           `mapstructure:"default_n" validate:"gte=1"`
	CollabWeight    float64       `mapstructure:"collab_weight" validate:"gte=0,lte=1"`
	PoolSize        int           `mapstructure:"pool_size" validate:"gte=0"`
	RebuildInterval time.Duration `mapstructure:"rebuild_interval" validate:"gte=0"`
	Pipeline        string        `mapstructure:"pipeline"`
}

var _ core.RecallConfig = (*Settings)(nil)

func (s *Settings) DefaultTopN() int {
	return s.Recommend.DefaultN
}

func (s *Settings) DefaultCollabWeight() float64 {
	return s.Recommend.CollabWeight
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("data.source", "file")
	v.SetDefault("data.path", "data/ecommerce_data.json")
	v.SetDefault("data.snapshot_key", "prodrec:snapshot")
	v.SetDefault("data.interactions_key", "prodrec:interactions")
	v.SetDefault("data.popular_key", "prodrec:popular")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("recommend.default_n", 5)
	v.SetDefault("recommend.collab_weight", 0.7)
	v.SetDefault("recommend.pool_size", 0)
	v.SetDefault("recommend.rebuild_interval", time.Duration(0))
	v.SetDefault("recommend.pipeline", "")
}

// LoadSettings 读取配置。path 为空时只使用环境变量与默认值；flags 中已设置的
// 同名参数（如 "data.path"）会覆盖其他来源，flags 可为 nil。
func LoadSettings(path string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PRODREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config %s", path)
		}
	}
	if flags != nil {
		flags.VisitAll(func(f *pflag.Flag) {
			if f.Changed && strings.Contains(f.Name, ".") {
				_ = v.BindPFlag(f.Name, f)
			}
		})
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Annotate(err, "decode config")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate 校验配置。
func (s *Settings) Validate() error {
	if err := ValidateStruct(s); err != nil {
		return errors.Annotate(err, "invalid config")
	}
	if s.Data.Source == "redis" && s.Redis.Addr == "" {
		return errors.NotValidf("redis.addr is required when data.source is redis")
	}
	return nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator 返回全局 validator 实例。
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct 按 validate tag 校验结构体。
func ValidateStruct(v any) error {
	return Validator().Struct(v)
}
