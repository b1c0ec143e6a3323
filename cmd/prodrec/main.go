package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushteam/prodrec/config"
	"github.com/rushteam/prodrec/pkg/log"
)

var rootCommand = &cobra.Command{
	Use:   "prodrec",
	Short: "Hybrid product recommender (item-item collaborative filtering + content scoring).",
}

func init() {
	flags := rootCommand.PersistentFlags()
	flags.StringP("config", "c", "", "configuration file path")
	flags.Bool("debug", false, "use debug log mode")
	flags.String("data.source", "", "snapshot source: file, redis or memory")
	flags.String("data.path", "", "snapshot data file path")
	flags.String("redis.addr", "", "redis address")
	log.AddFlags(flags)

	rootCommand.AddCommand(serveCommand, recommendCommand, validateCommand)
}

// setup 初始化日志并加载配置
func setup(cmd *cobra.Command) *config.Settings {
	flags := cmd.Flags()
	debug, _ := flags.GetBool("debug")
	log.SetLogger(flags, debug)

	path, _ := flags.GetString("config")
	settings, err := config.LoadSettings(path, flags)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.String("config", path), zap.Error(err))
	}
	return settings
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
