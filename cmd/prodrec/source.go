package main

import (
	"context"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/rushteam/prodrec/config"
	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/pkg/log"
	"github.com/rushteam/prodrec/store"
)

// backend 是快照数据源以及埋点、热门榜使用的存储。
// writer 非空时埋点交互会写回数据源（file 模式写回数据文件）。
type backend struct {
	source core.SnapshotSource
	store  core.Store
	writer core.SnapshotSaver
}

func (b *backend) Close() error {
	return b.store.Close()
}

// openBackend 按 data.source 创建数据源：
//   - file：直接读数据文件，埋点交互写回数据文件
//   - memory：启动时把数据文件导入 MemoryStore
//   - redis：从 Redis 读取快照，key 不存在时用数据文件初始化
func openBackend(ctx context.Context, s *config.Settings) (*backend, error) {
	switch s.Data.Source {
	case "file":
		fs := store.NewFileSource(s.Data.Path)
		return &backend{source: fs, store: store.NewMemoryStore(), writer: fs}, nil
	case "memory":
		kv := store.NewMemoryStore()
		ss := store.NewSnapshotStore(kv, s.Data.SnapshotKey)
		if err := importFile(ctx, s.Data.Path, ss); err != nil {
			_ = kv.Close()
			return nil, err
		}
		return &backend{source: ss, store: kv}, nil
	case "redis":
		kv, err := store.NewRedisStore(s.Redis.Addr, s.Redis.Password, s.Redis.DB)
		if err != nil {
			return nil, errors.Annotatef(err, "connect redis %s", s.Redis.Addr)
		}
		ss := store.NewSnapshotStore(kv, s.Data.SnapshotKey)
		if _, err := ss.Load(ctx); core.IsNoData(err) && s.Data.Path != "" {
			log.Logger().Info("snapshot key is empty, import data file",
				zap.String("key", ss.Key), zap.String("path", s.Data.Path))
			if err := importFile(ctx, s.Data.Path, ss); err != nil {
				_ = kv.Close()
				return nil, err
			}
		}
		return &backend{source: ss, store: kv}, nil
	default:
		return nil, errors.NotSupportedf("data source %q", s.Data.Source)
	}
}

func importFile(ctx context.Context, path string, ss *store.SnapshotStore) error {
	snapshot, err := store.NewFileSource(path).Load(ctx)
	if err != nil {
		return errors.Annotatef(err, "import %s", path)
	}
	return ss.Save(ctx, snapshot)
}
