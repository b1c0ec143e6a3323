package store

import (
	"context"

	"github.com/juju/errors"

	"github.com/rushteam/prodrec/core"
)

// SnapshotStore 把快照以数据文档格式保存在任意 core.Store 的一个 key 下（MemoryStore / RedisStore）。
type SnapshotStore struct {
	Store core.Store
	Key   string
}

// NewSnapshotStore 创建快照存储，key 为空时使用 "prodrec:snapshot"。
func NewSnapshotStore(s core.Store, key string) *SnapshotStore {
	if key == "" {
		key = "prodrec:snapshot"
	}
	return &SnapshotStore{Store: s, Key: key}
}

var (
	_ core.SnapshotSource = (*SnapshotStore)(nil)
	_ core.SnapshotSaver  = (*SnapshotStore)(nil)
)

func (s *SnapshotStore) Name() string { return s.Store.Name() }

// Load 读取快照；key 不存在时返回 ErrNoData。
func (s *SnapshotStore) Load(ctx context.Context) (*core.Snapshot, error) {
	data, err := s.Store.Get(ctx, s.Key)
	if core.IsStoreNotFound(err) {
		return nil, core.ErrNoData
	}
	if err != nil {
		return nil, errors.Annotatef(err, "get %s", s.Key)
	}
	return ParseSnapshot(data)
}

// Save 写入快照。
func (s *SnapshotStore) Save(ctx context.Context, snapshot *core.Snapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(s.Store.Set(ctx, s.Key, data), "set %s", s.Key)
}
