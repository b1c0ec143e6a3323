package filter

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/juju/errors"

	"github.com/rushteam/prodrec/core"
)

// StoreAdapter 从 core.Store 读取 JSON 编码的商品 ID 列表。
type StoreAdapter struct {
	store core.Store
}

// NewStoreAdapter 创建一个 core.Store 适配器。
func NewStoreAdapter(s core.Store) *StoreAdapter {
	return &StoreAdapter{store: s}
}

// GetBlacklist 读取 key 下的 ID 列表；key 不存在时返回空列表。
func (a *StoreAdapter) GetBlacklist(ctx context.Context, key string) ([]string, error) {
	data, err := a.store.Get(ctx, key)
	if core.IsStoreNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Annotatef(err, "get %s", key)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, errors.Annotatef(err, "decode %s", key)
	}
	return ids, nil
}

// GetUserBlocks 读取用户拉黑列表，key 为 {keyPrefix}:{userID}。
func (a *StoreAdapter) GetUserBlocks(ctx context.Context, userID string, keyPrefix string) ([]string, error) {
	return a.GetBlacklist(ctx, keyPrefix+":"+userID)
}

// PutBlacklist 覆盖写入 key 下的 ID 列表。
func (a *StoreAdapter) PutBlacklist(ctx context.Context, key string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(a.store.Set(ctx, key, data), "set %s", key)
}
