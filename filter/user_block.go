package filter

import (
	"context"

	"github.com/samber/lo"

	"github.com/rushteam/prodrec/core"
)

// UserBlockFilter 过滤用户自己拉黑的商品，列表存于 {KeyPrefix}:{UserID}。
type UserBlockFilter struct {
	Store     UserBlockStore
	KeyPrefix string // 默认 "user:block"
}

// UserBlockStore 是用户拉黑存储接口。
type UserBlockStore interface {
	GetUserBlocks(ctx context.Context, userID string, keyPrefix string) ([]string, error)
}

// NewUserBlockFilter 创建用户拉黑过滤器。
func NewUserBlockFilter(storeAdapter *StoreAdapter, keyPrefix string) *UserBlockFilter {
	f := &UserBlockFilter{KeyPrefix: keyPrefix}
	if storeAdapter != nil {
		f.Store = storeAdapter
	}
	return f
}

func (f *UserBlockFilter) Name() string {
	return "filter.user_block"
}

func (f *UserBlockFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil || rctx == nil || rctx.UserID == "" || f.Store == nil {
		return false, nil
	}
	keyPrefix := f.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "user:block"
	}
	ids, err := f.Store.GetUserBlocks(ctx, rctx.UserID, keyPrefix)
	if err != nil {
		return false, err
	}
	return lo.Contains(ids, item.ID), nil
}
