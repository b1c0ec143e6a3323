package filter

import (
	"context"

	"github.com/samber/lo"

	"github.com/rushteam/prodrec/core"
)

// BlacklistFilter 过滤全局黑名单中的商品。
type BlacklistFilter struct {
	// ItemIDs 是静态黑名单
	ItemIDs []string

	// Store / Key 可选，从存储中读取动态黑名单
	Store BlacklistStore
	Key   string
}

// BlacklistStore 是黑名单存储接口。
type BlacklistStore interface {
	GetBlacklist(ctx context.Context, key string) ([]string, error)
}

// NewBlacklistFilter 创建黑名单过滤器，storeAdapter 可为 nil。
func NewBlacklistFilter(itemIDs []string, storeAdapter *StoreAdapter, key string) *BlacklistFilter {
	f := &BlacklistFilter{ItemIDs: itemIDs, Key: key}
	if storeAdapter != nil {
		f.Store = storeAdapter
	}
	return f
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) ShouldFilter(
	ctx context.Context,
	_ *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if lo.Contains(f.ItemIDs, item.ID) {
		return true, nil
	}
	if f.Store == nil || f.Key == "" {
		return false, nil
	}
	ids, err := f.Store.GetBlacklist(ctx, f.Key)
	if err != nil {
		return false, err
	}
	return lo.Contains(ids, item.ID), nil
}
