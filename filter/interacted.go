package filter

import (
	"context"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/model"
)

// InteractedFilter 过滤用户在当前一代快照中已经交互过的商品。
// OnlyRated 为 true 时只看评分大于 0 的交互，与协同过滤的“已知”集合一致。
type InteractedFilter struct {
	Provider  model.Provider
	OnlyRated bool
}

func (f *InteractedFilter) Name() string {
	return "filter.interacted"
}

func (f *InteractedFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil || rctx == nil || rctx.UserID == "" || f.Provider == nil {
		return false, nil
	}
	m := f.Provider.Current()
	if m == nil {
		return false, core.ErrStaleCache
	}
	if f.OnlyRated {
		u, ok := m.Matrix.UserIndex(rctx.UserID)
		p, ok2 := m.Matrix.ProductIndex(item.ID)
		return ok && ok2 && m.Matrix.At(u, p) > 0, nil
	}
	user, ok := m.Snapshot.User(rctx.UserID)
	if !ok {
		return false, nil
	}
	for _, in := range user.Interactions {
		if in.ProductID == item.ID {
			return true, nil
		}
	}
	return false, nil
}
