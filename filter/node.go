package filter

import (
	"context"

	"go.uber.org/zap"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/pipeline"
	"github.com/rushteam/prodrec/pkg/log"
	"github.com/rushteam/prodrec/pkg/utils"
)

// FilterNode 组合多个过滤器，任意一个返回 true 即移除该商品。
// 过滤器出错时视为不过滤。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		reason := ""
		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				log.Logger().Debug("filter error ignored",
					zap.String("filter", f.Name()), zap.String("item", item.ID), zap.Error(err))
				continue
			}
			if ok {
				reason = f.Name()
				break
			}
		}
		if reason != "" {
			item.PutLabel(utils.LabelFiltered, utils.NewLabel("true", reason))
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
