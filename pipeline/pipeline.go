package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/pkg/log"
)

// Pipeline 把推荐逻辑拆成可组合的 Node 链：召回 → 过滤 → 重排。
type Pipeline struct {
	Name  string
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, err
		}
		log.Logger().Debug("pipeline node done",
			zap.String("pipeline", p.Name),
			zap.String("node", node.Name()),
			zap.String("kind", string(node.Kind())),
			zap.Int("in", len(cur)),
			zap.Int("out", len(next)),
			zap.Duration("cost", time.Since(start)))
		cur = next
	}
	return cur, nil
}
