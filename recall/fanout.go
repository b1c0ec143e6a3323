package recall

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/pipeline"
	"github.com/rushteam/prodrec/pkg/log"
	"github.com/rushteam/prodrec/pkg/utils"
)

// SourceResult 是单个召回源的有序结果，Priority 为召回源在 Fanout 中的下标。
type SourceResult struct {
	Source   string
	Priority int
	Items    []*core.Item
}

// MergeStrategy 把各召回源的结果合并为一个列表。results 按 Priority 升序排列。
type MergeStrategy interface {
	Merge(rctx *core.RecommendContext, results []SourceResult, dedup bool) []*core.Item
}

// Fanout 是一个 Recall Node：并发执行多个召回源，并合并结果。
// 支持超时、限流与可插拔的合并策略；单个召回源失败或超时只会让它贡献空结果。
type Fanout struct {
	Sources       []Source
	Dedup         bool
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy MergeStrategy // 为空时使用 FirstMergeStrategy
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	results := make([]SourceResult, len(n.Sources))
	eg, egCtx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		i, src := i, src
		eg.Go(func() error {
			results[i] = SourceResult{Source: src.Name(), Priority: i}

			recallCtx := egCtx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(egCtx, n.Timeout)
				defer cancel()
			}

			items, err := src.Recall(recallCtx, rctx)
			if err != nil {
				// 超时或错误时返回空结果，不中断其他召回源
				log.Logger().Debug("recall source degraded",
					zap.String("source", src.Name()),
					zap.String("reason", core.ErrorReason(err)),
					zap.Error(err))
				return nil
			}
			labelRecall(items, src.Name())
			results[i].Items = items
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	strategy := n.MergeStrategy
	if strategy == nil {
		strategy = &FirstMergeStrategy{}
	}
	return strategy.Merge(rctx, results, n.Dedup), nil
}

// FirstMergeStrategy 按召回源顺序拼接，按 ID 去重时保留第一次出现的 Item 并合并 Label。
type FirstMergeStrategy struct{}

func (s *FirstMergeStrategy) Merge(_ *core.RecommendContext, results []SourceResult, dedup bool) []*core.Item {
	all := flatten(results)
	if !dedup {
		return all
	}
	seen := make(map[string]*core.Item, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if old, ok := seen[it.ID]; ok {
			for k, v := range it.Labels {
				old.PutLabel(k, v)
			}
			continue
		}
		seen[it.ID] = it
		out = append(out, it)
	}
	return out
}

// UnionMergeStrategy 合并所有结果，不去重（用于需要保留所有来源的场景）。
type UnionMergeStrategy struct{}

func (s *UnionMergeStrategy) Merge(_ *core.RecommendContext, results []SourceResult, _ bool) []*core.Item {
	return flatten(results)
}

// WeightedRankMergeStrategy 按名次加权融合：
// 召回源 s 中第 i 名（从 0 开始）贡献 (Pool − i) · Weights[s]，同一商品的贡献相加，
// 最后按总分降序稳定排序，同分时按首次出现的顺序。
//
// Pool 为 0 时取请求的 TopN；Weights 中没有的召回源权重为 1。
type WeightedRankMergeStrategy struct {
	Weights map[string]float64
	Pool    int
}

func (s *WeightedRankMergeStrategy) weight(source string) float64 {
	if w, ok := s.Weights[source]; ok {
		return w
	}
	return 1
}

func (s *WeightedRankMergeStrategy) Merge(rctx *core.RecommendContext, results []SourceResult, _ bool) []*core.Item {
	pool := s.Pool
	if pool <= 0 && rctx != nil {
		pool = rctx.TopN
	}

	merged := make(map[string]*core.Item)
	order := make([]*core.Item, 0)
	parts := make(map[string][]string)
	for _, res := range results {
		w := s.weight(res.Source)
		for i, it := range res.Items {
			if it == nil {
				continue
			}
			contrib := float64(pool-i) * w
			cur, ok := merged[it.ID]
			if !ok {
				cur = it
				cur.Score = 0
				merged[it.ID] = cur
				order = append(order, cur)
			} else {
				for k, v := range it.Labels {
					cur.PutLabel(k, v)
				}
				if cur.Features == nil {
					cur.Features = make(map[string]float64, len(it.Features))
				}
				for k, v := range it.Features {
					cur.Features[k] = v
				}
			}
			cur.Score += contrib
			parts[it.ID] = append(parts[it.ID], fmt.Sprintf("%s:%g", res.Source, contrib))
		}
	}

	for _, it := range order {
		it.PutLabel(utils.LabelBlend, utils.NewLabel(strings.Join(parts[it.ID], ","), "merge"))
	}
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Score > order[j].Score
	})
	return order
}

func flatten(results []SourceResult) []*core.Item {
	var all []*core.Item
	for _, res := range results {
		for _, it := range res.Items {
			if it != nil {
				all = append(all, it)
			}
		}
	}
	return all
}
