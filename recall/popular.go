package recall

import (
	"context"
	"sort"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/model"
	"github.com/rushteam/prodrec/pipeline"
)

// Popular 是热门召回源，主要用于冷启动兜底。
//   - 如果 Store 实现了 KeyValueStore，优先使用 ZRange 读取热度有序集合（由 tracker 维护）
//   - 否则按快照中商品的平均评分降序，没有评分的商品排在最后
//
// 热门召回不排除用户已交互的商品，对未知用户同样返回结果。
// Popular 同时实现了 Source 和 Node 接口，可以直接在 Pipeline 中使用。
type Popular struct {
	Provider model.Provider
	Store    core.Store
	Key      string // 有序集合 key，例如 "prodrec:popular"

	// TopK 返回数量，0 表示使用请求的 TopN
	TopK int
}

func (r *Popular) Name() string        { return "popular" }
func (r *Popular) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *Popular) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	items, err := r.Recall(ctx, rctx)
	if err != nil {
		return nil, err
	}
	labelRecall(items, r.Name())
	return items, nil
}

// Recall 实现 Source 接口
func (r *Popular) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	m, err := currentModel(r.Provider)
	if err != nil {
		return nil, err
	}
	n := limit(r.TopK, rctx)
	if n <= 0 {
		return nil, nil
	}

	if kv, ok := r.Store.(core.KeyValueStore); ok && r.Key != "" {
		if out := r.fromSortedSet(ctx, kv, m, n); len(out) > 0 {
			return out, nil
		}
	}

	products := m.Snapshot.Products()
	cands := make([]scored, len(products))
	for i, p := range products {
		cands[i] = scored{index: i}
		if p.AvgRating != nil {
			cands[i].score = *p.AvgRating
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		ri, rj := hasAvgRating(products[cands[i].index]), hasAvgRating(products[cands[j].index])
		if ri != rj {
			return ri
		}
		return cands[i].score > cands[j].score
	})
	if n < len(cands) {
		cands = cands[:n]
	}
	out := make([]*core.Item, 0, len(cands))
	for _, s := range cands {
		out = append(out, productItem(products[s.index], s.score))
	}
	return out, nil
}

func hasAvgRating(p *core.Product) bool { return p.AvgRating != nil }

// fromSortedSet 按热度从高到低分页读取有序集合，跳过快照中不存在的商品，直到凑满 n 个或读完。
func (r *Popular) fromSortedSet(ctx context.Context, kv core.KeyValueStore, m *model.Model, n int) []*core.Item {
	out := make([]*core.Item, 0, n)
	for start := int64(0); len(out) < n; start += int64(n) {
		members, err := kv.ZRange(ctx, r.Key, start, start+int64(n)-1)
		if err != nil || len(members) == 0 {
			break
		}
		for _, id := range members {
			p, ok := m.Snapshot.Product(id)
			if !ok {
				continue
			}
			score, _ := kv.ZScore(ctx, r.Key, id)
			out = append(out, productItem(p, score))
			if len(out) == n {
				break
			}
		}
		if len(members) < n {
			break
		}
	}
	return out
}
