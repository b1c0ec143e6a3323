package recall

import (
	"context"
	"math"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/model"
)

// ItemCF 是基于物品的协同过滤召回源（Item-based Collaborative Filtering）。
//
// 核心思想："喜欢 A 的人也喜欢 B"
//
// 算法流程：
//  1. 取出用户在评分矩阵中的行，评分 > 0 的商品为已知集合
//  2. 对每个未知商品 p：score(p) = Σ sim(p,k)·r(k) / (Σ|sim(p,k)| + ε)，k 取遍已知集合
//  3. 已知集合为空时所有候选得分为 0
//  4. 按分数降序取 TopK，同分按商品列顺序
//
// 已经评过分的商品永远不会被返回。
type ItemCF struct {
	Provider model.Provider

	// TopK 返回数量，0 表示使用请求的 TopN
	TopK int
}

func (r *ItemCF) Name() string {
	return "collaborative"
}

func (r *ItemCF) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if rctx == nil {
		return nil, nil
	}
	m, err := currentModel(r.Provider)
	if err != nil {
		return nil, err
	}
	top, err := predict(m, rctx.UserID, limit(r.TopK, rctx))
	if err != nil {
		return nil, err
	}

	products := m.Snapshot.Products()
	out := make([]*core.Item, 0, len(top))
	for _, s := range top {
		it := productItem(products[s.index], s.score)
		it.Features["cf_score"] = s.score
		out = append(out, it)
	}
	return out, nil
}

// Predict 返回协同过滤的 TopN 商品 ID。
func Predict(m *model.Model, userID string, n int) ([]string, error) {
	if m == nil {
		return nil, core.ErrStaleCache
	}
	top, err := predict(m, userID, n)
	if err != nil {
		return nil, err
	}
	ids := m.Matrix.ProductIDs()
	out := make([]string, len(top))
	for i, s := range top {
		out[i] = ids[s.index]
	}
	return out, nil
}

func predict(m *model.Model, userID string, n int) ([]scored, error) {
	u, ok := m.Matrix.UserIndex(userID)
	if !ok {
		return nil, core.ErrUnknownUser
	}
	if n <= 0 {
		return nil, nil
	}
	row := m.Matrix.Row(u)

	known := make([]int, 0, len(row))
	for p, r := range row {
		if r > 0 {
			known = append(known, p)
		}
	}

	cands := make([]scored, 0, len(row)-len(known))
	for p, r := range row {
		if r > 0 {
			continue
		}
		var score float64
		if len(known) > 0 {
			var num, den float64
			for _, k := range known {
				sim := m.Similar(p, k)
				num += sim * row[k]
				den += math.Abs(sim)
			}
			score = num / (den + model.Epsilon)
		}
		cands = append(cands, scored{index: p, score: score})
	}
	return rankScored(cands, n), nil
}
