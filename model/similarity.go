package model

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/prodrec/core"
)

// Epsilon 加在范数与权重和上，避免全零行除零。
const Epsilon = 1e-10

// ComputeSimilarity 计算商品 × 商品的余弦相似度矩阵。
//
// 先对每个用户行做 L2 归一化（范数加 Epsilon），再对列做余弦：
// 列归一化后取 Gram 矩阵。范数为 0 的列保持全 0，
// 因此没有任何评分的商品与所有商品（包括自身）的相似度都是 0。
func ComputeSimilarity(m *InteractionMatrix) (*mat.SymDense, error) {
	if m == nil || m.ratings == nil {
		return nil, core.ErrNoData
	}
	users, products := m.ratings.Dims()

	normalized := mat.DenseCopyOf(m.ratings)
	for i := 0; i < users; i++ {
		row := normalized.RawRowView(i)
		n := floats.Norm(row, 2) + Epsilon
		for j := range row {
			row[j] /= n
		}
	}

	col := make([]float64, users)
	for j := 0; j < products; j++ {
		mat.Col(col, j, normalized)
		n := floats.Norm(col, 2)
		if n == 0 {
			continue
		}
		for i := 0; i < users; i++ {
			normalized.Set(i, j, col[i]/n)
		}
	}

	sim := mat.NewSymDense(products, nil)
	sim.SymOuterK(1, normalized.T())
	return sim, nil
}
