package model

import (
	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/prodrec/core"
)

// InteractionMatrix 是稠密的 用户 × 商品 评分矩阵。
//
// 行顺序 = 快照用户顺序，列顺序 = 快照商品顺序。未交互的格子为 0，
// 与显式的 0 分在数值上无法区分，observed 掩码记录了哪些格子确实由交互写入。
type InteractionMatrix struct {
	userIDs    []string
	productIDs []string

	userIndex    map[string]int
	productIndex map[string]int

	ratings  *mat.Dense
	observed *bitset.BitSet
}

// BuildInteractionMatrix 从快照构建评分矩阵。
//
// 同一 (用户, 商品) 的多条评分按存储顺序依次覆盖，最后一条生效；
// 没有商品引用、没有评分或引用未知商品的交互被跳过。
func BuildInteractionMatrix(s *core.Snapshot) (*InteractionMatrix, error) {
	if s.Empty() {
		return nil, core.ErrNoData
	}
	users, products := s.Users(), s.Products()

	m := &InteractionMatrix{
		userIDs:      make([]string, len(users)),
		productIDs:   make([]string, len(products)),
		userIndex:    make(map[string]int, len(users)),
		productIndex: make(map[string]int, len(products)),
		ratings:      mat.NewDense(len(users), len(products), nil),
		observed:     bitset.New(uint(len(users) * len(products))),
	}
	for i, u := range users {
		m.userIDs[i] = u.ID
		m.userIndex[u.ID] = i
	}
	for j, p := range products {
		m.productIDs[j] = p.ID
		m.productIndex[p.ID] = j
	}

	for i, u := range users {
		for _, in := range u.Interactions {
			if !in.HasRating() {
				continue
			}
			j, ok := m.productIndex[in.ProductID]
			if !ok {
				continue
			}
			m.ratings.Set(i, j, *in.Rating)
			m.observed.Set(m.cell(i, j))
		}
	}
	return m, nil
}

func (m *InteractionMatrix) cell(u, p int) uint {
	return uint(u*len(m.productIDs) + p)
}

// Dims 返回 (用户数, 商品数)。
func (m *InteractionMatrix) Dims() (users, products int) {
	return len(m.userIDs), len(m.productIDs)
}

// UserIndex 返回用户所在行。
func (m *InteractionMatrix) UserIndex(id string) (int, bool) {
	i, ok := m.userIndex[id]
	return i, ok
}

// ProductIndex 返回商品所在列。
func (m *InteractionMatrix) ProductIndex(id string) (int, bool) {
	j, ok := m.productIndex[id]
	return j, ok
}

// UserIDs 返回行顺序的用户 ID（调用方不得修改）。
func (m *InteractionMatrix) UserIDs() []string { return m.userIDs }

// ProductIDs 返回列顺序的商品 ID（调用方不得修改）。
func (m *InteractionMatrix) ProductIDs() []string { return m.productIDs }

// At 返回 (u, p) 处的评分。
func (m *InteractionMatrix) At(u, p int) float64 {
	return m.ratings.At(u, p)
}

// Row 返回第 u 行的拷贝。
func (m *InteractionMatrix) Row(u int) []float64 {
	return mat.Row(nil, u, m.ratings)
}

// Observed 表示 (u, p) 是否由某条带评分的交互写入过，用于区分“评了 0 分”和“没有交互”。
func (m *InteractionMatrix) Observed(u, p int) bool {
	return m.observed.Test(m.cell(u, p))
}

// ObservedCount 返回被写入过的格子数。
func (m *InteractionMatrix) ObservedCount() int {
	return int(m.observed.Count())
}

// Ratings 返回底层矩阵的只读视图。
func (m *InteractionMatrix) Ratings() mat.Matrix {
	return m.ratings
}
