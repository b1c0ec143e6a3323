package model

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/prodrec/core"
)

// Model 是一代训练结果：快照、评分矩阵与相似度矩阵。发布后只读。
type Model struct {
	Version   int64
	TrainedAt time.Time

	Snapshot   *core.Snapshot
	Matrix     *InteractionMatrix
	Similarity *mat.SymDense
}

// Train 从快照完整重算一代模型。相同的快照总是得到相同的矩阵。
func Train(s *core.Snapshot, version int64) (*Model, error) {
	matrix, err := BuildInteractionMatrix(s)
	if err != nil {
		return nil, err
	}
	sim, err := ComputeSimilarity(matrix)
	if err != nil {
		return nil, err
	}
	return &Model{
		Version:    version,
		TrainedAt:  time.Now(),
		Snapshot:   s,
		Matrix:     matrix,
		Similarity: sim,
	}, nil
}

// Similar 返回商品列 p、q 的相似度。
func (m *Model) Similar(p, q int) float64 {
	return m.Similarity.At(p, q)
}

// Provider 提供当前发布的模型；没有可用模型时返回 nil。
type Provider interface {
	Current() *Model
}

type pinned struct {
	m *Model
}

func (p pinned) Current() *Model { return p.m }

// Pin 返回固定在某一代模型上的 Provider，一次请求内的所有召回源共享同一代。
func Pin(m *Model) Provider {
	return pinned{m: m}
}
