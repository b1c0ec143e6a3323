// Package prodrec 是一个混合商品推荐服务。
//
// 设计要点：
//   - 物品协同过滤：用户 × 商品评分矩阵上的物品余弦相似度，预测未评分商品的得分
//   - 内容打分：按用户偏好类目、价格、平均评分和历史评分对每个商品打分
//   - 混合推荐：两个打分器各取候选池，按名次加权融合
//   - 模型按代发布：Rebuild 原子替换当前代，打分路径只读一代，失败时保留上一代
//   - Pipeline-first：打分器同时作为召回 Node，可以用 YAML 配置过滤、重排
package prodrec

import (
	"github.com/rushteam/prodrec/engine"
	"github.com/rushteam/prodrec/pipeline"
)

// 轻量 facade：便于直接 import "prodrec" 使用核心抽象。
type (
	Engine   = engine.Engine
	Pipeline = pipeline.Pipeline
	Node     = pipeline.Node
	Kind     = pipeline.Kind
)

const (
	KindRecall = pipeline.KindRecall
	KindFilter = pipeline.KindFilter
	KindReRank = pipeline.KindReRank
)

// NewEngine 等同于 engine.New
var NewEngine = engine.New
