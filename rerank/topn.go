package rerank

import (
	"context"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/pipeline"
)

// TopNNode 截取前 N 个商品，通常放在召回合并或多样性重排之后。
//
//	p := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &recall.Fanout{...},
//	        &rerank.Diversity{MaxPerCategory: 2},
//	        &rerank.TopNNode{N: 5},
//	    },
//	}
type TopNNode struct {
	// N <= 0 时使用请求的 TopN；两者都未设置则不截断
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	size := n.N
	if size <= 0 && rctx != nil {
		size = rctx.TopN
	}
	if size <= 0 || len(items) <= size {
		return items, nil
	}
	return items[:size], nil
}
