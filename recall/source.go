package recall

import (
	"context"
	"sort"
	"strconv"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/model"
	"github.com/rushteam/prodrec/pipeline"
	"github.com/rushteam/prodrec/pkg/utils"
)

// Source 表示一个可复用的召回源（协同过滤/内容/热门/...）。
// 你可以把它理解为“可并发 fan-out 的策略单元”。
//
// 召回源返回按分数降序的有序列表；出错时由 Fanout 降级为空结果。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// SourceNode 把单个召回源包装成 Pipeline 节点，结果打上 recall_source / recall_rank。
type SourceNode struct {
	Source Source
}

func (n *SourceNode) Name() string        { return n.Source.Name() }
func (n *SourceNode) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *SourceNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	items, err := n.Source.Recall(ctx, rctx)
	if err != nil {
		return nil, err
	}
	labelRecall(items, n.Source.Name())
	return items, nil
}

func labelRecall(items []*core.Item, source string) {
	for i, it := range items {
		it.PutLabel(utils.LabelRecallSource, utils.NewLabel(source, "recall"))
		it.PutLabel(utils.LabelRecallRank, utils.NewLabel(strconv.Itoa(i), "recall"))
	}
}

// currentModel 取出 provider 当前的模型，没有可用模型时返回 ErrStaleCache。
func currentModel(p model.Provider) (*model.Model, error) {
	if p == nil {
		return nil, core.ErrStaleCache
	}
	m := p.Current()
	if m == nil {
		return nil, core.ErrStaleCache
	}
	return m, nil
}

// limit 决定返回数量：显式 TopK 优先，否则取请求的 TopN。
func limit(topK int, rctx *core.RecommendContext) int {
	if topK > 0 {
		return topK
	}
	if rctx == nil || rctx.TopN < 0 {
		return 0
	}
	return rctx.TopN
}

type scored struct {
	index int
	score float64
}

// rankScored 按分数降序稳定排序并截取前 n 个，同分保持原顺序。
func rankScored(cands []scored, n int) []scored {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})
	if n < len(cands) {
		cands = cands[:n]
	}
	return cands
}

// productItem 以商品构造候选 Item，类别与名称写入 Meta 供过滤/多样性使用。
func productItem(p *core.Product, score float64) *core.Item {
	it := core.NewItem(p.ID)
	it.Score = score
	if p.Name != "" {
		it.Meta["name"] = p.Name
	}
	if p.Category != nil {
		it.Meta["category"] = *p.Category
	}
	return it
}
