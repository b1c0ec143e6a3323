package recall

import (
	"context"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/feature"
	"github.com/rushteam/prodrec/model"
)

// ContentRecall 是基于内容的召回源（Content-Based Recommendation）。
//
// 核心思想："用户喜欢具有某些特征的物品，推荐具有相似特征的其他物品"
//
// 对快照中的每个商品抽取 (用户, 商品) 内容特征，分数为特征之和；
// 按分数降序取 TopK，同分保持商品在快照中的顺序。已交互过的商品不做排除。
type ContentRecall struct {
	Provider model.Provider

	// Extractor 内容特征抽取器，为空时使用 feature.ExtractContent
	Extractor feature.FeatureExtractor

	// TopK 返回数量，0 表示使用请求的 TopN
	TopK int
}

// ContentOption 内容召回配置选项
type ContentOption func(*ContentRecall)

// WithContentExtractor 设置特征抽取器
func WithContentExtractor(e feature.FeatureExtractor) ContentOption {
	return func(r *ContentRecall) {
		r.Extractor = e
	}
}

// WithContentTopK 设置返回数量
func WithContentTopK(k int) ContentOption {
	return func(r *ContentRecall) {
		r.TopK = k
	}
}

// NewContentRecall 创建内容召回源
func NewContentRecall(provider model.Provider, opts ...ContentOption) *ContentRecall {
	r := &ContentRecall{Provider: provider}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ContentRecall) Name() string {
	return "content"
}

func (r *ContentRecall) Recall(
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
	user, ok := m.Snapshot.User(rctx.UserID)
	if !ok {
		return nil, core.ErrUnknownUser
	}
	n := limit(r.TopK, rctx)
	if n <= 0 {
		return nil, nil
	}

	extractor := r.Extractor
	if extractor == nil {
		extractor = feature.NewDefaultFeatureExtractor()
	}

	products := m.Snapshot.Products()
	features := make([]feature.ContentFeatures, len(products))
	cands := make([]scored, len(products))
	for i, p := range products {
		features[i] = extractor.Extract(user, p)
		cands[i] = scored{index: i, score: features[i].Score()}
	}

	top := rankScored(cands, n)
	out := make([]*core.Item, 0, len(top))
	for _, s := range top {
		it := productItem(products[s.index], s.score)
		for k, v := range features[s.index].Map() {
			it.Features[k] = v
		}
		out = append(out, it)
	}
	return out, nil
}
