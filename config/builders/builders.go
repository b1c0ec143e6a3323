// Package builders 注册内置 Node 的配置构建逻辑。
//
// 无状态的 Node 在 init 中注册到全局注册表；依赖模型或存储的 Node 通过 Bind 注册到具体的 NodeFactory。
package builders

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/rushteam/prodrec/config"
	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/filter"
	"github.com/rushteam/prodrec/model"
	"github.com/rushteam/prodrec/pipeline"
	"github.com/rushteam/prodrec/pkg/conv"
	"github.com/rushteam/prodrec/recall"
	"github.com/rushteam/prodrec/rerank"
)

func init() {
	config.Register("rerank.topn", BuildTopNNode)
	config.Register("rerank.diversity", BuildDiversityNode)
	config.Register("filter", Deps{}.BuildFilterNode)
}

// Deps 是有状态 Node 需要的依赖。Provider 一般固定在单次请求的那一代模型上。
type Deps struct {
	Provider model.Provider
	Store    core.Store
}

// Bind 在 factory 上注册依赖 deps 的 Node 类型，同名覆盖全局注册的版本。
func Bind(f *pipeline.NodeFactory, deps Deps) *pipeline.NodeFactory {
	f.Register("recall.collaborative", deps.BuildCollaborativeNode)
	f.Register("recall.content", deps.BuildContentNode)
	f.Register("recall.popular", deps.BuildPopularNode)
	f.Register("recall.fanout", deps.BuildFanoutNode)
	f.Register("filter", deps.BuildFilterNode)
	return f
}

func (d Deps) source(cfg map[string]any) (recall.Source, error) {
	topK := int(conv.ConfigGetInt64(cfg, "top_k", 0))
	switch t := conv.ConfigGet(cfg, "type", ""); t {
	case "collaborative":
		return &recall.ItemCF{Provider: d.Provider, TopK: topK}, nil
	case "content":
		return recall.NewContentRecall(d.Provider, recall.WithContentTopK(topK)), nil
	case "popular":
		return &recall.Popular{
			Provider: d.Provider,
			Store:    d.Store,
			Key:      conv.ConfigGet(cfg, "key", ""),
			TopK:     topK,
		}, nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", t)
	}
}

func (d Deps) BuildCollaborativeNode(cfg map[string]any) (pipeline.Node, error) {
	src, err := d.source(lo.Assign(cfg, map[string]any{"type": "collaborative"}))
	if err != nil {
		return nil, err
	}
	return &recall.SourceNode{Source: src}, nil
}

func (d Deps) BuildContentNode(cfg map[string]any) (pipeline.Node, error) {
	src, err := d.source(lo.Assign(cfg, map[string]any{"type": "content"}))
	if err != nil {
		return nil, err
	}
	return &recall.SourceNode{Source: src}, nil
}

func (d Deps) BuildPopularNode(cfg map[string]any) (pipeline.Node, error) {
	src, err := d.source(lo.Assign(cfg, map[string]any{"type": "popular"}))
	if err != nil {
		return nil, err
	}
	return src.(*recall.Popular), nil
}

// BuildFanoutNode 构建 recall.fanout：
//
//	type: recall.fanout
//	config:
//	  sources: [{type: collaborative, weight: 0.7}, {type: content, weight: 0.3}]
//	  merge_strategy: weighted   # first / union / weighted
//	  pool: 10
//	  timeout: 1                 # 秒
func (d Deps) BuildFanoutNode(cfg map[string]any) (pipeline.Node, error) {
	sourcesConfig, ok := cfg["sources"].([]any)
	if !ok {
		return nil, fmt.Errorf("sources not found or invalid")
	}
	sources := make([]recall.Source, 0, len(sourcesConfig))
	weights := make(map[string]float64, len(sourcesConfig))
	for _, sc := range sourcesConfig {
		sourceMap, ok := sc.(map[string]any)
		if !ok {
			continue
		}
		src, err := d.source(sourceMap)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
		if _, ok := sourceMap["weight"]; ok {
			weights[src.Name()] = conv.ConfigGetFloat64(sourceMap, "weight", 1)
		}
	}
	fanout := &recall.Fanout{
		Sources: sources,
		Dedup:   conv.ConfigGet(cfg, "dedup", true),
	}
	if sec := conv.ConfigGetInt64(cfg, "timeout", 0); sec > 0 {
		fanout.Timeout = time.Duration(sec) * time.Second
	}
	if n := conv.ConfigGetInt64(cfg, "max_concurrent", 0); n > 0 {
		fanout.MaxConcurrent = int(n)
	}
	switch conv.ConfigGet(cfg, "merge_strategy", "") {
	case "weighted":
		fanout.MergeStrategy = &recall.WeightedRankMergeStrategy{
			Weights: weights,
			Pool:    int(conv.ConfigGetInt64(cfg, "pool", 0)),
		}
	case "union":
		fanout.MergeStrategy = &recall.UnionMergeStrategy{}
	default:
		fanout.MergeStrategy = &recall.FirstMergeStrategy{}
	}
	return fanout, nil
}

func BuildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	return &rerank.TopNNode{N: int(conv.ConfigGetInt64(cfg, "n", 0))}, nil
}

func BuildDiversityNode(cfg map[string]any) (pipeline.Node, error) {
	return &rerank.Diversity{
		Key:            conv.ConfigGet(cfg, "label_key", "category"),
		MaxPerCategory: int(conv.ConfigGetInt64(cfg, "max_per_category", 1)),
	}, nil
}

// BuildFilterNode 构建 filter：
//
//	filters:
//	  - {type: blacklist, item_ids: [p1], key: "prodrec:blacklist"}
//	  - {type: user_block, key_prefix: "user:block"}
//	  - {type: interacted, only_rated: true}
//	  - {type: expr, expr: 'item.meta.category == "books"'}
func (d Deps) BuildFilterNode(cfg map[string]any) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]any)
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}
	var adapter *filter.StoreAdapter
	if d.Store != nil {
		adapter = filter.NewStoreAdapter(d.Store)
	}
	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]any)
		if !ok {
			continue
		}
		switch filterType := conv.ConfigGet(filterMap, "type", ""); filterType {
		case "blacklist":
			ids := conv.SliceAnyToString(filterMap["item_ids"])
			filters = append(filters, filter.NewBlacklistFilter(ids, adapter, conv.ConfigGet(filterMap, "key", "")))
		case "user_block":
			if adapter == nil {
				return nil, fmt.Errorf("user_block filter requires a store")
			}
			filters = append(filters, filter.NewUserBlockFilter(adapter, conv.ConfigGet(filterMap, "key_prefix", "")))
		case "interacted":
			if d.Provider == nil {
				return nil, fmt.Errorf("interacted filter requires a model provider")
			}
			filters = append(filters, &filter.InteractedFilter{
				Provider:  d.Provider,
				OnlyRated: conv.ConfigGet(filterMap, "only_rated", false),
			})
		case "expr":
			ef, err := filter.NewExprFilter(conv.ConfigGet(filterMap, "expr", ""))
			if err != nil {
				return nil, err
			}
			filters = append(filters, ef)
		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}
	return &filter.FilterNode{Filters: filters}, nil
}
