package feature

import (
	"github.com/rushteam/prodrec/core"
)

// FeatureExtractor 是内容特征抽取器的统一接口，采用策略模式。
//
// 不同业务对“用户与商品是否匹配”的理解不同，通过实现此接口即可替换抽取逻辑，
// 无需修改召回源代码。
//
// 使用示例：
//
//	brand := feature.NewCustomFeatureExtractor("brand", func(u *core.User, p *core.Product) feature.ContentFeatures {
//	    f := feature.ExtractContent(u, p)
//	    // ... 追加自定义逻辑
//	    return f
//	})
//	content := recall.NewContentRecall(provider, recall.WithContentExtractor(brand))
type FeatureExtractor interface {
	// Extract 抽取一个 (用户, 商品) 对的特征
	Extract(user *core.User, product *core.Product) ContentFeatures

	// Name 返回抽取器名称（用于日志/监控）
	Name() string
}

// DefaultFeatureExtractor 使用 ExtractContent 规则。
type DefaultFeatureExtractor struct{}

// NewDefaultFeatureExtractor 创建默认特征抽取器
func NewDefaultFeatureExtractor() *DefaultFeatureExtractor {
	return &DefaultFeatureExtractor{}
}

func (e *DefaultFeatureExtractor) Name() string {
	return "default"
}

func (e *DefaultFeatureExtractor) Extract(user *core.User, product *core.Product) ContentFeatures {
	return ExtractContent(user, product)
}

// CustomFeatureExtractor 是自定义特征抽取器，允许用户完全自定义抽取逻辑。
type CustomFeatureExtractor struct {
	name    string
	extract func(user *core.User, product *core.Product) ContentFeatures
}

// NewCustomFeatureExtractor 创建自定义特征抽取器
func NewCustomFeatureExtractor(name string, extract func(user *core.User, product *core.Product) ContentFeatures) *CustomFeatureExtractor {
	return &CustomFeatureExtractor{
		name:    name,
		extract: extract,
	}
}

func (e *CustomFeatureExtractor) Name() string {
	return e.name
}

func (e *CustomFeatureExtractor) Extract(user *core.User, product *core.Product) ContentFeatures {
	if e.extract == nil {
		return ContentFeatures{}
	}
	return e.extract(user, product)
}

// AdaptFeatureExtractor 适配函数类型或接口为 FeatureExtractor 接口。
//
// 支持类型：
//   - feature.FeatureExtractor 接口：直接返回
//   - func(*core.User, *core.Product) ContentFeatures：包装为 CustomFeatureExtractor
func AdaptFeatureExtractor(extractor any, name string) FeatureExtractor {
	if extractor == nil {
		return nil
	}
	if fe, ok := extractor.(FeatureExtractor); ok {
		return fe
	}
	if fn, ok := extractor.(func(*core.User, *core.Product) ContentFeatures); ok {
		return NewCustomFeatureExtractor(name, fn)
	}
	return nil
}
