package core

// RecallConfig 是推荐相关的配置接口，用于提供默认值。
type RecallConfig interface {
	// DefaultTopN 返回默认的推荐数量
	DefaultTopN() int

	// DefaultCollabWeight 返回混合推荐中协同过滤的默认权重
	DefaultCollabWeight() float64
}

// DefaultRecallConfig 是默认的推荐配置实现。
type DefaultRecallConfig struct{}

func (c *DefaultRecallConfig) DefaultTopN() int {
	return 5
}

func (c *DefaultRecallConfig) DefaultCollabWeight() float64 {
	return 0.7
}
