package feature

import "github.com/rushteam/prodrec/core"

// 内容特征名，同时作为 Item.Features 的 key。
const (
	NameCategoryMatch = "category_match"
	NamePrice         = "price"
	NameAvgRating     = "avg_rating"
	NamePriorRating   = "prior_rating"
)

// ContentFeatures 是一个 (用户, 商品) 对的内容特征。
//
// 可选项为 nil 表示该项不存在，而不是 0；只有 PriorRating 总是存在。
// 在打分边界才通过 Vector 转成变长向量。
type ContentFeatures struct {
	CategoryMatch *float64
	Price         *float64
	AvgRating     *float64
	PriorRating   float64
}

// Vector 按固定顺序输出存在的特征：类别匹配、价格、平均评分、历史评分。
func (f ContentFeatures) Vector() []float64 {
	v := make([]float64, 0, 4)
	for _, p := range []*float64{f.CategoryMatch, f.Price, f.AvgRating} {
		if p != nil {
			v = append(v, *p)
		}
	}
	return append(v, f.PriorRating)
}

// Score 是向量各项之和。
func (f ContentFeatures) Score() float64 {
	var sum float64
	for _, x := range f.Vector() {
		sum += x
	}
	return sum
}

// Map 以特征名为 key 输出存在的特征，用于写入 Item.Features。
func (f ContentFeatures) Map() map[string]float64 {
	m := map[string]float64{NamePriorRating: f.PriorRating}
	if f.CategoryMatch != nil {
		m[NameCategoryMatch] = *f.CategoryMatch
	}
	if f.Price != nil {
		m[NamePrice] = *f.Price
	}
	if f.AvgRating != nil {
		m[NameAvgRating] = *f.AvgRating
	}
	return m
}

// ExtractContent 是默认的内容特征抽取规则。
//
//   - 类别匹配：用户有偏好集合且商品有类别时存在，命中为 1，否则为 0
//   - 价格、平均评分：商品上存在时原样带出
//   - 历史评分：按存储顺序找到的第一条该商品交互的评分，没有则为 0
func ExtractContent(user *core.User, product *core.Product) ContentFeatures {
	var f ContentFeatures
	if user.HasPreferences() && product.Category != nil {
		match := 0.0
		if user.Prefers(*product.Category) {
			match = 1.0
		}
		f.CategoryMatch = &match
	}
	if product.Price != nil {
		price := *product.Price
		f.Price = &price
	}
	if product.AvgRating != nil {
		avg := *product.AvgRating
		f.AvgRating = &avg
	}
	for _, in := range user.Interactions {
		if in.ProductID != product.ID {
			continue
		}
		if in.Rating != nil {
			f.PriorRating = *in.Rating
		}
		break
	}
	return f
}
