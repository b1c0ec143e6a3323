package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rushteam/prodrec/core"
)

func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }

func TestExtractContent(t *testing.T) {
	electronics := &core.Product{ID: "p1", Category: str("electronics"), Price: f64(99.99), AvgRating: f64(4.5)}

	tests := []struct {
		name    string
		user    *core.User
		product *core.Product
		want    []float64
	}{
		{
			name:    "full record",
			user:    &core.User{ID: "u", Preferences: []string{"electronics"}},
			product: electronics,
			want:    []float64{1.0, 99.99, 4.5, 0.0},
		},
		{
			name:    "preference miss",
			user:    &core.User{ID: "u", Preferences: []string{"books"}},
			product: electronics,
			want:    []float64{0.0, 99.99, 4.5, 0.0},
		},
		{
			name:    "empty preference set",
			user:    &core.User{ID: "u", Preferences: []string{}},
			product: electronics,
			want:    []float64{0.0, 99.99, 4.5, 0.0},
		},
		{
			name:    "no preference set",
			user:    &core.User{ID: "u"},
			product: electronics,
			want:    []float64{99.99, 4.5, 0.0},
		},
		{
			name:    "product without category",
			user:    &core.User{ID: "u", Preferences: []string{"electronics"}},
			product: &core.Product{ID: "p1", AvgRating: f64(3)},
			want:    []float64{3, 0},
		},
		{
			name: "first matching interaction wins",
			user: &core.User{ID: "u", Interactions: []core.Interaction{
				{ProductID: "p0", Rating: f64(1)},
				{ProductID: "p1", Rating: f64(2)},
				{ProductID: "p1", Rating: f64(5)},
			}},
			product: &core.Product{ID: "p1"},
			want:    []float64{2},
		},
		{
			name: "first match without rating",
			user: &core.User{ID: "u", Interactions: []core.Interaction{
				{ProductID: "p1", Type: "view"},
				{ProductID: "p1", Rating: f64(5)},
			}},
			product: &core.Product{ID: "p1"},
			want:    []float64{0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ExtractContent(tt.user, tt.product)
			assert.Equal(t, tt.want, f.Vector())
			assert.Len(t, f.Map(), len(tt.want))
		})
	}
}

func TestContentScore(t *testing.T) {
	f := ExtractContent(
		&core.User{ID: "u", Preferences: []string{"electronics"}},
		&core.Product{ID: "p", Category: str("electronics"), Price: f64(99.99), AvgRating: f64(4.5)},
	)
	assert.InDelta(t, 105.49, f.Score(), 1e-9)
	assert.Equal(t, map[string]float64{
		NameCategoryMatch: 1,
		NamePrice:         99.99,
		NameAvgRating:     4.5,
		NamePriorRating:   0,
	}, f.Map())

	// same optional fields give the same vector
	assert.Equal(t, f.Vector(), ExtractContent(
		&core.User{ID: "u", Preferences: []string{"electronics"}},
		&core.Product{ID: "p", Category: str("electronics"), Price: f64(99.99), AvgRating: f64(4.5)},
	).Vector())
}

func TestAdaptFeatureExtractor(t *testing.T) {
	assert.Nil(t, AdaptFeatureExtractor(nil, "x"))
	assert.Nil(t, AdaptFeatureExtractor(42, "x"))

	def := NewDefaultFeatureExtractor()
	assert.Same(t, def, AdaptFeatureExtractor(def, "x"))

	fe := AdaptFeatureExtractor(func(*core.User, *core.Product) ContentFeatures {
		return ContentFeatures{PriorRating: 3}
	}, "const")
	assert.Equal(t, "const", fe.Name())
	assert.Equal(t, 3.0, fe.Extract(&core.User{}, &core.Product{}).Score())

	assert.Equal(t, ContentFeatures{}, NewCustomFeatureExtractor("nil", nil).Extract(&core.User{}, &core.Product{}))
}
