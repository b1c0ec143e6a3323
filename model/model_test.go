package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/prodrec/core"
)

func f64(v float64) *float64 { return &v }

func rated(productID string, r float64) core.Interaction {
	return core.Interaction{ProductID: productID, Type: "rating", Value: f64(r), Rating: f64(r)}
}

func twoUserSnapshot() *core.Snapshot {
	return core.MustSnapshot(
		[]*core.User{
			{ID: "user1", Interactions: []core.Interaction{rated("product2", 4.0)}},
			{ID: "user2", Interactions: []core.Interaction{rated("product3", 5.0)}},
		},
		[]*core.Product{{ID: "product1"}, {ID: "product2"}, {ID: "product3"}},
	)
}

func TestBuildInteractionMatrix(t *testing.T) {
	m, err := BuildInteractionMatrix(twoUserSnapshot())
	require.NoError(t, err)

	users, products := m.Dims()
	assert.Equal(t, 2, users)
	assert.Equal(t, 3, products)
	assert.Equal(t, []string{"user1", "user2"}, m.UserIDs())
	assert.Equal(t, []string{"product1", "product2", "product3"}, m.ProductIDs())

	u1, _ := m.UserIndex("user1")
	p2, _ := m.ProductIndex("product2")
	assert.Equal(t, 4.0, m.At(u1, p2))
	assert.Equal(t, []float64{0, 4, 0}, m.Row(u1))
	assert.Equal(t, []float64{0, 0, 5}, m.Row(1))
	assert.Equal(t, 2, m.ObservedCount())
}

func TestBuildInteractionMatrixSkipsAndOverwrites(t *testing.T) {
	s := core.MustSnapshot(
		[]*core.User{{ID: "u", Interactions: []core.Interaction{
			rated("a", 2),
			{ProductID: "a", Type: "view"},
			rated("ghost", 5),
			{Type: "rating", Rating: f64(3)},
			rated("a", 0),
			rated("b", 1),
			rated("b", 4),
		}}},
		[]*core.Product{{ID: "a"}, {ID: "b"}},
	)
	m, err := BuildInteractionMatrix(s)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 4}, m.Row(0))
	// explicit zero rating is distinguishable from no interaction through the mask
	assert.True(t, m.Observed(0, 0))
	assert.True(t, m.Observed(0, 1))

	s2 := core.MustSnapshot(
		[]*core.User{{ID: "u"}},
		[]*core.Product{{ID: "a"}},
	)
	m2, err := BuildInteractionMatrix(s2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m2.At(0, 0))
	assert.False(t, m2.Observed(0, 0))
}

func TestBuildInteractionMatrixNoData(t *testing.T) {
	tests := []struct {
		name string
		s    *core.Snapshot
	}{
		{"nil", nil},
		{"no users", core.MustSnapshot(nil, []*core.Product{{ID: "a"}})},
		{"no products", core.MustSnapshot([]*core.User{{ID: "u"}}, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildInteractionMatrix(tt.s)
			assert.True(t, core.IsNoData(err))
		})
	}
}

func TestComputeSimilarity(t *testing.T) {
	s := core.MustSnapshot(
		[]*core.User{
			{ID: "u1", Interactions: []core.Interaction{rated("a", 5), rated("b", 3)}},
			{ID: "u2", Interactions: []core.Interaction{rated("a", 4), rated("c", 2)}},
			{ID: "u3", Interactions: []core.Interaction{rated("b", 1), rated("c", 5)}},
		},
		[]*core.Product{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
	)
	m, err := BuildInteractionMatrix(s)
	require.NoError(t, err)
	sim, err := ComputeSimilarity(m)
	require.NoError(t, err)

	n := sim.SymmetricDim()
	require.Equal(t, 4, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.InDelta(t, sim.At(i, j), sim.At(j, i), 1e-12)
			assert.GreaterOrEqual(t, sim.At(i, j), -1-1e-9)
			assert.LessOrEqual(t, sim.At(i, j), 1+1e-9)
		}
	}
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 1.0, sim.At(i, i), 1e-9)
	}
	// unrated product
	for j := 0; j < n; j++ {
		assert.Equal(t, 0.0, sim.At(3, j))
	}
	assert.Greater(t, sim.At(0, 1), 0.0)
}

func TestComputeSimilarityNil(t *testing.T) {
	_, err := ComputeSimilarity(nil)
	assert.True(t, core.IsNoData(err))
}

func TestTrainIdempotent(t *testing.T) {
	s := twoUserSnapshot()
	m1, err := Train(s, 1)
	require.NoError(t, err)
	m2, err := Train(s, 2)
	require.NoError(t, err)

	assert.Equal(t, m1.Similarity.RawSymmetric().Data, m2.Similarity.RawSymmetric().Data)
	assert.Equal(t, int64(2), m2.Version)
	assert.Same(t, s, m2.Snapshot)

	// product2 and product3 are rated by disjoint users
	assert.InDelta(t, 1.0, m1.Similar(1, 1), 1e-9)
	assert.Equal(t, 0.0, m1.Similar(1, 2))
	assert.Equal(t, 0.0, m1.Similar(0, 0))
}

func TestPin(t *testing.T) {
	assert.Nil(t, Pin(nil).Current())
	m, err := Train(twoUserSnapshot(), 7)
	require.NoError(t, err)
	assert.Same(t, m, Pin(m).Current())
}
