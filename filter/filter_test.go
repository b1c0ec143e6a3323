package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/model"
	"github.com/rushteam/prodrec/pkg/utils"
	"github.com/rushteam/prodrec/store"
)

func f(v float64) *float64 { return &v }

func candidates(ids ...string) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.NewItem(id))
	}
	return out
}

func TestBlacklistFilter(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	adapter := NewStoreAdapter(kv)
	require.NoError(t, adapter.PutBlacklist(ctx, "blacklist", []string{"p3"}))

	node := &FilterNode{Filters: []Filter{NewBlacklistFilter([]string{"p1"}, adapter, "blacklist")}}
	in := candidates("p1", "p2", "p3")
	out, err := node.Process(ctx, &core.RecommendContext{}, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, core.ItemIDs(out))
	assert.Equal(t, "filter.blacklist", in[0].Labels[utils.LabelFiltered].Source)

	// key 不存在时只用静态列表
	node = &FilterNode{Filters: []Filter{NewBlacklistFilter([]string{"p1"}, adapter, "missing")}}
	out, err = node.Process(ctx, &core.RecommendContext{}, candidates("p1", "p2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, core.ItemIDs(out))
}

func TestUserBlockFilter(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	adapter := NewStoreAdapter(kv)
	require.NoError(t, adapter.PutBlacklist(ctx, "user:block:u1", []string{"p2"}))

	node := &FilterNode{Filters: []Filter{NewUserBlockFilter(adapter, "")}}
	out, err := node.Process(ctx, &core.RecommendContext{UserID: "u1"}, candidates("p1", "p2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, core.ItemIDs(out))

	out, err = node.Process(ctx, &core.RecommendContext{UserID: "u2"}, candidates("p1", "p2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, core.ItemIDs(out))
}

func TestInteractedFilter(t *testing.T) {
	s := core.MustSnapshot(
		[]*core.User{{ID: "u1", Interactions: []core.Interaction{
			{ProductID: "p1", Rating: f(4)},
			{ProductID: "p2", Type: "view"},
		}}},
		[]*core.Product{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}},
	)
	m, err := model.Train(s, 1)
	require.NoError(t, err)
	ctx := context.Background()
	rctx := &core.RecommendContext{UserID: "u1"}

	out, err := (&FilterNode{Filters: []Filter{&InteractedFilter{Provider: model.Pin(m)}}}).
		Process(ctx, rctx, candidates("p1", "p2", "p3"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, core.ItemIDs(out))

	out, err = (&FilterNode{Filters: []Filter{&InteractedFilter{Provider: model.Pin(m), OnlyRated: true}}}).
		Process(ctx, rctx, candidates("p1", "p2", "p3"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, core.ItemIDs(out))

	// 没有模型时过滤器报错，商品保留
	out, err = (&FilterNode{Filters: []Filter{&InteractedFilter{Provider: model.Pin(nil)}}}).
		Process(ctx, rctx, candidates("p1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, core.ItemIDs(out))
}

func TestExprFilter(t *testing.T) {
	_, err := NewExprFilter("")
	assert.Error(t, err)
	_, err = NewExprFilter("item.score >")
	assert.Error(t, err)

	ef, err := NewExprFilter(`item.meta.category == "books" || item.score < 0.5`)
	require.NoError(t, err)
	assert.Equal(t, "filter.expr", ef.Name())

	in := candidates("p1", "p2", "p3")
	in[0].Score, in[0].Meta["category"] = 1, "books"
	in[1].Score, in[1].Meta["category"] = 1, "electronics"
	in[2].Score, in[2].Meta["category"] = 0.1, "electronics"

	out, err := (&FilterNode{Filters: []Filter{ef}}).Process(context.Background(), &core.RecommendContext{}, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, core.ItemIDs(out))
}
