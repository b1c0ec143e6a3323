package engine

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/prodrec/config"
	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/pipeline"
	"github.com/rushteam/prodrec/store"
	"github.com/rushteam/prodrec/tracker"
)

func f(v float64) *float64 { return &v }

func str(s string) *string { return &s }

// 两个用户三个商品：
//
//	u1 偏好 books，给 p1 打 5 分
//	u2 给 p1、p2 各打 4 分
//
// 协同过滤（u1）：p2 ≈ 5，p3 = 0
// 内容打分（u1）：p1 = 0+10+0+5 = 15，p2 = 1+20+0+0 = 21，p3 = 1+5+4+0 = 10
func testSnapshot() *core.Snapshot {
	return core.MustSnapshot(
		[]*core.User{
			{ID: "u1", Preferences: []string{"books"}, Interactions: []core.Interaction{{ProductID: "p1", Rating: f(5)}}},
			{ID: "u2", Interactions: []core.Interaction{{ProductID: "p1", Rating: f(4)}, {ProductID: "p2", Rating: f(4)}}},
		},
		[]*core.Product{
			{ID: "p1", Category: str("electronics"), Price: f(10)},
			{ID: "p2", Category: str("books"), Price: f(20)},
			{ID: "p3", Category: str("books"), Price: f(5), AvgRating: f(4)},
		},
	)
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := New(&core.StaticSource{Snapshot: testSnapshot()}, opts...)
	require.NoError(t, e.Rebuild(context.Background()))
	return e
}

func TestEmptyBeforeFirstRebuild(t *testing.T) {
	ctx := context.Background()
	e := New(&core.StaticSource{Snapshot: testSnapshot()})
	assert.Nil(t, e.Current())

	for _, ids := range [][]string{
		e.Collaborative(ctx, "u1", 3),
		e.ContentBased(ctx, "u1", 3),
		e.Hybrid(ctx, "u1", 3, 0.7),
		e.Popular(ctx, 3),
	} {
		assert.Empty(t, ids)
	}
	ids, err := e.RunPipeline(ctx, &pipeline.Config{}, "u1", 3)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCollaborativeScenario(t *testing.T) {
	s := core.MustSnapshot(
		[]*core.User{
			{ID: "user1", Interactions: []core.Interaction{{ProductID: "product2", Rating: f(4)}}},
			{ID: "user2", Interactions: []core.Interaction{{ProductID: "product3", Rating: f(5)}}},
		},
		[]*core.Product{{ID: "product1"}, {ID: "product2"}, {ID: "product3"}},
	)
	e := New(&core.StaticSource{Snapshot: s})
	require.NoError(t, e.Rebuild(context.Background()))

	assert.Equal(t, []string{"product1", "product3"}, e.Collaborative(context.Background(), "user1", 5))
}

func TestScorers(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	assert.Equal(t, []string{"p2", "p3"}, e.Collaborative(ctx, "u1", 3))
	assert.Equal(t, []string{"p2"}, e.Collaborative(ctx, "u1", 1))
	assert.Equal(t, []string{"p2", "p1", "p3"}, e.ContentBased(ctx, "u1", 3))
	assert.Equal(t, []string{"p2", "p1"}, e.ContentBased(ctx, "u1", 2))

	for _, ids := range [][]string{
		e.Collaborative(ctx, "ghost", 3),
		e.ContentBased(ctx, "ghost", 3),
		e.Hybrid(ctx, "ghost", 3, 0.5),
		e.Collaborative(ctx, "u1", 0),
		e.ContentBased(ctx, "u1", -1),
		e.Hybrid(ctx, "u1", 0, 0.5),
	} {
		assert.NotNil(t, ids)
		assert.Empty(t, ids)
	}
}

func TestHybrid(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	// pool = 3
	// 协同 [p2, p3]      w=0.5 → p2 1.5, p3 1.0
	// 内容 [p2, p1, p3]  w=0.5 → p2 1.5, p1 1.0, p3 0.5
	// 合计 p2 3.0, p3 1.5, p1 1.0
	tests := []struct {
		name   string
		n      int
		weight float64
		opts   []HybridOption
		want   []string
	}{
		{"balanced", 3, 0.5, nil, []string{"p2", "p3", "p1"}},
		{"truncate", 2, 0.5, nil, []string{"p2", "p3"}},
		{"collaborative only", 3, 1, nil, []string{"p2", "p3", "p1"}},
		{"content only", 3, 0, nil, []string{"p2", "p1", "p3"}},
		{"weight clamped high", 3, 7, nil, []string{"p2", "p3", "p1"}},
		{"weight clamped low", 3, -2, nil, []string{"p2", "p1", "p3"}},
		{"pool of one", 3, 0.5, []HybridOption{WithPool(1)}, []string{"p2"}},
		{"pool larger than n", 1, 0.5, []HybridOption{WithPool(3)}, []string{"p2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Hybrid(ctx, "u1", tt.n, tt.weight, tt.opts...))
		})
	}
}

func TestHybridNaNWeightUsesDefault(t *testing.T) {
	ctx := context.Background()
	// 默认权重 0 即只看内容打分
	e := newEngine(t, WithRecallConfig(&config.Settings{
		Recommend: config.RecommendSettings{DefaultN: 5, CollabWeight: 0},
	}))
	assert.Equal(t, []string{"p2", "p1", "p3"}, e.Hybrid(ctx, "u1", 3, math.NaN()))
	assert.Equal(t, []string{"p2", "p3", "p1"}, e.Hybrid(ctx, "u1", 3, math.Inf(1)))
}

func TestPinnedGenerationSurvivesRebuild(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	g := e.Pin()

	renamed := core.MustSnapshot(
		[]*core.User{{ID: "u1", Interactions: []core.Interaction{{ProductID: "p9", Rating: f(5)}}}},
		[]*core.Product{{ID: "p9", Name: "New"}},
	)
	require.NoError(t, e.RebuildFrom(ctx, renamed))
	assert.Equal(t, int64(2), e.Current().Version)

	assert.Equal(t, int64(1), g.Version())
	ids := g.Collaborative(ctx, "u1", 3)
	assert.Equal(t, []string{"p2", "p3"}, ids)
	products := g.Products(ids)
	require.Len(t, products, 2)
	assert.Equal(t, "p2", products[0].ID)
	assert.Empty(t, g.Products([]string{"p9"}))

	stale := New(nil).Pin()
	assert.Nil(t, stale.Model())
	assert.Equal(t, int64(0), stale.Version())
	assert.Empty(t, stale.Products([]string{"p1"}))
}

func TestHybridEnginePoolSize(t *testing.T) {
	ctx := context.Background()
	// pool = 2
	// 协同 [p2, p3]  w=0.7 → p2 1.4, p3 0.7
	// 内容 [p2, p1]  w=0.3 → p2 0.6, p1 0.3
	e := newEngine(t, WithPoolSize(2))
	assert.Equal(t, []string{"p2", "p3", "p1"}, e.Hybrid(ctx, "u1", 3, 0.7))
	// 单次调用的 pool 优先
	assert.Equal(t, []string{"p2"}, e.Hybrid(ctx, "u1", 3, 0.7, WithPool(1)))
}

func TestRebuildKeepsPreviousGeneration(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	first := e.Current()
	require.NotNil(t, first)
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, 1.0, testutil.ToFloat64(ModelVersion))
	assert.Equal(t, 3.0, testutil.ToFloat64(ModelProducts))

	empty := core.MustSnapshot(nil, []*core.Product{{ID: "p1"}})
	err := e.RebuildFrom(ctx, empty)
	assert.True(t, core.IsNoData(err))
	assert.Same(t, first, e.Current())

	failing := New(&core.StaticSource{})
	assert.True(t, core.IsNoData(failing.Rebuild(ctx)))
	assert.Nil(t, failing.Current())
	assert.Error(t, New(nil).Rebuild(ctx))

	require.NoError(t, e.Rebuild(ctx))
	assert.Equal(t, int64(2), e.Current().Version)
	assert.Equal(t, []string{"p2", "p3"}, e.Collaborative(ctx, "u1", 3))
}

func TestRebuildSeesTrackedEvents(t *testing.T) {
	ctx := context.Background()
	base := &core.StaticSource{Snapshot: testSnapshot()}
	tr := tracker.New()
	tr.Seed(base.Snapshot)
	e := New(&tracker.Source{Base: base, Tracker: tr})
	require.NoError(t, e.Rebuild(ctx))
	assert.Equal(t, []string{"p2", "p3"}, e.Collaborative(ctx, "u1", 3))

	_, err := tr.Track(ctx, "u1", "p3", tracker.TypeRating, f(3))
	require.NoError(t, err)
	_, err = tr.Track(ctx, "u9", "p2", tracker.TypeRating, f(5))
	require.NoError(t, err)
	require.NoError(t, e.Rebuild(ctx))

	assert.Equal(t, []string{"p2"}, e.Collaborative(ctx, "u1", 3))
	assert.Equal(t, []string{"p1", "p3"}, e.Collaborative(ctx, "u9", 3))
}

func TestRunPipeline(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	require.NoError(t, kv.ZAdd(ctx, "popular", 9, "p3"))
	e := newEngine(t, WithStore(kv, "popular"))

	cfg, err := pipeline.ParseYAML([]byte(`
pipeline:
  name: cold-start
  nodes:
    - type: recall.fanout
      config:
        merge_strategy: first
        sources:
          - {type: collaborative}
          - {type: popular, key: popular}
    - type: filter
      config:
        filters:
          - {type: interacted, only_rated: true}
    - type: rerank.topn
`))
	require.NoError(t, err)

	ids, err := e.RunPipeline(ctx, cfg, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, ids)

	// 未知用户只剩热门召回
	ids, err = e.RunPipeline(ctx, cfg, "ghost", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, ids)

	bad, err := pipeline.ParseYAML([]byte(`
pipeline:
  nodes:
    - type: rank.unknown
`))
	require.NoError(t, err)
	_, err = e.RunPipeline(ctx, bad, "u1", 2)
	assert.Error(t, err)
}

func TestPopular(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	// 只有 p3 有平均评分
	assert.Equal(t, []string{"p3", "p1"}, e.Popular(ctx, 2))
	assert.Empty(t, e.Popular(ctx, 0))
}

func TestConcurrentRebuildAndScore(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.Rebuild(ctx))
		}()
		go func() {
			defer wg.Done()
			assert.Equal(t, []string{"p2", "p3", "p1"}, e.Hybrid(ctx, "u1", 3, 0.5))
			assert.Equal(t, []string{"p2", "p3"}, e.Collaborative(ctx, "u1", 3))
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(9), e.Current().Version)
}
