package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/engine"
	"github.com/rushteam/prodrec/pipeline"
	"github.com/rushteam/prodrec/tracker"
)

func f(v float64) *float64 { return &v }

func str(s string) *string { return &s }

func newTestServer(t *testing.T, rebuild bool) (*httptest.Server, *engine.Engine) {
	t.Helper()
	base := &core.StaticSource{Snapshot: core.MustSnapshot(
		[]*core.User{
			{ID: "u1", Name: "One", Preferences: []string{"books"},
				Interactions: []core.Interaction{{ProductID: "p1", Type: "rating", Rating: f(5)}}},
			{ID: "u2", Interactions: []core.Interaction{{ProductID: "p1", Rating: f(4)}, {ProductID: "p2", Rating: f(4)}}},
		},
		[]*core.Product{
			{ID: "p1", Name: "Phone", Category: str("electronics"), Price: f(10)},
			{ID: "p2", Name: "Novel", Category: str("books"), Price: f(20)},
			{ID: "p3", Name: "Comic", Category: str("books"), Price: f(5), AvgRating: f(4)},
		},
	)}
	tr := tracker.New()
	tr.Seed(base.Snapshot)
	e := engine.New(&tracker.Source{Base: base, Tracker: tr})
	if rebuild {
		require.NoError(t, e.Rebuild(context.Background()))
	}
	cfg, err := pipeline.ParseYAML([]byte(`
pipeline:
  nodes:
    - type: recall.content
    - type: filter
      config:
        filters:
          - {type: interacted}
`))
	require.NoError(t, err)

	ts := httptest.NewServer(New(e, tr, WithPipeline(cfg)).Router())
	t.Cleanup(ts.Close)
	return ts, e
}

func get(t *testing.T, url string) (int, gjson.Result) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, gjson.ParseBytes(b)
}

func post(t *testing.T, url, body string) (int, gjson.Result) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, gjson.ParseBytes(b)
}

func ids(r gjson.Result) []string {
	out := []string{}
	for _, v := range r.Array() {
		out = append(out, v.String())
	}
	return out
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, false)
	code, body := get(t, ts.URL+"/api/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "not_ready", body.Get("status").String())

	code, body = post(t, ts.URL+"/api/rebuild", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), body.Get("version").Int())

	_, body = get(t, ts.URL+"/api/health")
	assert.Equal(t, "ok", body.Get("status").String())
}

func TestRecommend(t *testing.T) {
	ts, _ := newTestServer(t, true)

	tests := []struct {
		query string
		want  []string
	}{
		{"?n=3&weight=0.5", []string{"p2", "p3", "p1"}},
		{"?n=3&mode=collaborative", []string{"p2", "p3"}},
		{"?n=2&mode=content", []string{"p2", "p1"}},
		{"?n=1&mode=popular", []string{"p3"}},
		{"?n=3&weight=0.5&pool=1", []string{"p2"}},
		{"?n=5&mode=pipeline", []string{"p2", "p3"}},
		{"?n=0", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			code, body := get(t, ts.URL+"/api/recommend/u1"+tt.query)
			require.Equal(t, http.StatusOK, code)
			assert.True(t, body.Get("success").Bool())
			assert.Equal(t, tt.want, ids(body.Get("product_ids")))
			assert.Equal(t, tt.want, ids(body.Get("products.#.id")))
		})
	}

	_, body := get(t, ts.URL+"/api/recommend/u1?n=1&mode=content")
	assert.Equal(t, "Novel", body.Get("products.0.name").String())
	assert.Equal(t, 20.0, body.Get("products.0.price").Float())

	// 默认 n = 5，默认权重 0.7
	_, body = get(t, ts.URL+"/api/recommend/u1")
	assert.Equal(t, []string{"p2", "p3", "p1"}, ids(body.Get("product_ids")))
	assert.Equal(t, "hybrid", body.Get("mode").String())

	code, body := get(t, ts.URL+"/api/recommend/ghost")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, ids(body.Get("product_ids")))

	for _, q := range []string{"?n=abc", "?weight=x", "?weight=NaN", "?weight=-Inf", "?pool=1.5", "?mode=magic"} {
		code, _ := get(t, ts.URL+"/api/recommend/u1"+q)
		assert.Equal(t, http.StatusBadRequest, code, q)
	}
}

func TestTrackAndRebuild(t *testing.T) {
	ts, e := newTestServer(t, true)

	code, body := post(t, ts.URL+"/api/interactions", `{"user_id": "u1", "product_id": "p3", "type": "rating", "value": 3}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Get("success").Bool())
	assert.Equal(t, 3.0, body.Get("interaction.rating").Float())

	for _, bad := range []string{`{"user_id": "u1"}`, `{"user_id": "", "product_id": "p1", "type": "view"}`, `not json`} {
		code, body := post(t, ts.URL+"/api/interactions", bad)
		assert.Equal(t, http.StatusBadRequest, code, bad)
		assert.False(t, body.Get("success").Bool())
	}

	code, body = get(t, ts.URL+"/api/users/u1/interactions")
	require.Equal(t, http.StatusOK, code)
	events := body.Get("interactions").Array()
	require.Len(t, events, 2)
	assert.Equal(t, "p3", events[0].Get("product_id").String())
	assert.Equal(t, "Comic", events[0].Get("product_name").String())
	assert.Equal(t, "Phone", events[1].Get("product_name").String())

	_, body = get(t, ts.URL+"/api/users/u1/interactions?limit=1")
	assert.Len(t, body.Get("interactions").Array(), 1)

	_, body = get(t, ts.URL+"/api/products/p1/interactions")
	assert.Equal(t, []string{"u1", "u2"}, ids(body.Get("interactions.#.user_id")))

	code, body = post(t, ts.URL+"/api/rebuild", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(2), body.Get("version").Int())
	assert.Equal(t, []string{"p2"}, e.Collaborative(context.Background(), "u1", 3))
}

func TestRebuildFailure(t *testing.T) {
	e := engine.New(&core.StaticSource{})
	ts := httptest.NewServer(New(e, nil).Router())
	defer ts.Close()

	code, body := post(t, ts.URL+"/api/rebuild", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, core.ErrorCodeNoData, body.Get("code").String())

	code, _ = post(t, ts.URL+"/api/interactions", `{}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCatalog(t *testing.T) {
	ts, _ := newTestServer(t, true)
	_, body := get(t, ts.URL+"/api/users")
	assert.Equal(t, []string{"u1", "u2"}, ids(body.Get("users")))
	_, body = get(t, ts.URL+"/api/products")
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(body.Get("products.#.id")))

	code, _ := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
}
