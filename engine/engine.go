// Package engine 持有当前发布的一代推荐模型，并对外提供四个操作：
// Rebuild、Collaborative、ContentBased、Hybrid。
//
// 每次 Rebuild 从数据源加载快照、训练出新的一代模型并原子发布；
// 打分路径在一次调用内只读取一次当前代，因此与并发的 Rebuild 互不干扰。
package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/rushteam/prodrec/config"
	"github.com/rushteam/prodrec/config/builders"
	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/feature"
	"github.com/rushteam/prodrec/model"
	"github.com/rushteam/prodrec/pipeline"
	"github.com/rushteam/prodrec/pkg/log"
	"github.com/rushteam/prodrec/recall"
	"github.com/rushteam/prodrec/rerank"
)

// 推荐模式，同时用作指标的 mode 标签。
const (
	ModeCollaborative = "collaborative"
	ModeContent       = "content"
	ModeHybrid        = "hybrid"
	ModePipeline      = "pipeline"
)

// Engine 是推荐引擎，可并发使用。
type Engine struct {
	source  core.SnapshotSource
	current atomic.Pointer[model.Model]
	mu      sync.Mutex // 串行化 Rebuild

	config     core.RecallConfig
	poolSize   int
	extractor  feature.FeatureExtractor
	store      core.Store
	popularKey string
}

// Option 配置 Engine
type Option func(*Engine)

// WithRecallConfig 设置默认推荐数量与混合权重
func WithRecallConfig(c core.RecallConfig) Option {
	return func(e *Engine) {
		e.config = c
	}
}

// WithPoolSize 设置混合推荐从每个打分器取的候选数，<= 0 时取请求的 n。
func WithPoolSize(n int) Option {
	return func(e *Engine) {
		e.poolSize = n
	}
}

// WithExtractor 替换内容打分的特征抽取器
func WithExtractor(x feature.FeatureExtractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithStore 设置配置化 Pipeline 使用的存储（热门有序集合、黑名单等）。
func WithStore(s core.Store, popularKey string) Option {
	return func(e *Engine) {
		e.store = s
		e.popularKey = popularKey
	}
}

// New 创建引擎。在第一次成功的 Rebuild 之前，所有打分操作都返回空列表。
func New(source core.SnapshotSource, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		config: &core.DefaultRecallConfig{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ model.Provider = (*Engine)(nil)

// Current 返回当前发布的一代模型，尚未训练时为 nil。
func (e *Engine) Current() *model.Model {
	return e.current.Load()
}

// Config 返回默认值配置
func (e *Engine) Config() core.RecallConfig {
	return e.config
}

// Rebuild 从数据源加载快照并发布新一代模型。失败时保留之前发布的一代。
func (e *Engine) Rebuild(ctx context.Context) error {
	if e.source == nil {
		return errors.NotValidf("engine without snapshot source")
	}
	s, err := e.source.Load(ctx)
	if err != nil {
		RebuildTotal.WithLabelValues(core.ErrorReason(err)).Inc()
		log.Logger().Warn("load snapshot failed, keep previous model",
			zap.String("source", e.source.Name()), zap.Error(err))
		return errors.Annotatef(err, "load snapshot from %s", e.source.Name())
	}
	return e.RebuildFrom(ctx, s)
}

// RebuildFrom 用给定快照训练并发布新一代模型。
func (e *Engine) RebuildFrom(_ context.Context, s *core.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	var version int64 = 1
	if prev := e.current.Load(); prev != nil {
		version = prev.Version + 1
	}
	m, err := model.Train(s, version)
	if err != nil {
		RebuildTotal.WithLabelValues(core.ErrorReason(err)).Inc()
		log.Logger().Warn("rebuild failed, keep previous model", zap.Error(err))
		return err
	}
	e.current.Store(m)

	users, products := m.Matrix.Dims()
	RebuildTotal.WithLabelValues("ok").Inc()
	RebuildSeconds.Observe(time.Since(start).Seconds())
	ModelVersion.Set(float64(version))
	ModelUsers.Set(float64(users))
	ModelProducts.Set(float64(products))
	log.Logger().Info("model rebuilt",
		zap.Int64("version", version),
		zap.Int("users", users),
		zap.Int("products", products),
		zap.Int("observed", m.Matrix.ObservedCount()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Loop 每隔 interval 执行一次 Rebuild，直到 ctx 结束。interval <= 0 时立即返回。
func (e *Engine) Loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = e.Rebuild(ctx)
		}
	}
}

// Generation 固定一代模型：同一次请求的打分与商品解析都基于它，不受并发 Rebuild 影响。
type Generation struct {
	e *Engine
	m *model.Model
}

// Pin 固定当前一代模型。尚未训练时 Model 返回 nil，所有打分返回空列表。
func (e *Engine) Pin() *Generation {
	return &Generation{e: e, m: e.current.Load()}
}

// Model 返回固定的一代模型，可能为 nil。
func (g *Generation) Model() *model.Model {
	return g.m
}

// Version 返回模型版本，未训练时为 0。
func (g *Generation) Version() int64 {
	if g.m == nil {
		return 0
	}
	return g.m.Version
}

// Products 按 ids 顺序解析商品，跳过本代快照中不存在的 ID。
func (g *Generation) Products(ids []string) []*core.Product {
	out := make([]*core.Product, 0, len(ids))
	if g.m == nil {
		return out
	}
	for _, id := range ids {
		if p, ok := g.m.Snapshot.Product(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// Collaborative 返回协同过滤的前 n 个商品，已评分商品不会出现。
func (e *Engine) Collaborative(ctx context.Context, userID string, n int) []string {
	return e.Pin().Collaborative(ctx, userID, n)
}

// ContentBased 返回内容打分的前 n 个商品。
func (e *Engine) ContentBased(ctx context.Context, userID string, n int) []string {
	return e.Pin().ContentBased(ctx, userID, n)
}

// Hybrid 按名次加权融合协同过滤与内容打分的结果，见 Generation.Hybrid。
func (e *Engine) Hybrid(ctx context.Context, userID string, n int, collabWeight float64, opts ...HybridOption) []string {
	return e.Pin().Hybrid(ctx, userID, n, collabWeight, opts...)
}

// RunPipeline 用当前一代模型执行配置化的 Pipeline。
func (e *Engine) RunPipeline(ctx context.Context, cfg *pipeline.Config, userID string, n int) ([]string, error) {
	return e.Pin().RunPipeline(ctx, cfg, userID, n)
}

// Popular 返回热门商品，用于冷启动用户。
func (e *Engine) Popular(ctx context.Context, n int) []string {
	return e.Pin().Popular(ctx, n)
}

func (g *Generation) Collaborative(_ context.Context, userID string, n int) []string {
	if g.m == nil {
		return g.e.observe(ModeCollaborative, nil, core.ErrStaleCache)
	}
	ids, err := recall.Predict(g.m, userID, n)
	return g.e.observe(ModeCollaborative, ids, err)
}

func (g *Generation) ContentBased(ctx context.Context, userID string, n int) []string {
	if g.m == nil {
		return g.e.observe(ModeContent, nil, core.ErrStaleCache)
	}
	src := recall.NewContentRecall(model.Pin(g.m), recall.WithContentExtractor(g.e.extractor))
	items, err := src.Recall(ctx, &core.RecommendContext{UserID: userID, TopN: n})
	return g.e.observe(ModeContent, core.ItemIDs(items), err)
}

// HybridOption 配置单次混合推荐
type HybridOption func(*hybridOptions)

type hybridOptions struct {
	pool int
}

// WithPool 覆盖本次调用的候选池大小
func WithPool(n int) HybridOption {
	return func(o *hybridOptions) {
		o.pool = n
	}
}

// Hybrid 按名次加权融合协同过滤与内容打分的结果。collabWeight 截断到 [0, 1]，
// NaN 按默认权重处理。
func (g *Generation) Hybrid(ctx context.Context, userID string, n int, collabWeight float64, opts ...HybridOption) []string {
	if g.m == nil {
		return g.e.observe(ModeHybrid, nil, core.ErrStaleCache)
	}
	if n <= 0 {
		return g.e.observe(ModeHybrid, nil, nil)
	}
	o := hybridOptions{pool: g.e.poolSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pool <= 0 {
		o.pool = n
	}
	if math.IsNaN(collabWeight) {
		collabWeight = g.e.config.DefaultCollabWeight()
	}
	w := lo.Clamp(collabWeight, 0, 1)

	provider := model.Pin(g.m)
	p := &pipeline.Pipeline{
		Name: ModeHybrid,
		Nodes: []pipeline.Node{
			&recall.Fanout{
				Sources: []recall.Source{
					&recall.ItemCF{Provider: provider, TopK: o.pool},
					recall.NewContentRecall(provider,
						recall.WithContentExtractor(g.e.extractor),
						recall.WithContentTopK(o.pool)),
				},
				Dedup: true,
				MergeStrategy: &recall.WeightedRankMergeStrategy{
					Weights: map[string]float64{
						ModeCollaborative: w,
						ModeContent:       1 - w,
					},
					Pool: o.pool,
				},
			},
			&rerank.TopNNode{N: n},
		},
	}
	items, err := p.Run(ctx, &core.RecommendContext{UserID: userID, TopN: n}, nil)
	if err == nil && len(items) == 0 {
		if _, ok := g.m.Snapshot.User(userID); !ok {
			err = core.ErrUnknownUser
		}
	}
	return g.e.observe(ModeHybrid, core.ItemIDs(items), err)
}

// Factory 返回绑定到 provider 的 NodeFactory，provider 为 nil 时绑定当前代。
func (e *Engine) Factory(provider model.Provider) *pipeline.NodeFactory {
	if provider == nil {
		provider = model.Pin(e.current.Load())
	}
	return builders.Bind(config.DefaultFactory(), builders.Deps{Provider: provider, Store: e.store})
}

// RunPipeline 构建并执行配置化的 Pipeline，只有构建失败时返回错误。
func (g *Generation) RunPipeline(ctx context.Context, cfg *pipeline.Config, userID string, n int) ([]string, error) {
	if g.m == nil {
		return g.e.observe(ModePipeline, nil, core.ErrStaleCache), nil
	}
	if n <= 0 {
		return g.e.observe(ModePipeline, nil, nil), nil
	}
	p, err := cfg.BuildPipeline(g.e.Factory(model.Pin(g.m)))
	if err != nil {
		return nil, errors.Annotate(err, "build pipeline")
	}
	items, err := p.Run(ctx, &core.RecommendContext{UserID: userID, TopN: n}, nil)
	return g.e.observe(ModePipeline, core.ItemIDs(items), err), nil
}

func (g *Generation) Popular(ctx context.Context, n int) []string {
	if g.m == nil {
		return []string{}
	}
	src := &recall.Popular{Provider: model.Pin(g.m), Store: g.e.store, Key: g.e.popularKey, TopK: n}
	items, err := src.Recall(ctx, &core.RecommendContext{TopN: n})
	if err != nil {
		log.Logger().Debug("popular degraded", zap.Error(err))
		return []string{}
	}
	return core.ItemIDs(items)
}

// observe 记录指标，并把所有失败降级为空列表。
func (e *Engine) observe(mode string, ids []string, err error) []string {
	RecommendTotal.WithLabelValues(mode).Inc()
	if err != nil {
		RecommendEmptyTotal.WithLabelValues(mode, core.ErrorReason(err)).Inc()
		log.Logger().Debug("recommend degraded to empty",
			zap.String("mode", mode), zap.String("reason", core.ErrorReason(err)), zap.Error(err))
		return []string{}
	}
	if len(ids) == 0 {
		RecommendEmptyTotal.WithLabelValues(mode, "EMPTY").Inc()
		return []string{}
	}
	return ids
}
