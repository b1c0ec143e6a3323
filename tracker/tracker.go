// Package tracker 记录用户对商品的行为事件（浏览、点击、购买、评分），
// 并作为数据源叠加到基础快照上，使下一次 Rebuild 能看到新事件。
package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/pkg/log"
)

// TypeRating 是评分事件的类型，评分事件的 value 同时作为 rating 写入。
const TypeRating = "rating"

// Tracker 按用户保存交互事件，可选地持久化到 core.Store。并发安全。
type Tracker struct {
	mu     sync.RWMutex
	events map[string][]core.Interaction
	users  []string // 用户首次出现的顺序

	store      core.Store
	key        string
	popularKey string
	now        func() time.Time

	writeMu   sync.Mutex // 串行化写回
	writeBase core.SnapshotSource
	writer    core.SnapshotSaver
}

// Option 配置 Tracker
type Option func(*Tracker)

// WithStore 设置持久化存储，每次 Track 后自动保存到 key。
func WithStore(s core.Store, key string) Option {
	return func(t *Tracker) {
		t.store = s
		if key != "" {
			t.key = key
		}
	}
}

// WithPopularityKey 设置热度有序集合的 key，存储需实现 core.KeyValueStore。
func WithPopularityKey(key string) Option {
	return func(t *Tracker) {
		t.popularKey = key
	}
}

// WithWriteBack 每次 Track 后把全部交互叠加到 base 快照上，再通过 w 整体写回，
// 例如 base 与 w 都是同一个 store.FileSource 时，交互会写进数据文件的 users.<id>.interactions。
func WithWriteBack(base core.SnapshotSource, w core.SnapshotSaver) Option {
	return func(t *Tracker) {
		t.writeBase = base
		t.writer = w
	}
}

// WithClock 替换时间来源（测试用）
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// New 创建 Tracker
func New(opts ...Option) *Tracker {
	t := &Tracker{
		events: make(map[string][]core.Interaction),
		key:    "prodrec:interactions",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track 记录一次交互。用户或商品 ID 为空时返回 INVALID_INPUT。
func (t *Tracker) Track(ctx context.Context, userID, productID, typ string, value *float64) (core.Interaction, error) {
	if userID == "" || productID == "" {
		return core.Interaction{}, core.NewDomainError(core.ModuleTracker, core.ErrorCodeInvalidInput,
			"tracker: user_id and product_id are required")
	}
	in := core.Interaction{
		ProductID: productID,
		Type:      typ,
		Timestamp: t.now().UTC(),
	}
	if value != nil {
		v := *value
		in.Value = &v
		if typ == TypeRating {
			r := v
			in.Rating = &r
		}
	}

	t.mu.Lock()
	t.appendLocked(userID, in)
	t.mu.Unlock()

	if kv, ok := t.store.(core.KeyValueStore); ok && t.popularKey != "" {
		if _, err := kv.ZIncrBy(ctx, t.popularKey, 1, productID); err != nil {
			log.Logger().Warn("update popularity failed", zap.String("product_id", productID), zap.Error(err))
		}
	}
	if err := t.Save(ctx); err != nil {
		log.Logger().Warn("auto save interactions failed", zap.String("key", t.key), zap.Error(err))
	}
	if err := t.WriteBack(ctx); err != nil {
		log.Logger().Warn("write back interactions failed", zap.Error(err))
	}
	return in, nil
}

// WriteBack 把当前交互叠加到写回数据源的快照并保存。未配置写回时不做任何事。
func (t *Tracker) WriteBack(ctx context.Context) error {
	if t.writer == nil || t.writeBase == nil {
		return nil
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	s, err := (&Source{Base: t.writeBase, Tracker: t}).Load(ctx)
	if err != nil {
		return errors.Annotatef(err, "load %s for write back", t.writeBase.Name())
	}
	return errors.Trace(t.writer.Save(ctx, s))
}

func (t *Tracker) appendLocked(userID string, in ...core.Interaction) {
	if _, ok := t.events[userID]; !ok {
		t.users = append(t.users, userID)
	}
	t.events[userID] = append(t.events[userID], in...)
}

// Seed 用快照中已有的交互初始化尚未出现的用户。
func (t *Tracker) Seed(s *core.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, u := range s.Users() {
		if _, ok := t.events[u.ID]; ok || len(u.Interactions) == 0 {
			continue
		}
		t.appendLocked(u.ID, u.Interactions...)
	}
}

// UserInteractions 返回用户的交互，按时间从新到旧；limit <= 0 表示全部。
func (t *Tracker) UserInteractions(userID string, limit int) []core.Interaction {
	t.mu.RLock()
	out := append([]core.Interaction(nil), t.events[userID]...)
	t.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ProductInteraction 是带用户 ID 的交互。
type ProductInteraction struct {
	UserID string `json:"user_id"`
	core.Interaction
}

// ProductInteractions 返回所有用户对某商品的交互，按用户首次出现顺序。
func (t *Tracker) ProductInteractions(productID string) []ProductInteraction {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []ProductInteraction
	for _, uid := range t.users {
		for _, in := range t.events[uid] {
			if in.ProductID == productID {
				out = append(out, ProductInteraction{UserID: uid, Interaction: in})
			}
		}
	}
	return out
}

// Users 返回出现过的用户 ID，按首次出现顺序。
func (t *Tracker) Users() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.users...)
}

type userEvents struct {
	UserID       string             `json:"user_id"`
	Interactions []core.Interaction `json:"interactions"`
}

// Save 把全部交互写入存储。
func (t *Tracker) Save(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	t.mu.RLock()
	doc := make([]userEvents, 0, len(t.users))
	for _, uid := range t.users {
		doc = append(doc, userEvents{UserID: uid, Interactions: t.events[uid]})
	}
	data, err := json.Marshal(doc)
	t.mu.RUnlock()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(t.store.Set(ctx, t.key, data), "save interactions to %s", t.key)
}

// Load 从存储读取交互，覆盖同一用户的内存记录。key 不存在时不做任何事。
func (t *Tracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	data, err := t.store.Get(ctx, t.key)
	if core.IsStoreNotFound(err) {
		return nil
	}
	if err != nil {
		return errors.Annotatef(err, "load interactions from %s", t.key)
	}
	var doc []userEvents
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Annotatef(err, "decode interactions from %s", t.key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ue := range doc {
		if _, ok := t.events[ue.UserID]; !ok {
			t.users = append(t.users, ue.UserID)
		}
		t.events[ue.UserID] = ue.Interactions
	}
	return nil
}
