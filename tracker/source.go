package tracker

import (
	"context"

	"github.com/juju/errors"

	"github.com/rushteam/prodrec/core"
)

// Source 把 Tracker 中的交互叠加到基础数据源上。
//
// Tracker 中出现过的用户以 Tracker 的交互列表为准，其余用户保持基础快照不变；
// 只在 Tracker 中出现的用户追加到末尾，特征为空。基础快照本身不会被修改。
type Source struct {
	Base    core.SnapshotSource
	Tracker *Tracker
}

var _ core.SnapshotSource = (*Source)(nil)

func (s *Source) Name() string {
	return s.Base.Name() + "+tracker"
}

func (s *Source) Load(ctx context.Context) (*core.Snapshot, error) {
	base, err := s.Base.Load(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if s.Tracker == nil {
		return base, nil
	}

	s.Tracker.mu.RLock()
	defer s.Tracker.mu.RUnlock()

	users := make([]*core.User, 0, len(base.Users())+len(s.Tracker.users))
	for _, u := range base.Users() {
		events, ok := s.Tracker.events[u.ID]
		if !ok {
			users = append(users, u)
			continue
		}
		cp := *u
		cp.Interactions = append([]core.Interaction(nil), events...)
		users = append(users, &cp)
	}
	for _, uid := range s.Tracker.users {
		if _, ok := base.User(uid); ok {
			continue
		}
		users = append(users, &core.User{
			ID:           uid,
			Features:     map[string]any{},
			Interactions: append([]core.Interaction(nil), s.Tracker.events[uid]...),
		})
	}
	return core.NewSnapshot(users, base.Products())
}
