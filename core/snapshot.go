package core

import (
	"context"
	"fmt"
	"time"
)

// Interaction 是用户对商品的一次行为事件（view / click / purchase / rating ...）。
//
// ProductID 为空表示该事件没有商品引用；ProductID 可以指向快照中不存在的商品。
// Rating 只在评分类事件上出现；Value 是事件携带的原始数值。
type Interaction struct {
	ProductID string    `json:"product_id,omitempty"`
	Type      string    `json:"type,omitempty"`
	Value     *float64  `json:"value,omitempty"`
	Rating    *float64  `json:"rating,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HasRating 表示该事件同时带有商品引用和评分，可以写入交互矩阵。
func (in Interaction) HasRating() bool {
	return in.ProductID != "" && in.Rating != nil
}

// User 是快照中的用户记录。
//
// Preferences 为 nil 表示用户没有偏好集合；非 nil 的空切片表示偏好集合存在但为空。
// Features 保存除 interactions 以外的全部原始字段。
type User struct {
	ID           string         `json:"id"`
	Name         string         `json:"name,omitempty"`
	Features     map[string]any `json:"features,omitempty"`
	Preferences  []string       `json:"preferences"`
	Interactions []Interaction  `json:"interactions,omitempty"`
}

// HasPreferences 返回用户是否带有偏好集合。
func (u *User) HasPreferences() bool {
	return u.Preferences != nil
}

// Prefers 判断 category 是否在用户偏好集合中。
func (u *User) Prefers(category string) bool {
	for _, p := range u.Preferences {
		if p == category {
			return true
		}
	}
	return false
}

// Product 是快照中的商品记录，可选属性为 nil 表示缺失。
type Product struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Category   *string        `json:"category,omitempty"`
	Price      *float64       `json:"price,omitempty"`
	AvgRating  *float64       `json:"avg_rating,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Snapshot 是某一时刻的用户 / 商品数据快照。
//
// 用户与商品以有序切片保存，迭代顺序即构造顺序；构造后只读，引擎从不修改快照。
type Snapshot struct {
	users    []*User
	products []*Product

	userIndex    map[string]int
	productIndex map[string]int
}

// NewSnapshot 按给定顺序构建快照，重复 ID 返回 INVALID_INPUT。
func NewSnapshot(users []*User, products []*Product) (*Snapshot, error) {
	s := &Snapshot{
		users:        make([]*User, 0, len(users)),
		products:     make([]*Product, 0, len(products)),
		userIndex:    make(map[string]int, len(users)),
		productIndex: make(map[string]int, len(products)),
	}
	for _, u := range users {
		if u == nil {
			continue
		}
		if _, ok := s.userIndex[u.ID]; ok {
			return nil, NewDomainError(ModuleSnapshot, ErrorCodeInvalidInput, fmt.Sprintf("snapshot: duplicate user id %q", u.ID))
		}
		s.userIndex[u.ID] = len(s.users)
		s.users = append(s.users, u)
	}
	for _, p := range products {
		if p == nil {
			continue
		}
		if _, ok := s.productIndex[p.ID]; ok {
			return nil, NewDomainError(ModuleSnapshot, ErrorCodeInvalidInput, fmt.Sprintf("snapshot: duplicate product id %q", p.ID))
		}
		s.productIndex[p.ID] = len(s.products)
		s.products = append(s.products, p)
	}
	return s, nil
}

// MustSnapshot 同 NewSnapshot，出错时 panic，用于测试与示例数据。
func MustSnapshot(users []*User, products []*Product) *Snapshot {
	s, err := NewSnapshot(users, products)
	if err != nil {
		panic(err)
	}
	return s
}

// Users 返回有序用户列表（调用方不得修改）。
func (s *Snapshot) Users() []*User {
	if s == nil {
		return nil
	}
	return s.users
}

// Products 返回有序商品列表（调用方不得修改）。
func (s *Snapshot) Products() []*Product {
	if s == nil {
		return nil
	}
	return s.products
}

// User 按 ID 查找用户。
func (s *Snapshot) User(id string) (*User, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.userIndex[id]
	if !ok {
		return nil, false
	}
	return s.users[i], true
}

// Product 按 ID 查找商品。
func (s *Snapshot) Product(id string) (*Product, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.productIndex[id]
	if !ok {
		return nil, false
	}
	return s.products[i], true
}

// Empty 表示快照中没有用户或没有商品。
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.users) == 0 || len(s.products) == 0
}

// Validate 校验快照完整性：必须有数据，每条交互都必须引用一个存在的商品。
func (s *Snapshot) Validate() error {
	if s.Empty() {
		return ErrNoData
	}
	for _, u := range s.users {
		for i, in := range u.Interactions {
			if in.ProductID == "" {
				return NewDomainError(ModuleSnapshot, ErrorCodeInvalidInput,
					fmt.Sprintf("snapshot: missing product_id in interaction %d for user %s", i, u.ID))
			}
			if _, ok := s.productIndex[in.ProductID]; !ok {
				return NewDomainError(ModuleSnapshot, ErrorCodeInvalidInput,
					fmt.Sprintf("snapshot: interaction references non-existent product: %s", in.ProductID))
			}
		}
	}
	return nil
}

// SnapshotSource 是数据快照的提供方（文件、Redis、埋点叠加等）。
type SnapshotSource interface {
	// Name 返回数据源名称（用于日志/监控）
	Name() string

	// Load 读取当前的完整快照
	Load(ctx context.Context) (*Snapshot, error)
}

// SnapshotSaver 把完整快照写回数据源。
type SnapshotSaver interface {
	Save(ctx context.Context, s *Snapshot) error
}

// StaticSource 是固定快照的数据源，用于测试与一次性计算。
type StaticSource struct {
	Snapshot *Snapshot
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Load(_ context.Context) (*Snapshot, error) {
	if s.Snapshot == nil {
		return nil, ErrNoData
	}
	return s.Snapshot, nil
}
