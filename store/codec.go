package store

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goccy/go-json"
	"github.com/juju/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/pkg/log"
)

// 数据文件格式：
//
//	{
//	  "users":    {"user1": {"name": "...", "preferences": ["electronics"], "interactions": [...]}},
//	  "products": {"prod1": {"name": "...", "category": "electronics", "price": 99.99, "avg_rating": 4.5}}
//	}
//
// 用户与商品的顺序即文档中的 key 顺序。

func invalidInput(format string, args ...any) error {
	return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, fmt.Sprintf(format, args...))
}

// ParseSnapshot 解析数据文档，保留 users / products 在文档中的顺序。
func ParseSnapshot(data []byte) (*core.Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, invalidInput("invalid JSON format in data file")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, invalidInput("invalid data format: root must be an object")
	}
	usersDoc, productsDoc := root.Get("users"), root.Get("products")
	if !usersDoc.Exists() || !productsDoc.Exists() {
		return nil, invalidInput("invalid data format: missing 'users' or 'products' keys")
	}
	if !usersDoc.IsObject() || !productsDoc.IsObject() {
		return nil, invalidInput("invalid data format: 'users' and 'products' must be objects")
	}

	var users []*core.User
	usersDoc.ForEach(func(key, value gjson.Result) bool {
		users = append(users, parseUser(key.String(), value))
		return true
	})
	var products []*core.Product
	productsDoc.ForEach(func(key, value gjson.Result) bool {
		products = append(products, parseProduct(key.String(), value))
		return true
	})
	return core.NewSnapshot(users, products)
}

func parseUser(id string, doc gjson.Result) *core.User {
	u := &core.User{ID: id, Features: make(map[string]any)}
	doc.ForEach(func(key, value gjson.Result) bool {
		if key.String() != "interactions" {
			u.Features[key.String()] = value.Value()
		}
		return true
	})
	u.Name = doc.Get("name").String()

	switch prefs := doc.Get("preferences"); {
	case prefs.IsArray():
		u.Preferences = make([]string, 0, len(prefs.Array()))
		for _, p := range prefs.Array() {
			u.Preferences = append(u.Preferences, p.String())
		}
	case prefs.Type == gjson.String:
		u.Preferences = []string{prefs.String()}
	}

	for i, in := range doc.Get("interactions").Array() {
		u.Interactions = append(u.Interactions, parseInteraction(id, i, in))
	}
	return u
}

func parseInteraction(userID string, i int, doc gjson.Result) core.Interaction {
	in := core.Interaction{
		ProductID: doc.Get("product_id").String(),
		Type:      doc.Get("type").String(),
		Value:     number(doc.Get("value"), "value", userID),
		Rating:    number(doc.Get("rating"), "rating", userID),
	}
	if ts := doc.Get("timestamp"); ts.Exists() && ts.String() != "" {
		t, err := dateparse.ParseIn(ts.String(), time.UTC)
		if err != nil {
			log.Logger().Warn("skip invalid interaction timestamp",
				zap.String("user_id", userID), zap.Int("index", i), zap.String("timestamp", ts.String()))
		} else {
			in.Timestamp = t.UTC()
		}
	}
	return in
}

func parseProduct(id string, doc gjson.Result) *core.Product {
	p := &core.Product{ID: id, Attributes: make(map[string]any)}
	doc.ForEach(func(key, value gjson.Result) bool {
		p.Attributes[key.String()] = value.Value()
		return true
	})
	p.Name = doc.Get("name").String()
	if c := doc.Get("category"); c.Exists() && c.Type != gjson.Null {
		category := c.String()
		p.Category = &category
	}
	p.Price = number(doc.Get("price"), "price", id)
	p.AvgRating = number(doc.Get("avg_rating"), "avg_rating", id)
	return p
}

// number 读取数值字段；数字字符串也接受，其他类型视为缺失。
func number(r gjson.Result, field, owner string) *float64 {
	switch r.Type {
	case gjson.Number:
		v := r.Float()
		return &v
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err == nil {
			return &v
		}
	case gjson.Null:
		return nil
	case gjson.True, gjson.False:
		v := 0.0
		if r.Bool() {
			v = 1
		}
		return &v
	}
	if r.Exists() {
		log.Logger().Warn("ignore non-numeric field",
			zap.String("owner", owner), zap.String("field", field), zap.String("raw", r.Raw))
	}
	return nil
}

// EncodeSnapshot 把快照编码为数据文档，users / products 保持快照顺序。
func EncodeSnapshot(s *core.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"users":{`)
	for i, u := range s.Users() {
		if err := writeEntry(&buf, i, u.ID, userDoc(u)); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`},"products":{`)
	for i, p := range s.Products() {
		if err := writeEntry(&buf, i, p.ID, productDoc(p)); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

func writeEntry(buf *bytes.Buffer, i int, key string, doc map[string]any) error {
	if i > 0 {
		buf.WriteByte(',')
	}
	k, err := json.Marshal(key)
	if err != nil {
		return errors.Trace(err)
	}
	v, err := json.Marshal(doc)
	if err != nil {
		return errors.Annotatef(err, "encode %s", key)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

func userDoc(u *core.User) map[string]any {
	doc := make(map[string]any, len(u.Features)+3)
	for k, v := range u.Features {
		doc[k] = v
	}
	setDefault(doc, "name", u.Name, u.Name != "")
	setDefault(doc, "preferences", u.Preferences, u.Preferences != nil)
	interactions := make([]map[string]any, 0, len(u.Interactions))
	for _, in := range u.Interactions {
		interactions = append(interactions, InteractionDoc(in))
	}
	doc["interactions"] = interactions
	return doc
}

// InteractionDoc 把交互编码为文档字段，缺失的可选字段不输出。
func InteractionDoc(in core.Interaction) map[string]any {
	doc := make(map[string]any, 5)
	if in.ProductID != "" {
		doc["product_id"] = in.ProductID
	}
	if in.Type != "" {
		doc["type"] = in.Type
	}
	if in.Value != nil {
		doc["value"] = *in.Value
	}
	if in.Rating != nil {
		doc["rating"] = *in.Rating
	}
	if !in.Timestamp.IsZero() {
		doc["timestamp"] = in.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return doc
}

func productDoc(p *core.Product) map[string]any {
	doc := make(map[string]any, len(p.Attributes)+4)
	for k, v := range p.Attributes {
		doc[k] = v
	}
	setDefault(doc, "name", p.Name, p.Name != "")
	if p.Category != nil {
		setDefault(doc, "category", *p.Category, true)
	}
	if p.Price != nil {
		setDefault(doc, "price", *p.Price, true)
	}
	if p.AvgRating != nil {
		setDefault(doc, "avg_rating", *p.AvgRating, true)
	}
	return doc
}

// setDefault 只在原始字段缺失时写入，原始字段保持原样以便往返不变。
func setDefault(doc map[string]any, key string, v any, present bool) {
	if _, ok := doc[key]; ok || !present {
		return
	}
	doc[key] = v
}
