package filter

import (
	"context"

	"github.com/juju/errors"

	"github.com/rushteam/prodrec/core"
	"github.com/rushteam/prodrec/pkg/dsl"
)

// ExprFilter 用 CEL 表达式过滤，表达式为 true 的商品被移除。
//
//	item.meta.category == "books"
//	item.score < 0.5 && label.recall_source == "content"
type ExprFilter struct {
	prg *dsl.Program
}

// NewExprFilter 编译表达式。
func NewExprFilter(expr string) (*ExprFilter, error) {
	if expr == "" {
		return nil, errors.NotValidf("empty filter expression")
	}
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, errors.Annotatef(err, "filter expression %q", expr)
	}
	return &ExprFilter{prg: prg}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	return f.prg.Match(item, rctx)
}
