package workflow

import (
	"go/ast"
	"go/token"
	"strings"
)

// handleIf translates a guard chain. Each branch's steps run under that
// branch's own translated condition; an else-if carries only its own test.
// A bare else has no condition of its own to translate, so it is rejected.
func (b *builder) handleIf(st *ast.IfStmt, ctx walkCtx) error {
	if st.Init != nil {
		return compileErrorf(UnsupportedConstructError, b.s.Position(st.Pos()),
			"guards must not carry an init statement")
	}
	cond, producers, err := b.translateCond(st.Cond, ctx)
	if err != nil {
		return err
	}

	branchCtx := ctx
	branchCtx.guard = combineGuards(ctx.guard, cond)
	branchCtx.guardProducers = append(append([]*Step(nil), ctx.guardProducers...), producers...)
	if err := b.walkStmts(st.Body.List, branchCtx); err != nil {
		return err
	}

	switch alt := st.Else.(type) {
	case nil:
		return nil
	case *ast.IfStmt:
		return b.handleIf(alt, ctx)
	default:
		return compileErrorf(UnsupportedConstructError, b.s.Position(alt.Pos()),
			"a bare else has no condition to run steps under: use else if with an explicit test")
	}
}

func combineGuards(outer, inner string) string {
	if outer == "" {
		return inner
	}
	return "(" + outer + ") && (" + inner + ")"
}

// translateCond renders a boolean entry-body expression in the
// orchestrator's condition language. Comparisons, boolean combinators, and
// negation survive the translation; anything else cannot be evaluated by
// the orchestrator and is rejected.
func (b *builder) translateCond(expr ast.Expr, ctx walkCtx) (string, []*Step, error) {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		inner, prods, err := b.translateCond(e.X, ctx)
		if err != nil {
			return "", nil, err
		}
		return "(" + inner + ")", prods, nil

	case *ast.UnaryExpr:
		if e.Op != token.NOT {
			return "", nil, b.condErr(e.Pos(), e.Op.String())
		}
		inner, prods, err := b.translateCond(e.X, ctx)
		if err != nil {
			return "", nil, err
		}
		return "!(" + inner + ")", prods, nil

	case *ast.BinaryExpr:
		switch e.Op {
		case token.LAND, token.LOR:
			left, lp, err := b.translateCond(e.X, ctx)
			if err != nil {
				return "", nil, err
			}
			right, rp, err := b.translateCond(e.Y, ctx)
			if err != nil {
				return "", nil, err
			}
			op := "&&"
			if e.Op == token.LOR {
				op = "||"
			}
			return condGroup(e.X, left) + " " + op + " " + condGroup(e.Y, right), append(lp, rp...), nil

		case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
			left, lp, err := b.condOperand(e.X, ctx)
			if err != nil {
				return "", nil, err
			}
			right, rp, err := b.condOperand(e.Y, ctx)
			if err != nil {
				return "", nil, err
			}
			return left + " " + e.Op.String() + " " + right, append(lp, rp...), nil
		}
		return "", nil, b.condErr(e.Pos(), e.Op.String())
	}

	return "", nil, compileErrorf(UnsupportedExpressionError, b.s.Position(expr.Pos()),
		"guard conditions must be comparisons, optionally combined with &&, || and !")
}

// condGroup parenthesizes nested boolean combinators so the rendered
// condition keeps the source's grouping.
func condGroup(src ast.Expr, rendered string) string {
	if be, ok := src.(*ast.BinaryExpr); ok && (be.Op == token.LAND || be.Op == token.LOR) {
		return "(" + rendered + ")"
	}
	return rendered
}

func (b *builder) condOperand(expr ast.Expr, ctx walkCtx) (string, []*Step, error) {
	if be, ok := expr.(*ast.BinaryExpr); ok && be.Op != token.ADD {
		return "", nil, b.condErr(be.Pos(), be.Op.String())
	}
	v, err := b.resolveValue(expr, ctx)
	if err != nil {
		return "", nil, err
	}
	if v.Str {
		if strings.ContainsRune(v.Text, '\'') {
			return "", nil, compileErrorf(UnsupportedExpressionError, b.s.Position(expr.Pos()),
				"string operands in guards must not contain single quotes")
		}
		return "'" + v.Text + "'", v.Producers, nil
	}
	return v.Text, v.Producers, nil
}

func (b *builder) condErr(pos token.Pos, op string) error {
	return compileErrorf(UnsupportedExpressionError, b.s.Position(pos),
		"operator %s has no equivalent in the orchestrator's condition language", op)
}
