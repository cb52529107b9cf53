package workflow

import (
	"go/ast"
	"go/token"
	"strings"

	"github.com/argot-dev/argot/pkg/parser"
)

// resolveValue turns an entry-body expression into an orchestrator-time
// value. Resolution order for identifiers: the enclosing loop variable,
// then locally assigned names, then prior step outputs through their
// outputs object, then declared workflow parameters. Mount points are never
// scalar values. Anything left over is unbound.
func (b *builder) resolveValue(expr ast.Expr, ctx walkCtx) (Value, error) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		switch e.Kind {
		case token.STRING:
			v, _ := parser.StringLit(e)
			return Value{Kind: ValueLiteral, Text: v, Str: true}, nil
		case token.INT, token.FLOAT:
			return Value{Kind: ValueLiteral, Text: e.Value}, nil
		}
		return Value{}, compileErrorf(UnboundReferenceError, b.s.Position(e.Pos()),
			"unsupported literal %s", e.Value)

	case *ast.Ident:
		return b.resolveIdent(e, ctx)

	case *ast.IndexExpr:
		return b.resolveIndex(e, ctx)

	case *ast.ParenExpr:
		return b.resolveValue(e.X, ctx)

	case *ast.BinaryExpr:
		if e.Op != token.ADD {
			return Value{}, compileErrorf(UnboundReferenceError, b.s.Position(e.Pos()),
				"operator %s is not a value: only string concatenation with + is supported here", e.Op)
		}
		left, err := b.resolveValue(e.X, ctx)
		if err != nil {
			return Value{}, err
		}
		right, err := b.resolveValue(e.Y, ctx)
		if err != nil {
			return Value{}, err
		}
		v := Value{Kind: ValueComposite, Text: left.Text + right.Text, Str: true}
		v.Producers = append(v.Producers, left.Producers...)
		v.Producers = append(v.Producers, right.Producers...)
		return v, nil

	case *ast.CallExpr:
		if c, recv, ok := parser.MethodCall(e, "Param"); ok {
			if v, handled, err := b.resolveOutputRef(c, recv.Name, false); handled {
				return v, err
			}
		}
		return Value{}, compileErrorf(UnboundReferenceError, b.s.Position(e.Pos()),
			"cannot resolve call to an orchestrator-time value")
	}

	return Value{}, compileErrorf(UnboundReferenceError, b.s.Position(expr.Pos()),
		"cannot resolve expression to an orchestrator-time value")
}

func (b *builder) resolveIdent(id *ast.Ident, ctx walkCtx) (Value, error) {
	if ctx.loop != nil && id.Name == ctx.loop.varName {
		if ctx.loop.csv {
			return Value{}, compileErrorf(UnboundReferenceError, b.s.Position(id.Pos()),
				"row variable %q must be indexed by a field name", id.Name)
		}
		return Value{Kind: ValueItem, Text: "{{item}}"}, nil
	}
	if v, ok := b.locals[id.Name]; ok {
		return v, nil
	}
	if _, ok := b.outputsVars[id.Name]; ok {
		return Value{}, compileErrorf(UnboundReferenceError, b.s.Position(id.Pos()),
			"%q is an outputs object: reference a slot with %s.Param(...)", id.Name, id.Name)
	}
	if p := b.decls.ParamByIdent(id.Name); p != nil {
		return Value{Kind: ValueWorkflowParam, Text: "{{workflow.parameters." + p.Name + "}}"}, nil
	}
	if m := b.decls.MountByIdent(id.Name); m != nil {
		return Value{}, compileErrorf(UnboundReferenceError, b.s.Position(id.Pos()),
			"mount point %q is not a scalar value", m.Name)
	}
	return Value{}, compileErrorf(UnboundReferenceError, b.s.Position(id.Pos()),
		"%q resolves to no step output, workflow parameter, or loop variable", id.Name)
}

func (b *builder) resolveIndex(e *ast.IndexExpr, ctx walkCtx) (Value, error) {
	id, ok := e.X.(*ast.Ident)
	if !ok || ctx.loop == nil || id.Name != ctx.loop.varName {
		return Value{}, compileErrorf(UnboundReferenceError, b.s.Position(e.Pos()),
			"indexing is only supported on the row variable of a CSV loop")
	}
	if !ctx.loop.csv {
		return Value{}, compileErrorf(UnboundReferenceError, b.s.Position(e.Pos()),
			"sequence variable %q has no fields", id.Name)
	}
	field, ok := parser.StringLit(e.Index)
	if !ok {
		return Value{}, compileErrorf(UnboundReferenceError, b.s.Position(e.Index.Pos()),
			"row field names must be string literals")
	}
	return Value{Kind: ValueItemField, Text: "{{item." + field + "}}"}, nil
}

// resolveOutputRef resolves `<outputsVar>.Param("slot")` or
// `<outputsVar>.Artifact("slot")` to the producing step. handled is false
// when recv is not a known outputs object.
func (b *builder) resolveOutputRef(call *ast.CallExpr, recv string, artifact bool) (Value, bool, error) {
	ov, ok := b.outputsVars[recv]
	if !ok {
		return Value{}, false, nil
	}
	pos := b.s.Position(call.Pos())
	if len(call.Args) != 1 {
		return Value{}, true, compileErrorf(UnboundReferenceError, pos,
			"output slot references take one string literal slot name")
	}
	slot, ok := parser.StringLit(call.Args[0])
	if !ok {
		return Value{}, true, compileErrorf(UnboundReferenceError, pos,
			"output slot references take one string literal slot name")
	}
	switch len(ov.producers) {
	case 0:
		return Value{}, true, compileErrorf(UnboundReferenceError, pos,
			"outputs object %q has not been produced by any step yet", recv)
	case 1:
	default:
		return Value{}, true, compileErrorf(UnboundReferenceError, pos,
			"outputs object %q is produced by %d steps: the reference is ambiguous", recv, len(ov.producers))
	}
	p := ov.producers[0]

	if artifact {
		if p.OutputArtifact(slot) == nil {
			return Value{}, true, compileErrorf(UnboundReferenceError, pos,
				"step %q declares no output artifact slot %q", p.Name, slot)
		}
		return Value{
			Kind:      ValueStepOutput,
			Text:      "{{steps." + p.Name + ".outputs.artifacts." + slot + "}}",
			Producers: []*Step{p},
		}, true, nil
	}
	if !p.HasOutputParam(slot) {
		return Value{}, true, compileErrorf(UnboundReferenceError, pos,
			"step %q declares no output parameter slot %q", p.Name, slot)
	}
	return Value{
		Kind:      ValueStepOutput,
		Text:      "{{steps." + p.Name + ".outputs.parameters." + slot + "}}",
		Producers: []*Step{p},
	}, true, nil
}

// joinKey builds an object-store key from path segments, dropping empties.
func joinKey(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}
