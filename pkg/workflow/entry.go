package workflow

import (
	"go/ast"

	"github.com/argot-dev/argot/pkg/parser"
)

// ValidateEntry checks the entry function's signature against the script's
// top-level declarations. Every parameter must name a declared mount point
// or workflow parameter, typed flow.MountPoint or string respectively, and
// every declaration must appear exactly once. Order does not matter: the
// binding is by identifier.
func ValidateEntry(s *parser.Script, decls *Declarations, entry *ast.FuncDecl) error {
	if entry.Type.Results != nil && len(entry.Type.Results.List) > 0 {
		return compileErrorf(SignatureError, s.Position(entry.Pos()),
			"entry function %q must not return values", entry.Name.Name)
	}

	bound := map[string]bool{}
	for _, field := range entry.Type.Params.List {
		if len(field.Names) == 0 {
			return compileErrorf(SignatureError, s.Position(field.Pos()),
				"entry function %q: parameters must be named after declarations", entry.Name.Name)
		}
		for _, name := range field.Names {
			if bound[name.Name] {
				return compileErrorf(SignatureError, s.Position(name.Pos()),
					"entry function %q binds %q twice", entry.Name.Name, name.Name)
			}
			bound[name.Name] = true

			switch {
			case decls.MountByIdent(name.Name) != nil:
				if !isFlowType(s, field.Type, "MountPoint") {
					return compileErrorf(SignatureError, s.Position(name.Pos()),
						"entry parameter %q binds a mount point and must be typed %s.MountPoint", name.Name, s.FlowAlias)
				}
			case decls.ParamByIdent(name.Name) != nil:
				if !isStringType(field.Type) {
					return compileErrorf(SignatureError, s.Position(name.Pos()),
						"entry parameter %q binds a workflow parameter and must be typed string", name.Name)
				}
			default:
				return compileErrorf(UnboundReferenceError, s.Position(name.Pos()),
					"entry parameter %q matches no declared mount point or workflow parameter", name.Name)
			}
		}
	}

	for _, m := range decls.Mounts {
		if !bound[m.Ident] {
			return compileErrorf(SignatureError, s.Position(entry.Pos()),
				"entry function %q does not bind mount point %q", entry.Name.Name, m.Ident)
		}
	}
	for _, p := range decls.Params {
		if !bound[p.Ident] {
			return compileErrorf(SignatureError, s.Position(entry.Pos()),
				"entry function %q does not bind parameter %q", entry.Name.Name, p.Ident)
		}
	}
	return nil
}

func isFlowType(s *parser.Script, typ ast.Expr, name string) bool {
	sel, ok := typ.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != name {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == s.FlowAlias
}

func isStringType(typ ast.Expr) bool {
	id, ok := typ.(*ast.Ident)
	return ok && id.Name == "string"
}
