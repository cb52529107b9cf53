package parser

import (
	"go/ast"
	"go/token"
	"strconv"
)

// StringLit returns the value of a string literal expression.
func StringLit(expr ast.Expr) (string, bool) {
	lit, ok := expr.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	v, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	return v, true
}

// PkgCall matches a call of the form pkg.Name(...) and returns it.
func PkgCall(expr ast.Expr, pkg, name string) (*ast.CallExpr, bool) {
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return nil, false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return nil, false
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok || ident.Name != pkg || sel.Sel.Name != name {
		return nil, false
	}
	return call, true
}

// AnyPkgCall matches a call of the form pkg.<anything>(...) and returns the
// call and the selector name.
func AnyPkgCall(expr ast.Expr, pkg string) (*ast.CallExpr, string, bool) {
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return nil, "", false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return nil, "", false
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok || ident.Name != pkg {
		return nil, "", false
	}
	return call, sel.Sel.Name, true
}

// MethodCall matches a call of the form <recv ident>.Name(...) and returns
// the call and the receiver identifier.
func MethodCall(expr ast.Expr, name string) (*ast.CallExpr, *ast.Ident, bool) {
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return nil, nil, false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != name {
		return nil, nil, false
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok {
		return nil, nil, false
	}
	return call, ident, true
}

// ChainedCall matches a call of the form <inner>.Name(...) where inner is
// itself a call expression, e.g. out.Artifact("x").Create(n).
func ChainedCall(expr ast.Expr, name string) (outer *ast.CallExpr, inner *ast.CallExpr, ok bool) {
	call, isCall := expr.(*ast.CallExpr)
	if !isCall {
		return nil, nil, false
	}
	sel, isSel := call.Fun.(*ast.SelectorExpr)
	if !isSel || sel.Sel.Name != name {
		return nil, nil, false
	}
	innerCall, isCall := sel.X.(*ast.CallExpr)
	if !isCall {
		return nil, nil, false
	}
	return call, innerCall, true
}
