package workflow

import (
	"go/ast"

	"github.com/argot-dev/argot/pkg/parser"
)

// AccessorKind identifies one structurally matched accessor call inside a
// step body.
type AccessorKind int

const (
	AccessInParam AccessorKind = iota
	AccessInOpen
	AccessInPath
	AccessOutSetParam
	AccessOutCreate
	AccessOutPath
)

// AccessorUse records one matched accessor call: the slot it touches, the
// outermost call node, and the inner Artifact call for chained forms.
type AccessorUse struct {
	Kind  AccessorKind
	Slot  string
	Call  *ast.CallExpr
	Inner *ast.CallExpr // Artifact(...) for chained forms, else nil
}

// AccessorScan is the result of matching every inputs/outputs usage in a
// step body. A body that survives the scan accesses its slots only through
// the forms the transformer knows how to rewrite.
type AccessorScan struct {
	Uses     []AccessorUse
	Contract Contract
}

// ScanAccessors walks a step body and matches every usage of the inputs and
// outputs parameters against the rewritable accessor forms. Any usage of
// those identifiers that no form matches is rejected, since the transformer
// could not preserve its meaning inside the embedded script.
func ScanAccessors(s *parser.Script, fn *StepFunc) (*AccessorScan, error) {
	scan := &AccessorScan{}
	matched := map[ast.Node]bool{}

	var walkErr error
	ast.Inspect(fn.Decl.Body, func(n ast.Node) bool {
		if walkErr != nil {
			return false
		}
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		use, err := matchAccessor(s, fn, call)
		if err != nil {
			walkErr = err
			return false
		}
		if use == nil {
			return true
		}
		scan.Uses = append(scan.Uses, *use)
		matched[use.Call] = true
		if use.Inner != nil {
			matched[use.Inner] = true
			matched[use.Inner.Fun] = true
		}
		matched[use.Call.Fun] = true
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	// Every remaining mention of the inputs/outputs identifiers is an
	// access the rewriter has no rule for. Matched selector chains are
	// skipped wholesale; matched calls still descend so nested accessors
	// in their arguments get the same treatment.
	ast.Inspect(fn.Decl.Body, func(n ast.Node) bool {
		if walkErr != nil {
			return false
		}
		if matched[n] {
			_, isSel := n.(*ast.SelectorExpr)
			return !isSel
		}
		if id, ok := n.(*ast.Ident); ok && isTransputIdent(fn, id.Name) {
			walkErr = compileErrorf(UnsupportedAccessPatternError, s.Position(id.Pos()),
				"unsupported use of %q: slots must be accessed through Param, Artifact, SetParam, Open, Create or Path", id.Name)
			return false
		}
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	for _, u := range scan.Uses {
		switch u.Kind {
		case AccessInParam:
			scan.Contract.InParams = appendUnique(scan.Contract.InParams, u.Slot)
		case AccessInOpen, AccessInPath:
			scan.Contract.InArtifacts = appendUnique(scan.Contract.InArtifacts, u.Slot)
		case AccessOutSetParam:
			scan.Contract.OutParams = appendUnique(scan.Contract.OutParams, u.Slot)
		case AccessOutCreate, AccessOutPath:
			scan.Contract.OutArtifacts = appendUnique(scan.Contract.OutArtifacts, u.Slot)
		}
	}
	return scan, nil
}

func matchAccessor(s *parser.Script, fn *StepFunc, call *ast.CallExpr) (*AccessorUse, error) {
	// Chained forms first: <transput>.Artifact("k").Open/Create/Path(...).
	for _, method := range []string{"Open", "Create", "Path"} {
		outer, inner, ok := parser.ChainedCall(call, method)
		if !ok {
			continue
		}
		innerCall, recv, ok := parser.MethodCall(inner, "Artifact")
		if !ok || !isTransputIdent(fn, recv.Name) {
			continue
		}
		slot, err := slotArg(s, innerCall, "Artifact")
		if err != nil {
			return nil, err
		}
		onInputs := recv.Name == fn.InputsName
		switch method {
		case "Open":
			if !onInputs {
				return nil, compileErrorf(SlotContractError, s.Position(call.Pos()),
					"output artifact %q cannot be opened for reading", slot)
			}
			if len(outer.Args) > 1 {
				return nil, compileErrorf(UnsupportedAccessPatternError, s.Position(call.Pos()),
					"Open takes at most one file name")
			}
			return &AccessorUse{Kind: AccessInOpen, Slot: slot, Call: outer, Inner: innerCall}, nil
		case "Create":
			if onInputs {
				return nil, compileErrorf(SlotContractError, s.Position(call.Pos()),
					"input artifact %q cannot be written", slot)
			}
			if len(outer.Args) != 1 {
				return nil, compileErrorf(UnsupportedAccessPatternError, s.Position(call.Pos()),
					"Create takes exactly one file name")
			}
			return &AccessorUse{Kind: AccessOutCreate, Slot: slot, Call: outer, Inner: innerCall}, nil
		default: // Path
			if len(outer.Args) != 0 {
				return nil, compileErrorf(UnsupportedAccessPatternError, s.Position(call.Pos()),
					"Path takes no arguments")
			}
			kind := AccessOutPath
			if onInputs {
				kind = AccessInPath
			}
			return &AccessorUse{Kind: kind, Slot: slot, Call: outer, Inner: innerCall}, nil
		}
	}

	if c, recv, ok := parser.MethodCall(call, "Param"); ok && recv.Name == fn.InputsName {
		slot, err := slotArg(s, c, "Param")
		if err != nil {
			return nil, err
		}
		return &AccessorUse{Kind: AccessInParam, Slot: slot, Call: c}, nil
	}
	if c, recv, ok := parser.MethodCall(call, "SetParam"); ok && recv.Name == fn.OutputsName {
		if len(c.Args) != 2 {
			return nil, compileErrorf(UnsupportedAccessPatternError, s.Position(c.Pos()),
				"SetParam takes a slot name and a value")
		}
		slot, ok := parser.StringLit(c.Args[0])
		if !ok {
			return nil, compileErrorf(UnsupportedAccessPatternError, s.Position(c.Args[0].Pos()),
				"SetParam slot name must be a string literal")
		}
		return &AccessorUse{Kind: AccessOutSetParam, Slot: slot, Call: c}, nil
	}
	return nil, nil
}

func slotArg(s *parser.Script, call *ast.CallExpr, method string) (string, error) {
	if len(call.Args) != 1 {
		return "", compileErrorf(UnsupportedAccessPatternError, s.Position(call.Pos()),
			"%s takes exactly one slot name", method)
	}
	slot, ok := parser.StringLit(call.Args[0])
	if !ok {
		return "", compileErrorf(UnsupportedAccessPatternError, s.Position(call.Args[0].Pos()),
			"%s slot name must be a string literal", method)
	}
	return slot, nil
}

func isTransputIdent(fn *StepFunc, name string) bool {
	return name == fn.InputsName || name == fn.OutputsName
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
