package workflow

import (
	"go/ast"
	"go/token"

	"github.com/argot-dev/argot/pkg/logger"
	"github.com/argot-dev/argot/pkg/parser"
)

var registryLog = logger.New("workflow:registry")

// Registry holds every marked function of a script after signature and
// contract validation.
type Registry struct {
	Steps []*StepFunc
	Entry *ast.FuncDecl

	byName  map[string]*StepFunc
	topFns  map[string]*ast.FuncDecl
	topVars map[string]bool
}

// StepByName returns the validated step function with the given source
// name, or nil.
func (r *Registry) StepByName(name string) *StepFunc {
	return r.byName[name]
}

// BuildRegistry scans a script's top-level functions for step and entry
// markers, validates each step's signature, and extracts its slot contract
// from the body. Exactly one entry function is required.
func BuildRegistry(s *parser.Script) (*Registry, error) {
	r := &Registry{
		byName:  map[string]*StepFunc{},
		topFns:  map[string]*ast.FuncDecl{},
		topVars: map[string]bool{},
	}

	for _, d := range s.File.Decls {
		if gd, ok := d.(*ast.GenDecl); ok && gd.Tok == token.VAR {
			for _, spec := range gd.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				for _, n := range vs.Names {
					if n.Name != "_" {
						r.topVars[n.Name] = true
					}
				}
			}
			continue
		}
		fn, ok := d.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}
		r.topFns[fn.Name.Name] = fn

		dir, err := parser.ParseDirective(fn)
		if err != nil {
			return nil, compileErrorf(UnsupportedConstructError, s.Position(fn.Pos()), "%s", err)
		}
		if dir == nil {
			continue
		}
		switch dir.Kind {
		case parser.DirectiveStep:
			sf, err := validateStepFunc(s, fn, dir.Image)
			if err != nil {
				return nil, err
			}
			r.Steps = append(r.Steps, sf)
			r.byName[sf.Name] = sf
		case parser.DirectiveEntry:
			if r.Entry != nil {
				return nil, compileErrorf(DuplicateDeclarationError, s.Position(fn.Pos()),
					"entry function %q: an entry is already declared", fn.Name.Name)
			}
			r.Entry = fn
		}
	}

	if r.Entry == nil {
		return nil, compileErrorf(UnsupportedConstructError, s.Position(s.File.Pos()),
			"script declares no entry function")
	}

	for _, sf := range r.Steps {
		if err := checkStepBodyCalls(s, r, sf); err != nil {
			return nil, err
		}
	}
	if err := checkRecursion(s, r); err != nil {
		return nil, err
	}

	registryLog.Printf("registry built: %d steps, entry %s", len(r.Steps), r.Entry.Name.Name)
	return r, nil
}

// validateStepFunc enforces the step signature: exactly one inputs and one
// outputs pointer parameter, in either order, and no results.
func validateStepFunc(s *parser.Script, fn *ast.FuncDecl, image string) (*StepFunc, error) {
	if fn.Type.Results != nil && len(fn.Type.Results.List) > 0 {
		return nil, compileErrorf(SignatureError, s.Position(fn.Pos()),
			"step function %q must not return values", fn.Name.Name)
	}
	params := flattenParams(fn)
	if len(params) != 2 {
		return nil, compileErrorf(SignatureError, s.Position(fn.Pos()),
			"step function %q must take exactly an inputs and an outputs parameter, got %d parameters",
			fn.Name.Name, len(params))
	}

	sf := &StepFunc{Name: fn.Name.Name, Image: image, Decl: fn, InputsIndex: -1, Pos: fn.Pos()}
	for i, p := range params {
		switch {
		case isFlowPtr(s, p.typ, "Inputs"):
			if sf.InputsName != "" {
				return nil, compileErrorf(SignatureError, s.Position(fn.Pos()),
					"step function %q declares two inputs parameters", fn.Name.Name)
			}
			sf.InputsName = p.name
			sf.InputsIndex = i
		case isFlowPtr(s, p.typ, "Outputs"):
			if sf.OutputsName != "" {
				return nil, compileErrorf(SignatureError, s.Position(fn.Pos()),
					"step function %q declares two outputs parameters", fn.Name.Name)
			}
			sf.OutputsName = p.name
		default:
			return nil, compileErrorf(SignatureError, s.Position(p.pos),
				"step function %q: parameter %q must be *%s.Inputs or *%s.Outputs",
				fn.Name.Name, p.name, s.FlowAlias, s.FlowAlias)
		}
	}
	if sf.InputsName == "" || sf.OutputsName == "" {
		return nil, compileErrorf(SignatureError, s.Position(fn.Pos()),
			"step function %q must take exactly an inputs and an outputs parameter", fn.Name.Name)
	}

	scan, err := ScanAccessors(s, sf)
	if err != nil {
		return nil, err
	}
	sf.Contract = scan.Contract
	return sf, nil
}

type paramInfo struct {
	name string
	typ  ast.Expr
	pos  token.Pos
}

func flattenParams(fn *ast.FuncDecl) []paramInfo {
	var out []paramInfo
	for _, field := range fn.Type.Params.List {
		if len(field.Names) == 0 {
			out = append(out, paramInfo{name: "_", typ: field.Type, pos: field.Pos()})
			continue
		}
		for _, n := range field.Names {
			out = append(out, paramInfo{name: n.Name, typ: field.Type, pos: n.Pos()})
		}
	}
	return out
}

func isFlowPtr(s *parser.Script, typ ast.Expr, name string) bool {
	star, ok := typ.(*ast.StarExpr)
	if !ok {
		return false
	}
	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != name {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == s.FlowAlias
}

// checkStepBodyCalls rejects step bodies that call other script functions
// or reference top-level script declarations. The body becomes a standalone
// program on a remote image, so nothing outside it and its imports can
// exist there.
func checkStepBodyCalls(s *parser.Script, r *Registry, sf *StepFunc) error {
	var err error
	ast.Inspect(sf.Decl.Body, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		id, ok := n.(*ast.Ident)
		if !ok {
			return true
		}
		if id.Name == s.FlowAlias && s.FlowAlias != "" {
			err = compileErrorf(UnsupportedConstructError, s.Position(id.Pos()),
				"step function %q must not reference package %s outside its parameters", sf.Name, s.FlowAlias)
			return false
		}
		if id.Name == r.Entry.Name.Name {
			err = compileErrorf(UnsupportedConstructError, s.Position(id.Pos()),
				"step function %q calls the entry function %q", sf.Name, id.Name)
			return false
		}
		if r.topVars[id.Name] {
			err = compileErrorf(UnsupportedConstructError, s.Position(id.Pos()),
				"step function %q references script declaration %q, which will not exist in the step's container", sf.Name, id.Name)
			return false
		}
		if other := r.byName[id.Name]; other != nil {
			err = compileErrorf(UnsupportedConstructError, s.Position(id.Pos()),
				"step function %q calls step function %q: steps run in isolation", sf.Name, id.Name)
			return false
		}
		if fn, isTop := r.topFns[id.Name]; isTop && fn != sf.Decl {
			err = compileErrorf(UnsupportedConstructError, s.Position(id.Pos()),
				"step function %q calls script function %q, which will not exist in the step's container", sf.Name, id.Name)
			return false
		}
		return true
	})
	return err
}

// checkRecursion walks the call graph over all top-level functions and
// rejects any cycle that can reach the entry or a step function. Step and
// entry bodies are already restricted, but helpers called from main can
// still form cycles back into the workflow.
func checkRecursion(s *parser.Script, r *Registry) error {
	edges := map[string][]string{}
	for name, fn := range r.topFns {
		ast.Inspect(fn.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			if callee, ok := call.Fun.(*ast.Ident); ok {
				if _, isTop := r.topFns[callee.Name]; isTop {
					edges[name] = append(edges[name], callee.Name)
				}
			}
			return true
		})
	}

	const (
		unvisited = 0
		active    = 1
		done      = 2
	)
	state := map[string]int{}
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case active:
			return compileErrorf(UnsupportedConstructError, s.Position(r.topFns[name].Pos()),
				"recursive call chain involving %q cannot be expressed as a workflow", name)
		}
		state[name] = active
		for _, next := range edges[name] {
			if err := visit(next); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	if err := visit(r.Entry.Name.Name); err != nil {
		return err
	}
	for _, sf := range r.Steps {
		if err := visit(sf.Name); err != nil {
			return err
		}
	}
	return nil
}
