package workflow

import (
	"go/ast"
	"go/token"
	"strings"

	"github.com/argot-dev/argot/pkg/logger"
	"github.com/argot-dev/argot/pkg/parser"
)

var declLog = logger.New("workflow:declarations")

// ScanDeclarations collects every top-level mount-point and parameter
// declaration. Only `var x = flow.NewMountPoint(...)` and
// `var x = flow.NewParam(...)` forms are recognized; all constructor
// arguments must be string literals so the locator and default are known at
// compile time. Other top-level vars are left alone.
func ScanDeclarations(s *parser.Script) (*Declarations, error) {
	decls := &Declarations{}
	seen := map[string]token.Position{}

	for _, d := range s.File.Decls {
		gen, ok := d.(*ast.GenDecl)
		if !ok {
			continue
		}
		for _, spec := range gen.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok || len(vs.Values) != len(vs.Names) {
				continue
			}
			for i, name := range vs.Names {
				call, sel, ok := parser.AnyPkgCall(vs.Values[i], s.FlowAlias)
				if !ok {
					continue
				}
				switch sel {
				case "NewMountPoint":
					m, err := scanMountPoint(s, name.Name, call)
					if err != nil {
						return nil, err
					}
					if first, dup := seen[m.Name]; dup {
						return nil, compileErrorf(DuplicateDeclarationError, s.Position(call.Pos()),
							"mount point %q is already declared at %s", m.Name, first)
					}
					seen[m.Name] = s.Position(call.Pos())
					decls.Mounts = append(decls.Mounts, m)
				case "NewParam":
					p, err := scanParam(s, name.Name, call)
					if err != nil {
						return nil, err
					}
					if first, dup := seen[p.Name]; dup {
						return nil, compileErrorf(DuplicateDeclarationError, s.Position(call.Pos()),
							"parameter %q is already declared at %s", p.Name, first)
					}
					seen[p.Name] = s.Position(call.Pos())
					decls.Params = append(decls.Params, p)
				}
			}
		}
	}

	declLog.Printf("scanned declarations: %d mounts, %d params", len(decls.Mounts), len(decls.Params))
	return decls, nil
}

func scanMountPoint(s *parser.Script, ident string, call *ast.CallExpr) (*MountPointDecl, error) {
	args, err := literalArgs(s, call, "NewMountPoint", 3)
	if err != nil {
		return nil, err
	}
	bucket, prefix, err := splitRemote(args[2])
	if err != nil {
		return nil, compileErrorf(UnsupportedConstructError, s.Position(call.Pos()),
			"mount point %q: %s", args[0], err)
	}
	return &MountPointDecl{
		Ident:  ident,
		Name:   args[0],
		Local:  args[1],
		Remote: args[2],
		Bucket: bucket,
		Prefix: prefix,
		Pos:    call.Pos(),
	}, nil
}

func scanParam(s *parser.Script, ident string, call *ast.CallExpr) (*ParamDecl, error) {
	args, err := literalArgs(s, call, "NewParam", 2)
	if err != nil {
		return nil, err
	}
	return &ParamDecl{Ident: ident, Name: args[0], Default: args[1], Pos: call.Pos()}, nil
}

func literalArgs(s *parser.Script, call *ast.CallExpr, ctor string, want int) ([]string, error) {
	if len(call.Args) != want {
		return nil, compileErrorf(UnsupportedConstructError, s.Position(call.Pos()),
			"%s takes %d arguments, got %d", ctor, want, len(call.Args))
	}
	out := make([]string, 0, want)
	for _, a := range call.Args {
		v, ok := parser.StringLit(a)
		if !ok {
			return nil, compileErrorf(UnsupportedConstructError, s.Position(a.Pos()),
				"%s arguments must be string literals", ctor)
		}
		out = append(out, v)
	}
	return out, nil
}

// splitRemote breaks "s3://bucket/some/prefix" into bucket and key prefix.
func splitRemote(remote string) (bucket, prefix string, err error) {
	const scheme = "s3://"
	if !strings.HasPrefix(remote, scheme) {
		return "", "", errRemoteScheme(remote)
	}
	rest := strings.TrimPrefix(remote, scheme)
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", errRemoteScheme(remote)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

type errRemoteScheme string

func (e errRemoteScheme) Error() string {
	return "remote root " + string(e) + " must look like s3://bucket/prefix"
}
