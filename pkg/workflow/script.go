package workflow

import (
	"go/ast"
	"sort"
	"strings"

	"github.com/argot-dev/argot/pkg/parser"
)

// EmbedStep renders a step function as the standalone program that runs in
// its container: a main package wrapping the transformed body, with the
// imports that body still references plus whatever the helper shims need.
func EmbedStep(s *parser.Script, fn *StepFunc) (string, error) {
	body, uses, err := TransformBody(s, fn)
	if err != nil {
		return "", err
	}

	imports := map[string]string{} // local name -> path
	for name, path := range s.Imports() {
		if bodyUsesQualifier(fn, name) {
			imports[name] = path
		}
	}

	var helpers []string
	needOS := false
	for _, u := range uses {
		switch u.Kind {
		case AccessInOpen:
			if len(u.Call.Args) == 0 {
				needOS = true
			} else {
				helpers = appendUnique(helpers, helperOpen)
			}
		case AccessOutCreate:
			helpers = appendUnique(helpers, helperCreate)
		case AccessOutSetParam:
			helpers = appendUnique(helpers, helperWriteParam)
		}
	}
	if needOS {
		imports["os"] = "os"
	}
	if len(helpers) > 0 {
		imports["os"] = "os"
		imports["filepath"] = "path/filepath"
	}
	sort.Strings(helpers)

	var sb strings.Builder
	sb.WriteString("package main\n\n")
	writeImports(&sb, imports)
	sb.WriteString("func main() {")
	sb.WriteString(body)
	sb.WriteString("}\n")
	for _, h := range helpers {
		sb.WriteString("\n")
		sb.WriteString(h)
	}
	return sb.String(), nil
}

func bodyUsesQualifier(fn *StepFunc, name string) bool {
	found := false
	ast.Inspect(fn.Decl.Body, func(n ast.Node) bool {
		if found {
			return false
		}
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if id, ok := sel.X.(*ast.Ident); ok && id.Name == name {
			found = true
			return false
		}
		return true
	})
	return found
}

func writeImports(sb *strings.Builder, imports map[string]string) {
	if len(imports) == 0 {
		return
	}
	type imp struct{ name, path string }
	var list []imp
	for name, path := range imports {
		list = append(list, imp{name, path})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].path < list[j].path })

	if len(list) == 1 {
		sb.WriteString("import " + importSpec(list[0].name, list[0].path) + "\n\n")
		return
	}
	sb.WriteString("import (\n")
	for _, im := range list {
		sb.WriteString("\t" + importSpec(im.name, im.path) + "\n")
	}
	sb.WriteString(")\n\n")
}

func importSpec(name, path string) string {
	base := path[strings.LastIndex(path, "/")+1:]
	if name != base {
		return name + ` "` + path + `"`
	}
	return `"` + path + `"`
}

const helperCreate = `func argotCreate(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.Create(filepath.Join(dir, name))
}
`

const helperOpen = `func argotOpen(dir, name string) (*os.File, error) {
	return os.Open(filepath.Join(dir, name))
}
`

const helperWriteParam = `func argotWriteParam(path, value string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		panic(err)
	}
}
`
