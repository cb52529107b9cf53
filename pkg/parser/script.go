// Package parser loads argot workflow scripts and provides the AST helpers
// the compiler is built on. A script is a single Go source file; the Go
// toolchain's own parser gives us concrete-syntax fidelity for free, which
// the body transformer depends on.
package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"strconv"
	"strings"

	"github.com/argot-dev/argot/pkg/logger"
)

var scriptLog = logger.New("parser:script")

// FlowImportPath is the import path of the dialect runtime library.
const FlowImportPath = "github.com/argot-dev/argot/pkg/flow"

// Script is a parsed workflow script plus the source bytes it came from.
// Source offsets stay valid for the lifetime of the Script, so rewrites can
// splice replacement text without a printer round trip.
type Script struct {
	Path   string
	Source []byte
	File   *ast.File
	Fset   *token.FileSet

	// FlowAlias is the local package name of the flow import, usually "flow".
	FlowAlias string
}

// ParseScript reads and parses the script at path.
func ParseScript(path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseSource(path, src)
}

// ParseSource parses script source held in memory. The filename is used for
// positions only.
func ParseSource(filename string, src []byte) (*Script, error) {
	scriptLog.Printf("Parsing script %s (%d bytes)", filename, len(src))

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}

	s := &Script{
		Path:      filename,
		Source:    src,
		File:      file,
		Fset:      fset,
		FlowAlias: flowAlias(file),
	}
	return s, nil
}

// flowAlias returns the local name under which the flow runtime is imported,
// or "" when the script does not import it.
func flowAlias(file *ast.File) string {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path != FlowImportPath {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name
		}
		return "flow"
	}
	return ""
}

// Imports returns the script's imports as local name -> import path,
// excluding the flow runtime itself.
func (s *Script) Imports() map[string]string {
	out := make(map[string]string)
	for _, imp := range s.File.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path == FlowImportPath {
			continue
		}
		name := path[strings.LastIndex(path, "/")+1:]
		if imp.Name != nil {
			name = imp.Name.Name
		}
		out[name] = path
	}
	return out
}

// Position resolves a token.Pos into a file:line:column position.
func (s *Script) Position(pos token.Pos) token.Position {
	return s.Fset.Position(pos)
}

// Offset returns the byte offset of pos within Source.
func (s *Script) Offset(pos token.Pos) int {
	return s.Fset.Position(pos).Offset
}

// Slice returns the source text between two positions.
func (s *Script) Slice(from, to token.Pos) string {
	return string(s.Source[s.Offset(from):s.Offset(to)])
}

// ContextLines returns the source lines centered on line, for diagnostics.
func (s *Script) ContextLines(line, radius int) []string {
	lines := strings.Split(string(s.Source), "\n")
	start := max(1, line-radius)
	end := min(len(lines), line+radius)

	var out []string
	for i := start; i <= end; i++ {
		out = append(out, lines[i-1])
	}
	return out
}
