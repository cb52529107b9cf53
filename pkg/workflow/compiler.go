// Package workflow compiles argot scripts into orchestrator workflow
// manifests. The pipeline is strictly staged: parse, scan declarations,
// build the step registry, validate the entry, build the staged graph,
// assemble the document, and finally self-check it against the embedded
// schema. Every stage fails fast; no output survives a partial compile.
package workflow

import (
	"github.com/argot-dev/argot/pkg/logger"
	"github.com/argot-dev/argot/pkg/parser"
)

var compileLog = logger.New("workflow:compiler")

// Compiler turns dialect scripts into workflow manifests.
type Compiler struct {
	validate bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithSchemaValidation toggles the post-emission schema self-check. It is
// on by default.
func WithSchemaValidation(enabled bool) Option {
	return func(c *Compiler) { c.validate = enabled }
}

// NewCompiler constructs a Compiler with defaults applied.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{validate: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is a successful compilation: the document, its rendered bytes,
// the parameter defaults file, and summary figures for reporting.
type Result struct {
	Workflow   *Document
	YAML       []byte
	ParamsYAML []byte
	EntryName  string
	Steps      int
	Stages     int
}

// CompileFile compiles the script at path.
func (c *Compiler) CompileFile(path string) (*Result, error) {
	script, err := parser.ParseScript(path)
	if err != nil {
		return nil, err
	}
	res, err := c.compile(script)
	attachContext(script, err)
	return res, err
}

// Compile compiles script source held in memory; filename is used for
// diagnostics and workflow naming.
func (c *Compiler) Compile(filename string, src []byte) (*Result, error) {
	script, err := parser.ParseSource(filename, src)
	if err != nil {
		return nil, err
	}
	res, err := c.compile(script)
	attachContext(script, err)
	return res, err
}

// attachContext adds the source lines around a positioned compile error so
// the console renderer can show them.
func attachContext(s *parser.Script, err error) {
	ce, ok := AsCompileError(err)
	if !ok || ce.Pos.Filename != s.Path || ce.Pos.Line == 0 || len(ce.Context) > 0 {
		return
	}
	ce.Context = s.ContextLines(ce.Pos.Line, 2)
}

func (c *Compiler) compile(script *parser.Script) (*Result, error) {
	compileLog.Printf("compiling %s", script.Path)

	if script.FlowAlias == "" {
		return nil, compileErrorf(UnsupportedConstructError, script.Position(script.File.Pos()),
			"script does not import %s", parser.FlowImportPath)
	}

	decls, err := ScanDeclarations(script)
	if err != nil {
		return nil, err
	}
	reg, err := BuildRegistry(script)
	if err != nil {
		return nil, err
	}
	if err := ValidateEntry(script, decls, reg.Entry); err != nil {
		return nil, err
	}
	graph, err := BuildGraph(script, decls, reg)
	if err != nil {
		return nil, err
	}

	doc, err := BuildDocument(script, decls, graph, Stem(script.Path))
	if err != nil {
		return nil, err
	}
	if c.validate {
		if err := ValidateDocument(doc); err != nil {
			return nil, err
		}
	}

	rendered, err := MarshalDocument(doc)
	if err != nil {
		return nil, err
	}
	params, err := MarshalParams(decls)
	if err != nil {
		return nil, err
	}

	compileLog.Printf("compiled %s: %d steps, %d stages", script.Path, len(graph.Steps), len(graph.Stages))
	return &Result{
		Workflow:   doc,
		YAML:       rendered,
		ParamsYAML: params,
		EntryName:  graph.EntryName,
		Steps:      len(graph.Steps),
		Stages:     len(graph.Stages),
	}, nil
}
