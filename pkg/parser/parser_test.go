//go:build !integration

package parser

import (
	"go/ast"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScript = `package main

import "github.com/argot-dev/argot/pkg/flow"

var root = flow.NewMountPoint("root", "/data", "s3://bucket")

//argot:step image=golang:1.24-alpine
func addAlpha(in *flow.Inputs, out *flow.Outputs) {
	out.SetParam("out-value", in.Param("init-value")+"a")
}

//argot:entry
func pipeline(root flow.MountPoint) {
	addAlpha(flow.NewInputs(flow.InParam("init-value", "1")), flow.NewOutputs(flow.OutParam("out-value")))
}
`

func parseTestScript(t *testing.T, src string) *Script {
	t.Helper()
	s, err := ParseSource("script.go", []byte(src))
	require.NoError(t, err)
	return s
}

func funcNamed(t *testing.T, s *Script, name string) *ast.FuncDecl {
	t.Helper()
	for _, decl := range s.File.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Name.Name == name {
			return fn
		}
	}
	t.Fatalf("function %s not found", name)
	return nil
}

func TestParseSourceDetectsFlowAlias(t *testing.T) {
	s := parseTestScript(t, minimalScript)
	assert.Equal(t, "flow", s.FlowAlias)

	aliased := `package main

import fl "github.com/argot-dev/argot/pkg/flow"

var p = fl.NewParam("x", "1")
`
	s = parseTestScript(t, aliased)
	assert.Equal(t, "fl", s.FlowAlias)

	plain := "package main\n\nfunc main() {}\n"
	s = parseTestScript(t, plain)
	assert.Equal(t, "", s.FlowAlias)
}

func TestParseDirective(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		kind      DirectiveKind
		image     string
		wantErr   string
		wantNone  bool
		funcIdent string
	}{
		{
			name:      "step with image",
			src:       minimalScript,
			kind:      DirectiveStep,
			image:     "golang:1.24-alpine",
			funcIdent: "addAlpha",
		},
		{
			name:      "entry",
			src:       minimalScript,
			kind:      DirectiveEntry,
			funcIdent: "pipeline",
		},
		{
			name: "step without image",
			src: `package main

//argot:step
func f() {}
`,
			wantErr:   "requires an image attribute",
			funcIdent: "f",
		},
		{
			name: "unknown attribute",
			src: `package main

//argot:step image=x retries=3
func f() {}
`,
			wantErr:   `unknown attribute "retries"`,
			funcIdent: "f",
		},
		{
			name: "unknown directive",
			src: `package main

//argot:loop
func f() {}
`,
			wantErr:   `unknown argot directive "loop"`,
			funcIdent: "f",
		},
		{
			name: "entry with attributes",
			src: `package main

//argot:entry image=x
func f() {}
`,
			wantErr:   "takes no attributes",
			funcIdent: "f",
		},
		{
			name: "undecorated function",
			src: `package main

// plain helper
func f() {}
`,
			wantNone:  true,
			funcIdent: "f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parseTestScript(t, tt.src)
			fn := funcNamed(t, s, tt.funcIdent)

			d, err := ParseDirective(fn)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantNone {
				assert.Nil(t, d)
				return
			}
			require.NotNil(t, d)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.image, d.Image)
		})
	}
}

func TestSliceReturnsExactSource(t *testing.T) {
	s := parseTestScript(t, minimalScript)
	fn := funcNamed(t, s, "addAlpha")

	body := s.Slice(fn.Body.Lbrace, fn.Body.Rbrace+1)
	assert.Equal(t, "{\n\tout.SetParam(\"out-value\", in.Param(\"init-value\")+\"a\")\n}", body)
}

func TestCallMatchers(t *testing.T) {
	s := parseTestScript(t, minimalScript)
	fn := funcNamed(t, s, "pipeline")

	stmt := fn.Body.List[0].(*ast.ExprStmt)
	call := stmt.X.(*ast.CallExpr)

	inputs := call.Args[0]
	newInputs, ok := PkgCall(inputs, "flow", "NewInputs")
	require.True(t, ok)

	inParam, name, ok := AnyPkgCall(newInputs.Args[0], "flow")
	require.True(t, ok)
	assert.Equal(t, "InParam", name)

	slot, ok := StringLit(inParam.Args[0])
	require.True(t, ok)
	assert.Equal(t, "init-value", slot)

	_, ok = PkgCall(inputs, "flow", "NewOutputs")
	assert.False(t, ok)
}

func TestMethodAndChainedCallMatchers(t *testing.T) {
	src := `package main

func f() {
	out.SetParam("k", "v")
	g, _ := out.Artifact("x").Create("name.txt")
	_ = g
}
`
	s := parseTestScript(t, src)
	fn := funcNamed(t, s, "f")

	setCall := fn.Body.List[0].(*ast.ExprStmt).X
	call, recv, ok := MethodCall(setCall, "SetParam")
	require.True(t, ok)
	assert.Equal(t, "out", recv.Name)
	assert.Len(t, call.Args, 2)

	assign := fn.Body.List[1].(*ast.AssignStmt)
	outer, inner, ok := ChainedCall(assign.Rhs[0], "Create")
	require.True(t, ok)
	assert.Len(t, outer.Args, 1)

	_, recv, ok = MethodCall(inner, "Artifact")
	require.True(t, ok)
	assert.Equal(t, "out", recv.Name)
}
