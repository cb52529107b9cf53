//go:build !integration

package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/argot-dev/argot/pkg/parser"
)

func stepFuncOf(t *testing.T, src, name string) (*parser.Script, *StepFunc) {
	t.Helper()
	script, err := parser.ParseSource("script.go", []byte(src))
	require.NoError(t, err)
	reg, err := BuildRegistry(script)
	require.NoError(t, err)
	fn := reg.StepByName(name)
	require.NotNil(t, fn)
	return script, fn
}

func TestEmbedStepExactOutput(t *testing.T) {
	const src = `package main

import (
	"fmt"

	"github.com/argot-dev/argot/pkg/flow"
)

//argot:step image=alpine:3.20
func greet(in *flow.Inputs, out *flow.Outputs) {
	out.SetParam("msg", fmt.Sprintf("hello %s", in.Param("name")))
}

//argot:entry
func run() {
	greet(flow.NewInputs(flow.InParam("name", "world")), flow.NewOutputs(flow.OutParam("msg")))
}
`
	script, fn := stepFuncOf(t, src, "greet")
	got, err := EmbedStep(script, fn)
	require.NoError(t, err)

	want := `package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	argotWriteParam("/workdir/out/msg", fmt.Sprintf("hello %s", "{{inputs.parameters.name}}"))
}

func argotWriteParam(path, value string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		panic(err)
	}
}
`
	require.Equal(t, want, got)
}

func TestEmbedStepBareOpenUsesPlainOS(t *testing.T) {
	const src = `package main

import "github.com/argot-dev/argot/pkg/flow"

//argot:step image=alpine:3.20
func read(in *flow.Inputs, out *flow.Outputs) {
	f, err := in.Artifact("doc").Open()
	if err != nil {
		panic(err)
	}
	f.Close()
	out.SetParam("ok", "1")
}

//argot:entry
func run() {
	read(
		flow.NewInputs(flow.InFile("doc", store, "dir", "doc.txt")),
		flow.NewOutputs(flow.OutParam("ok")),
	)
}

var store = flow.NewMountPoint("store", "~/d", "s3://b/p")
`
	script, fn := stepFuncOf(t, src, "read")
	got, err := EmbedStep(script, fn)
	require.NoError(t, err)

	// A no-argument Open becomes a direct os.Open of the delivered file;
	// the argotOpen shim only appears for named lookups.
	require.Contains(t, got, `f, err := os.Open("{{inputs.artifacts.doc.path}}")`)
	require.NotContains(t, got, "func argotOpen(")
	require.Contains(t, got, "func argotWriteParam(")
}

func TestScanAccessorsContract(t *testing.T) {
	const src = `package main

import "github.com/argot-dev/argot/pkg/flow"

//argot:step image=alpine:3.20
func mixed(in *flow.Inputs, out *flow.Outputs) {
	a := in.Param("alpha")
	b := in.Param("alpha")
	f, _ := in.Artifact("blob").Open("x")
	f.Close()
	g, _ := out.Artifact("result").Create("y")
	g.Close()
	out.SetParam("sum", a+b)
}

//argot:entry
func run() {
	mixed(flow.NewInputs(), flow.NewOutputs())
}
`
	script, fn := stepFuncOf(t, src, "mixed")
	scan, err := ScanAccessors(script, fn)
	require.NoError(t, err)

	// Repeated reads of one slot collapse to a single contract entry.
	require.Equal(t, []string{"alpha"}, scan.Contract.InParams)
	require.Equal(t, []string{"blob"}, scan.Contract.InArtifacts)
	require.Equal(t, []string{"sum"}, scan.Contract.OutParams)
	require.Equal(t, []string{"result"}, scan.Contract.OutArtifacts)
}
