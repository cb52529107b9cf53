//go:build !integration

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/argot-dev/argot/pkg/testutil"
	"github.com/argot-dev/argot/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScript = `package main

import (
	"strconv"

	"github.com/argot-dev/argot/pkg/flow"
)

var initVal = flow.NewParam("init-value", "1")

//argot:step image=alpine:3.20
func add_one(in *flow.Inputs, out *flow.Outputs) {
	n, err := strconv.Atoi(in.Param("value"))
	if err != nil {
		panic(err)
	}
	out.SetParam("result", strconv.Itoa(n+1))
}

//argot:entry
func pipeline(initVal string) {
	first := flow.NewOutputs(flow.OutParam("result"))
	add_one(flow.NewInputs(flow.InParam("value", initVal)), first)
}
`

// brokenScript binds a slot the step never declares, so it fails
// validation and must leave no output behind.
const brokenScript = `package main

import "github.com/argot-dev/argot/pkg/flow"

//argot:step image=alpine:3.20
func work(in *flow.Inputs, out *flow.Outputs) {
	out.SetParam("result", in.Param("value"))
}

//argot:entry
func pipeline() {
	work(flow.NewInputs(flow.InParam("wrong", "x")), flow.NewOutputs(flow.OutParam("result")))
}
`

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestManifestPath(t *testing.T) {
	assert.Equal(t, "pipelines/exp.yaml", manifestPath("pipelines/exp.go", ""))
	assert.Equal(t, "out/custom.yaml", manifestPath("pipelines/exp.go", "out/custom.yaml"))
}

func TestCollectScriptsSkipsNonScripts(t *testing.T) {
	dir := testutil.TempDir(t, "collect-scripts")
	writeScript(t, dir, "a.go", validScript)
	writeScript(t, dir, "b.go", validScript)
	writeScript(t, dir, "a_test.go", "package main\n")
	writeScript(t, dir, "_draft.go", "package main\n")
	writeScript(t, dir, "notes.txt", "not a script")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	scripts, err := collectScripts(dir)
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	assert.Equal(t, filepath.Join(dir, "a.go"), scripts[0])
	assert.Equal(t, filepath.Join(dir, "b.go"), scripts[1])
}

func TestResolveScriptsMissingFile(t *testing.T) {
	_, err := resolveScripts([]string{"/nonexistent/pipeline.go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read")
}

func TestResolveScriptsEmptyDirectory(t *testing.T) {
	dir := testutil.TempDir(t, "empty-dir")
	_, err := resolveScripts([]string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scripts found")
}

func TestCompileOneWritesManifest(t *testing.T) {
	dir := testutil.TempDir(t, "compile-one")
	script := writeScript(t, dir, "exp.go", validScript)

	result, err := compileOne(script, &CompileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Steps)

	data, err := os.ReadFile(filepath.Join(dir, "exp.yaml"))
	require.NoError(t, err)
	content := testutil.StripYAMLCommentHeader(string(data))
	assert.Contains(t, content, "generateName: argot-exp-")
	assert.Contains(t, content, "entrypoint: pipeline")
}

func TestCompileOneHonorsOutputOverride(t *testing.T) {
	dir := testutil.TempDir(t, "compile-output")
	script := writeScript(t, dir, "exp.go", validScript)
	out := filepath.Join(dir, "custom.yaml")

	_, err := compileOne(script, &CompileOptions{Output: out})
	require.NoError(t, err)

	_, err = os.Stat(out)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "exp.yaml"))
	assert.True(t, os.IsNotExist(err), "default manifest path should not be written")
}

func TestCompileOneWritesParamsFile(t *testing.T) {
	dir := testutil.TempDir(t, "compile-params")
	script := writeScript(t, dir, "exp.go", validScript)
	params := filepath.Join(dir, "params.yaml")

	_, err := compileOne(script, &CompileOptions{ParamsFile: params})
	require.NoError(t, err)

	data, err := os.ReadFile(params)
	require.NoError(t, err)
	assert.Equal(t, "init-value: \"1\"\n", string(data))
}

func TestCompileOneFailureWritesNothing(t *testing.T) {
	dir := testutil.TempDir(t, "compile-broken")
	script := writeScript(t, dir, "broken.go", brokenScript)

	_, err := compileOne(script, &CompileOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SlotContractError")

	_, statErr := os.Stat(filepath.Join(dir, "broken.yaml"))
	assert.True(t, os.IsNotExist(statErr), "no manifest may survive a failed compile")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files may survive a failed compile")
}

func TestPrintCompileErrorEmitsBareDiagnosticLine(t *testing.T) {
	dir := testutil.TempDir(t, "diagnostic-line")
	script := writeScript(t, dir, "broken.go", brokenScript)

	_, err := workflow.NewCompiler().CompileFile(script)
	require.Error(t, err)

	var buf bytes.Buffer
	printCompileError(&buf, err, false)
	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "SlotContractError: "),
		"diagnostic %q must start with the error kind", line)
	assert.Contains(t, line, "("+script+":")
	assert.Equal(t, 1, strings.Count(line, "\n"), "non-verbose failure prints one line")
}

func TestRunCompileRejectsOutputForMultipleScripts(t *testing.T) {
	dir := testutil.TempDir(t, "compile-multi-output")
	a := writeScript(t, dir, "a.go", validScript)
	b := writeScript(t, dir, "b.go", validScript)

	err := RunCompile([]string{a, b}, &CompileOptions{Output: "out.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output requires exactly one script")
}

func TestRunCompileBatchReportsFailures(t *testing.T) {
	dir := testutil.TempDir(t, "compile-batch")
	writeScript(t, dir, "good.go", validScript)
	writeScript(t, dir, "bad.go", brokenScript)

	err := RunCompile([]string{dir}, &CompileOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 scripts failed to compile")

	_, statErr := os.Stat(filepath.Join(dir, "good.yaml"))
	assert.NoError(t, statErr, "healthy scripts still compile when siblings fail")
}

func TestRunCompileBatchAllGood(t *testing.T) {
	dir := testutil.TempDir(t, "compile-batch-ok")
	writeScript(t, dir, "a.go", validScript)
	writeScript(t, dir, "b.go", validScript)

	require.NoError(t, RunCompile([]string{dir}, &CompileOptions{}))
	for _, name := range []string{"a.yaml", "b.yaml"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err)
	}
}

func TestWriteFileAtomicReplacesExisting(t *testing.T) {
	dir := testutil.TempDir(t, "atomic-write")
	path := filepath.Join(dir, "out.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, writeFileAtomic(path, []byte("new")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must be renamed away")
}

func TestNewCompileCommandFlags(t *testing.T) {
	cmd := NewCompileCommand()
	assert.Equal(t, "compile", cmd.Name())
	for _, flag := range []string{"output", "params-file", "no-validate", "watch", "verbose"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "missing flag %s", flag)
	}
	if !strings.HasPrefix(cmd.Use, "compile") {
		t.Errorf("unexpected Use: %q", cmd.Use)
	}
}
