//go:build !integration

package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linearScript = `package main

import (
	"strconv"

	"github.com/argot-dev/argot/pkg/flow"
)

var (
	store   = flow.NewMountPoint("store", "~/data", "s3://acme-pipelines/experiments")
	initVal = flow.NewParam("init-value", "1")
)

//argot:step image=alpine:3.20
func add_one(in *flow.Inputs, out *flow.Outputs) {
	n, err := strconv.Atoi(in.Param("value"))
	if err != nil {
		panic(err)
	}
	out.SetParam("result", strconv.Itoa(n+1))
}

//argot:entry
func pipeline(store flow.MountPoint, initVal string) {
	first := flow.NewOutputs(flow.OutParam("result"))
	add_one(flow.NewInputs(flow.InParam("value", initVal)), first)
	second := flow.NewOutputs(flow.OutParam("result"))
	add_one(flow.NewInputs(flow.InParam("value", first.Param("result"))), second)
}
`

func TestCompileLinearPipeline(t *testing.T) {
	c := NewCompiler()
	res, err := c.Compile("linear.go", []byte(linearScript))
	require.NoError(t, err)

	assert.Equal(t, "pipeline", res.EntryName)
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, 2, res.Stages)

	doc := res.Workflow
	assert.Equal(t, "argoproj.io/v1alpha1", doc.APIVersion)
	assert.Equal(t, "Workflow", doc.Kind)
	assert.Equal(t, "argot-linear-", doc.Metadata.GenerateName)
	assert.Equal(t, "pipeline", doc.Spec.Entrypoint)

	require.NotNil(t, doc.Spec.Arguments)
	require.Len(t, doc.Spec.Arguments.Parameters, 1)
	assert.Equal(t, "init-value", doc.Spec.Arguments.Parameters[0].Name)
	assert.Empty(t, doc.Spec.Arguments.Parameters[0].Value, "workflow arguments carry names only")

	// One entry template plus one shared template for both invocations.
	require.Len(t, doc.Spec.Templates, 2)
	entry := doc.Spec.Templates[0]
	assert.Equal(t, "pipeline", entry.Name)
	require.Len(t, entry.Steps, 2)
	require.Len(t, entry.Steps[0], 1)
	require.Len(t, entry.Steps[1], 1)

	firstInv := entry.Steps[0][0]
	assert.Equal(t, "add-one", firstInv.Name)
	assert.Equal(t, "exec-add-one", firstInv.Template)
	require.NotNil(t, firstInv.Arguments)
	require.Len(t, firstInv.Arguments.Parameters, 1)
	assert.Equal(t, "{{workflow.parameters.init-value}}", firstInv.Arguments.Parameters[0].Value)

	secondInv := entry.Steps[1][0]
	assert.Equal(t, "add-one-2", secondInv.Name)
	assert.Equal(t, "exec-add-one", secondInv.Template)
	assert.Equal(t, "{{steps.add-one.outputs.parameters.result}}", secondInv.Arguments.Parameters[0].Value)

	exec := doc.Spec.Templates[1]
	assert.Equal(t, "exec-add-one", exec.Name)
	require.NotNil(t, exec.Inputs)
	require.Len(t, exec.Inputs.Parameters, 1)
	assert.Equal(t, "value", exec.Inputs.Parameters[0].Name)
	require.NotNil(t, exec.Outputs)
	require.Len(t, exec.Outputs.Parameters, 1)
	assert.Equal(t, "/workdir/out/result", exec.Outputs.Parameters[0].ValueFrom.Path)

	require.NotNil(t, exec.Script)
	assert.Equal(t, "alpine:3.20", exec.Script.Image)
	assert.Equal(t, []string{"go", "run"}, exec.Script.Command)
	assert.Equal(t, "30Mi", exec.Script.Resources.Requests.Memory)
	assert.Equal(t, "20m", exec.Script.Resources.Limits.CPU)
	require.Len(t, exec.InitContainers, 1)
	assert.Equal(t, "alpine:latest", exec.InitContainers[0].Image)
	assert.True(t, exec.InitContainers[0].MirrorVolumeMounts)

	src := exec.Script.Source
	assert.True(t, strings.HasPrefix(src, "package main\n"), "embedded script is a main package")
	assert.Contains(t, src, `strconv.Atoi("{{inputs.parameters.value}}")`)
	assert.Contains(t, src, `argotWriteParam("/workdir/out/result", strconv.Itoa(n+1))`)
	assert.Contains(t, src, `"strconv"`)
	assert.NotContains(t, src, "flow.", "the runtime never leaks into embedded scripts")
}

func TestCompileIsDeterministic(t *testing.T) {
	c := NewCompiler()
	a, err := c.Compile("linear.go", []byte(linearScript))
	require.NoError(t, err)
	b, err := c.Compile("linear.go", []byte(linearScript))
	require.NoError(t, err)
	assert.Equal(t, string(a.YAML), string(b.YAML))
	assert.Equal(t, string(a.ParamsYAML), string(b.ParamsYAML))
}

func TestCompileEmitsHeaderAndParams(t *testing.T) {
	c := NewCompiler()
	res, err := c.Compile("linear.go", []byte(linearScript))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(res.YAML), "# This file was generated by argot. DO NOT EDIT.\n"))
	assert.Equal(t, "init-value: \"1\"\n", string(res.ParamsYAML))
}

const parallelScript = `package main

import "github.com/argot-dev/argot/pkg/flow"

var seed = flow.NewParam("seed", "7")

//argot:step image=alpine:3.20
func left(in *flow.Inputs, out *flow.Outputs) {
	out.SetParam("out", in.Param("v"))
}

//argot:step image=alpine:3.20
func right(in *flow.Inputs, out *flow.Outputs) {
	out.SetParam("out", in.Param("v"))
}

//argot:step image=alpine:3.20
func join(in *flow.Inputs, out *flow.Outputs) {
	out.SetParam("sum", in.Param("a")+in.Param("b"))
}

//argot:entry
func fanout(seed string) {
	l := flow.NewOutputs(flow.OutParam("out"))
	left(flow.NewInputs(flow.InParam("v", seed)), l)
	r := flow.NewOutputs(flow.OutParam("out"))
	right(flow.NewInputs(flow.InParam("v", seed)), r)
	j := flow.NewOutputs(flow.OutParam("sum"))
	join(flow.NewInputs(
		flow.InParam("a", l.Param("out")),
		flow.InParam("b", r.Param("out")),
	), j)
}
`

func TestCompileStagesIndependentStepsTogether(t *testing.T) {
	res, err := NewCompiler().Compile("parallel.go", []byte(parallelScript))
	require.NoError(t, err)

	require.Equal(t, 2, res.Stages)
	entry := res.Workflow.Spec.Templates[0]
	require.Len(t, entry.Steps, 2)

	var stage0 []string
	for _, inv := range entry.Steps[0] {
		stage0 = append(stage0, inv.Name)
	}
	assert.Equal(t, []string{"left", "right"}, stage0)
	require.Len(t, entry.Steps[1], 1)
	assert.Equal(t, "join", entry.Steps[1][0].Name)
}

const guardedScript = `package main

import "github.com/argot-dev/argot/pkg/flow"

var mode = flow.NewParam("mode", "fast")

//argot:step image=alpine:3.20
func act(in *flow.Inputs, out *flow.Outputs) {
	out.SetParam("done", in.Param("how"))
}

//argot:entry
func guarded(mode string) {
	if mode == "fast" {
		act(flow.NewInputs(flow.InParam("how", mode)), flow.NewOutputs(flow.OutParam("done")))
	} else if mode == "slow" {
		act(flow.NewInputs(flow.InParam("how", mode)), flow.NewOutputs(flow.OutParam("done")))
	}
}
`

func TestCompileGuards(t *testing.T) {
	res, err := NewCompiler().Compile("guarded.go", []byte(guardedScript))
	require.NoError(t, err)

	entry := res.Workflow.Spec.Templates[0]
	require.Len(t, entry.Steps, 1)
	require.Len(t, entry.Steps[0], 2)

	assert.Equal(t, "{{workflow.parameters.mode}} == 'fast'", entry.Steps[0][0].When)
	// An else-if branch runs under its own test only, never the negation
	// of the branches before it.
	assert.Equal(t, "{{workflow.parameters.mode}} == 'slow'", entry.Steps[0][1].When)
	assert.Equal(t, "act", entry.Steps[0][0].Name)
	assert.Equal(t, "act-2", entry.Steps[0][1].Name)
}

const csvLoopScript = `package main

import "github.com/argot-dev/argot/pkg/flow"

var store = flow.NewMountPoint("store", "~/data", "s3://acme-pipelines/experiments")

//argot:step image=alpine:3.20
func crunch(in *flow.Inputs, out *flow.Outputs) {
	out.SetParam("echo", in.Param("arg"))
}

//argot:entry
func batch(store flow.MountPoint) {
	for row := range flow.IterCSV(store, "batches", "items.csv") {
		crunch(
			flow.NewInputs(flow.InParam("arg", row["command_arg"])),
			flow.NewOutputs(flow.OutParam("echo")),
		)
	}
}
`

func TestCompileCSVLoop(t *testing.T) {
	res, err := NewCompiler().Compile("batch.go", []byte(csvLoopScript))
	require.NoError(t, err)

	// The loop synthesizes a split step ahead of the wrapped step.
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, 2, res.Stages)

	entry := res.Workflow.Spec.Templates[0]
	split := entry.Steps[0][0]
	assert.Equal(t, "split-1", split.Name)
	assert.Equal(t, "split-1", split.Template)
	require.NotNil(t, split.Arguments)
	require.Len(t, split.Arguments.Artifacts, 1)
	s3 := split.Arguments.Artifacts[0].S3
	require.NotNil(t, s3)
	assert.Equal(t, "s3.amazonaws.com", s3.Endpoint)
	assert.Equal(t, "acme-pipelines", s3.Bucket)
	assert.Equal(t, "experiments/batches/items.csv", s3.Key)

	crunch := entry.Steps[1][0]
	assert.Equal(t, "crunch", crunch.Name)
	assert.Equal(t, "{{steps.split-1.outputs.parameters.rows}}", crunch.WithParam)
	assert.Equal(t, "{{item.command_arg}}", crunch.Arguments.Parameters[0].Value)

	// The split template publishes both the row objects and their count.
	var splitTmpl *Template
	for i := range res.Workflow.Spec.Templates {
		if res.Workflow.Spec.Templates[i].Name == "split-1" {
			splitTmpl = &res.Workflow.Spec.Templates[i]
		}
	}
	require.NotNil(t, splitTmpl)
	require.Len(t, splitTmpl.Outputs.Parameters, 2)
	assert.Equal(t, "count", splitTmpl.Outputs.Parameters[0].Name)
	assert.Equal(t, "rows", splitTmpl.Outputs.Parameters[1].Name)
	assert.Contains(t, splitTmpl.Script.Source, "encoding/csv")
}

const sequenceScript = `package main

import "github.com/argot-dev/argot/pkg/flow"

//argot:step image=alpine:3.20
func count(in *flow.Inputs, out *flow.Outputs) {
	out.SetParam("n", in.Param("seed"))
}

//argot:step image=alpine:3.20
func work(in *flow.Inputs, out *flow.Outputs) {
	out.SetParam("echo", in.Param("idx"))
}

//argot:entry
func repeat() {
	c := flow.NewOutputs(flow.OutParam("n"))
	count(flow.NewInputs(flow.InParam("seed", "3")), c)
	for i := range flow.IterateN(c.Param("n")) {
		work(
			flow.NewInputs(flow.InParam("idx", i)),
			flow.NewOutputs(flow.OutParam("echo")),
		)
	}
}
`

func TestCompileSequenceLoop(t *testing.T) {
	res, err := NewCompiler().Compile("repeat.go", []byte(sequenceScript))
	require.NoError(t, err)

	entry := res.Workflow.Spec.Templates[0]
	require.Len(t, entry.Steps, 2)
	work := entry.Steps[1][0]
	require.NotNil(t, work.WithSequence)
	assert.Equal(t, "{{steps.count.outputs.parameters.n}}", work.WithSequence.Count)
	assert.Equal(t, "{{item}}", work.Arguments.Parameters[0].Value)
}

const artifactScript = `package main

import "github.com/argot-dev/argot/pkg/flow"

var store = flow.NewMountPoint("store", "~/data", "s3://acme-pipelines/experiments")

//argot:step image=alpine:3.20
func produce(in *flow.Inputs, out *flow.Outputs) {
	f, err := out.Artifact("scratch").Create("numbers.txt")
	if err != nil {
		panic(err)
	}
	f.WriteString(in.Param("v"))
	f.Close()
}

//argot:step image=alpine:3.20
func consume(in *flow.Inputs, out *flow.Outputs) {
	f, err := in.Artifact("handoff").Open("numbers.txt")
	if err != nil {
		panic(err)
	}
	f.Close()
	g, err := out.Artifact("final").Create("done.txt")
	if err != nil {
		panic(err)
	}
	g.Close()
}

//argot:entry
func handover(store flow.MountPoint) {
	p := flow.NewOutputs(flow.OutTmp("scratch"))
	produce(flow.NewInputs(flow.InParam("v", "42")), p)
	consume(
		flow.NewInputs(flow.InArtifact("handoff", p.Artifact("scratch"))),
		flow.NewOutputs(flow.OutFile("final", store, "results")),
	)
}
`

func TestCompileArtifactHandoff(t *testing.T) {
	res, err := NewCompiler().Compile("handover.go", []byte(artifactScript))
	require.NoError(t, err)

	entry := res.Workflow.Spec.Templates[0]
	consumeInv := entry.Steps[1][0]
	require.Len(t, consumeInv.Arguments.Artifacts, 1)
	art := consumeInv.Arguments.Artifacts[0]
	assert.Equal(t, "handoff", art.Name)
	assert.Equal(t, "{{steps.produce.outputs.artifacts.scratch}}", art.From)
	assert.Nil(t, art.S3)

	var produceTmpl, consumeTmpl *Template
	for i := range res.Workflow.Spec.Templates {
		switch res.Workflow.Spec.Templates[i].Name {
		case "exec-produce":
			produceTmpl = &res.Workflow.Spec.Templates[i]
		case "exec-consume":
			consumeTmpl = &res.Workflow.Spec.Templates[i]
		}
	}
	require.NotNil(t, produceTmpl)
	require.NotNil(t, consumeTmpl)

	// Scratch handoffs live in the default artifact store, mount-point
	// outputs carry an explicit locator.
	scratch := produceTmpl.Outputs.Artifacts[0]
	assert.Equal(t, "/workdir/out/scratch", scratch.Path)
	assert.Nil(t, scratch.S3)

	final := consumeTmpl.Outputs.Artifacts[0]
	require.NotNil(t, final.S3)
	assert.Equal(t, "experiments/results", final.S3.Key)

	src := consumeTmpl.Script.Source
	assert.Contains(t, src, `argotOpen("{{inputs.artifacts.handoff.path}}", "numbers.txt")`)
	assert.Contains(t, src, `argotCreate("{{outputs.artifacts.final.path}}", "done.txt")`)
	assert.Contains(t, src, "func argotOpen(")
	assert.Contains(t, src, "func argotCreate(")
}

func TestCompileValidatesAgainstSchema(t *testing.T) {
	// The self-check runs by default and accepts every document the
	// emitter produces.
	res, err := NewCompiler().Compile("linear.go", []byte(linearScript))
	require.NoError(t, err)
	require.NoError(t, ValidateDocument(res.Workflow))

	res2, err := NewCompiler(WithSchemaValidation(false)).Compile("linear.go", []byte(linearScript))
	require.NoError(t, err)
	assert.Equal(t, string(res.YAML), string(res2.YAML))
}
