package flow

import (
	"fmt"
	"path/filepath"
)

// Inputs carries a step's declared input slots: parameters and artifacts.
// Slots are fixed at construction; reading an undeclared slot panics, which
// is the local-run analogue of the compiler's slot contract check.
type Inputs struct {
	params    map[string]string
	artifacts map[string]Artifact
}

// Outputs carries a step's declared output slots. Parameter slots are
// declared empty and assigned exactly once by the step body; artifact slots
// point at local destinations.
type Outputs struct {
	params    map[string]*string
	artifacts map[string]Artifact
}

// InputOpt declares one input slot on NewInputs.
type InputOpt func(*Inputs)

// OutputOpt declares one output slot on NewOutputs.
type OutputOpt func(*Outputs)

// NewInputs builds the input accessor for a step call.
func NewInputs(opts ...InputOpt) *Inputs {
	in := &Inputs{params: map[string]string{}, artifacts: map[string]Artifact{}}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// NewOutputs builds the output accessor for a step call.
func NewOutputs(opts ...OutputOpt) *Outputs {
	out := &Outputs{params: map[string]*string{}, artifacts: map[string]Artifact{}}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// InParam binds an input parameter slot to a value.
func InParam(slot, value string) InputOpt {
	return func(in *Inputs) { in.params[slot] = value }
}

// InFile binds an input artifact slot to a file under a mount point. In the
// compiled workflow the artifact is fetched from the mount point's remote
// root at dir/file.
func InFile(slot string, mp MountPoint, dir, file string) InputOpt {
	return func(in *Inputs) {
		in.artifacts[slot] = Artifact{
			slot:     slot,
			dir:      filepath.Join(mp.Local, dir),
			file:     file,
			readonly: true,
		}
	}
}

// InArtifact binds an input artifact slot to an artifact produced by an
// earlier step, taken from that step's Outputs.
func InArtifact(slot string, a Artifact) InputOpt {
	return func(in *Inputs) {
		a.slot = slot
		a.readonly = true
		in.artifacts[slot] = a
	}
}

// OutParam declares an output parameter slot. The step body must assign it
// with SetParam.
func OutParam(slot string) OutputOpt {
	return func(out *Outputs) { out.params[slot] = new(string) }
}

// OutFile declares an output artifact slot rooted under a mount point. Files
// the step creates in this slot are synced to the mount point's remote root
// under dir.
func OutFile(slot string, mp MountPoint, dir string) OutputOpt {
	return func(out *Outputs) {
		out.artifacts[slot] = Artifact{slot: slot, dir: filepath.Join(mp.Local, dir)}
	}
}

// OutTmp declares a scratch output artifact used to hand data to later
// steps. In the compiled workflow it lives in the orchestrator's default
// transfer storage; locally it lives under the system temp directory.
func OutTmp(slot string) OutputOpt {
	return func(out *Outputs) {
		out.artifacts[slot] = Artifact{slot: slot, dir: filepath.Join(tmpRoot(), slot)}
	}
}

// Param returns the value bound to an input parameter slot.
func (in *Inputs) Param(slot string) string {
	v, ok := in.params[slot]
	if !ok {
		panic(fmt.Sprintf("flow: read of undeclared input parameter %q", slot))
	}
	return v
}

// Artifact returns the handle for an input artifact slot.
func (in *Inputs) Artifact(slot string) Artifact {
	a, ok := in.artifacts[slot]
	if !ok {
		panic(fmt.Sprintf("flow: read of undeclared input artifact %q", slot))
	}
	return a
}

// SetParam assigns an output parameter slot.
func (out *Outputs) SetParam(slot, value string) {
	p, ok := out.params[slot]
	if !ok {
		panic(fmt.Sprintf("flow: write to undeclared output parameter %q", slot))
	}
	*p = value
}

// Param returns the value a completed step assigned to an output parameter
// slot. It panics when the producing step has not run, which locally is what
// a forward reference looks like.
func (out *Outputs) Param(slot string) string {
	p, ok := out.params[slot]
	if !ok {
		panic(fmt.Sprintf("flow: read of undeclared output parameter %q", slot))
	}
	return *p
}

// Artifact returns the handle for an output artifact slot.
func (out *Outputs) Artifact(slot string) Artifact {
	a, ok := out.artifacts[slot]
	if !ok {
		panic(fmt.Sprintf("flow: read of undeclared output artifact %q", slot))
	}
	return a
}
