package workflow

import (
	"go/ast"
	"go/token"
	"strings"

	"github.com/argot-dev/argot/pkg/constants"
)

// MountPointDecl is a top-level `flow.NewMountPoint` declaration. Remote is
// the raw locator root, for example "s3://bucket/prefix".
type MountPointDecl struct {
	Ident  string
	Name   string
	Local  string
	Remote string
	Bucket string
	Prefix string
	Pos    token.Pos
}

// ParamDecl is a top-level `flow.NewParam` declaration.
type ParamDecl struct {
	Ident   string
	Name    string
	Default string
	Pos     token.Pos
}

// Declarations holds every mount point and workflow parameter of a script,
// in source order.
type Declarations struct {
	Mounts []*MountPointDecl
	Params []*ParamDecl
}

func (d *Declarations) MountByIdent(ident string) *MountPointDecl {
	for _, m := range d.Mounts {
		if m.Ident == ident {
			return m
		}
	}
	return nil
}

func (d *Declarations) ParamByIdent(ident string) *ParamDecl {
	for _, p := range d.Params {
		if p.Ident == ident {
			return p
		}
	}
	return nil
}

// Contract lists the slots a step function's body actually touches, split by
// direction and kind. Call-site bindings must cover exactly these sets.
type Contract struct {
	InParams     []string
	InArtifacts  []string
	OutParams    []string
	OutArtifacts []string
}

// StepFunc is a function carrying a step marker, together with everything
// validation learned about it.
type StepFunc struct {
	Name        string
	Image       string
	Decl        *ast.FuncDecl
	InputsName  string // identifier of the inputs parameter
	OutputsName string // identifier of the outputs parameter
	InputsIndex int    // position of the inputs parameter, 0 or 1
	Contract    Contract
	Pos         token.Pos
}

// TemplateName returns the execution template name derived from the
// function name, with underscores hyphenated.
func (f *StepFunc) TemplateName() string {
	return constants.StepTemplatePrefix + Hyphenate(f.Name)
}

// ValueKind tells what a resolved scalar value expands to at run time.
type ValueKind int

const (
	ValueLiteral ValueKind = iota
	ValueWorkflowParam
	ValueStepOutput
	ValueItem
	ValueItemField
	ValueComposite
)

// Value is a resolved scalar expression: a placeholder string ready for
// emission plus the steps whose outputs it references.
type Value struct {
	Kind      ValueKind
	Text      string
	Str       bool // literal or composite known to be a string
	Producers []*Step
}

// ParamBinding binds one input parameter slot to a resolved value.
type ParamBinding struct {
	Slot  string
	Value Value
}

// ArtifactSource tells where an artifact binding's bytes come from.
type ArtifactSource int

const (
	ArtifactFromMount ArtifactSource = iota
	ArtifactFromStep
	ArtifactTmp
)

// ArtifactBinding binds an artifact slot either to a mount-point locator
// (bucket plus key, possibly templated) or to a prior step's output slot.
type ArtifactBinding struct {
	Slot         string
	Source       ArtifactSource
	Bucket       string
	Key          string
	Producer     *Step
	ProducerSlot string
}

// IterationSpec describes fan-out for a step invoked inside a loop. Exactly
// one of WithParam or SequenceCount is set.
type IterationSpec struct {
	WithParam     string
	SequenceCount string
}

// Step is one invocation in the entry function, or a synthesized split step
// feeding a row loop.
type Step struct {
	Name            string
	Fn              *StepFunc // nil for synthesized split steps
	InputParams     []ParamBinding
	InputArtifacts  []ArtifactBinding
	OutputParams    []string
	OutputArtifacts []ArtifactBinding
	Guard           string
	Iteration       *IterationSpec
	Stage           int
	Pos             token.Pos

	// Synthesized split steps carry their own generated script.
	Synthesized bool
	SplitSource string
	SplitInput  ArtifactBinding

	producers []*Step
}

func (s *Step) addProducer(p *Step) {
	for _, q := range s.producers {
		if q == p {
			return
		}
	}
	s.producers = append(s.producers, p)
}

// HasOutputParam reports whether the step declares an output parameter slot.
func (s *Step) HasOutputParam(slot string) bool {
	for _, p := range s.OutputParams {
		if p == slot {
			return true
		}
	}
	return false
}

// OutputArtifact returns the binding for an output artifact slot, or nil.
func (s *Step) OutputArtifact(slot string) *ArtifactBinding {
	for i := range s.OutputArtifacts {
		if s.OutputArtifacts[i].Slot == slot {
			return &s.OutputArtifacts[i]
		}
	}
	return nil
}

// Graph is the staged execution plan for one entry function.
type Graph struct {
	EntryName string
	Steps     []*Step   // source order, synthesized steps included
	Stages    [][]*Step // Stages[i] runs after every step in Stages[i-1]
}

// Hyphenate converts a dialect identifier into an orchestrator-safe name by
// replacing underscores with hyphens.
func Hyphenate(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}
