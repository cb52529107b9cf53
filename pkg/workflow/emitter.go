package workflow

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/argot-dev/argot/pkg/constants"
	"github.com/argot-dev/argot/pkg/logger"
	"github.com/argot-dev/argot/pkg/parser"
)

var emitLog = logger.New("workflow:emitter")

// Document is the emitted workflow manifest. Field order is fixed by the
// struct layout, which together with sorted map-free emission makes the
// output byte-reproducible.
type Document struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion"`
	Kind       string   `yaml:"kind" json:"kind"`
	Metadata   Metadata `yaml:"metadata" json:"metadata"`
	Spec       Spec     `yaml:"spec" json:"spec"`
}

type Metadata struct {
	GenerateName string `yaml:"generateName" json:"generateName"`
}

type Spec struct {
	Entrypoint string     `yaml:"entrypoint" json:"entrypoint"`
	Volumes    []Volume   `yaml:"volumes" json:"volumes"`
	Arguments  *Arguments `yaml:"arguments,omitempty" json:"arguments,omitempty"`
	Templates  []Template `yaml:"templates" json:"templates"`
}

type Volume struct {
	Name     string   `yaml:"name" json:"name"`
	EmptyDir struct{} `yaml:"emptyDir" json:"emptyDir"`
}

type Arguments struct {
	Parameters []Parameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Artifacts  []Artifact  `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
}

type Parameter struct {
	Name      string     `yaml:"name" json:"name"`
	Value     string     `yaml:"value,omitempty" json:"value,omitempty"`
	ValueFrom *ValueFrom `yaml:"valueFrom,omitempty" json:"valueFrom,omitempty"`
}

type ValueFrom struct {
	Path string `yaml:"path" json:"path"`
}

type Artifact struct {
	Name string      `yaml:"name" json:"name"`
	Path string      `yaml:"path,omitempty" json:"path,omitempty"`
	From string      `yaml:"from,omitempty" json:"from,omitempty"`
	S3   *S3Artifact `yaml:"s3,omitempty" json:"s3,omitempty"`
}

type S3Artifact struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Bucket   string `yaml:"bucket" json:"bucket"`
	Key      string `yaml:"key" json:"key"`
}

type Template struct {
	Name           string             `yaml:"name" json:"name"`
	Steps          [][]StepInvocation `yaml:"steps,omitempty" json:"steps,omitempty"`
	Inputs         *IOSpec            `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs        *IOSpec            `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	InitContainers []InitContainer    `yaml:"initContainers,omitempty" json:"initContainers,omitempty"`
	Script         *ScriptSpec        `yaml:"script,omitempty" json:"script,omitempty"`
}

type StepInvocation struct {
	Name         string     `yaml:"name" json:"name"`
	Template     string     `yaml:"template" json:"template"`
	Arguments    *Arguments `yaml:"arguments,omitempty" json:"arguments,omitempty"`
	When         string     `yaml:"when,omitempty" json:"when,omitempty"`
	WithParam    string     `yaml:"withParam,omitempty" json:"withParam,omitempty"`
	WithSequence *Sequence  `yaml:"withSequence,omitempty" json:"withSequence,omitempty"`
}

type Sequence struct {
	Count string `yaml:"count" json:"count"`
}

type IOSpec struct {
	Parameters []Parameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Artifacts  []Artifact  `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
}

type InitContainer struct {
	Name               string   `yaml:"name" json:"name"`
	Image              string   `yaml:"image" json:"image"`
	Command            []string `yaml:"command,flow" json:"command"`
	MirrorVolumeMounts bool     `yaml:"mirrorVolumeMounts" json:"mirrorVolumeMounts"`
}

type ScriptSpec struct {
	Image        string        `yaml:"image" json:"image"`
	Command      []string      `yaml:"command,flow" json:"command"`
	Source       string        `yaml:"source" json:"source"`
	Resources    Resources     `yaml:"resources" json:"resources"`
	VolumeMounts []VolumeMount `yaml:"volumeMounts" json:"volumeMounts"`
}

type Resources struct {
	Requests ResourceList `yaml:"requests" json:"requests"`
	Limits   ResourceList `yaml:"limits" json:"limits"`
}

type ResourceList struct {
	Memory string `yaml:"memory" json:"memory"`
	CPU    string `yaml:"cpu" json:"cpu"`
}

type VolumeMount struct {
	Name      string `yaml:"name" json:"name"`
	MountPath string `yaml:"mountPath" json:"mountPath"`
}

// BuildDocument assembles the workflow manifest from a staged graph. stem
// names the workflow after the script file.
func BuildDocument(s *parser.Script, decls *Declarations, g *Graph, stem string) (*Document, error) {
	doc := &Document{
		APIVersion: constants.WorkflowAPIVersion,
		Kind:       constants.WorkflowKind,
		Metadata: Metadata{
			GenerateName: constants.GenerateNamePrefix + Hyphenate(stem) + "-",
		},
		Spec: Spec{
			Entrypoint: Hyphenate(g.EntryName),
			Volumes:    []Volume{{Name: constants.WorkdirVolumeName}},
		},
	}

	if len(decls.Params) > 0 {
		args := &Arguments{}
		for _, p := range decls.Params {
			args.Parameters = append(args.Parameters, Parameter{Name: p.Name})
		}
		doc.Spec.Arguments = args
	}

	entry := Template{Name: Hyphenate(g.EntryName)}
	for _, stage := range g.Stages {
		var group []StepInvocation
		for _, step := range stage {
			group = append(group, invocationOf(step))
		}
		entry.Steps = append(entry.Steps, group)
	}
	doc.Spec.Templates = append(doc.Spec.Templates, entry)

	seen := map[*StepFunc]bool{}
	for _, step := range g.Steps {
		if step.Synthesized {
			doc.Spec.Templates = append(doc.Spec.Templates, splitTemplateOf(step))
			continue
		}
		if seen[step.Fn] {
			continue
		}
		seen[step.Fn] = true
		tmpl, err := execTemplateOf(s, step)
		if err != nil {
			return nil, err
		}
		doc.Spec.Templates = append(doc.Spec.Templates, tmpl)
	}

	emitLog.Printf("document built: %d templates", len(doc.Spec.Templates))
	return doc, nil
}

func invocationOf(step *Step) StepInvocation {
	inv := StepInvocation{
		Name: step.Name,
		When: step.Guard,
	}
	if step.Synthesized {
		inv.Template = step.Name
		inv.Arguments = &Arguments{Artifacts: []Artifact{artifactArg(step.SplitInput)}}
	} else {
		inv.Template = step.Fn.TemplateName()
		args := &Arguments{}
		for _, p := range step.InputParams {
			args.Parameters = append(args.Parameters, Parameter{Name: p.Slot, Value: p.Value.Text})
		}
		for _, a := range step.InputArtifacts {
			args.Artifacts = append(args.Artifacts, artifactArg(a))
		}
		if len(args.Parameters) > 0 || len(args.Artifacts) > 0 {
			inv.Arguments = args
		}
	}
	if step.Iteration != nil {
		if step.Iteration.WithParam != "" {
			inv.WithParam = step.Iteration.WithParam
		} else {
			inv.WithSequence = &Sequence{Count: step.Iteration.SequenceCount}
		}
	}
	return inv
}

// artifactArg renders an input artifact binding at the invocation level:
// mount-point inputs carry their object-store locator per call, produced
// artifacts are wired through from-references.
func artifactArg(a ArtifactBinding) Artifact {
	if a.Source == ArtifactFromStep {
		return Artifact{
			Name: a.Slot,
			From: fmt.Sprintf("{{steps.%s.outputs.artifacts.%s}}", a.Producer.Name, a.ProducerSlot),
		}
	}
	return Artifact{
		Name: a.Slot,
		S3: &S3Artifact{
			Endpoint: constants.S3Endpoint,
			Bucket:   a.Bucket,
			Key:      a.Key,
		},
	}
}

// execTemplateOf renders the shared template of a step function, using one
// representative invocation for slot order and output bindings. The graph
// builder has already rejected calls that disagree on template shape.
func execTemplateOf(s *parser.Script, step *Step) (Template, error) {
	fn := step.Fn
	source, err := EmbedStep(s, fn)
	if err != nil {
		return Template{}, err
	}

	tmpl := Template{Name: fn.TemplateName()}

	in := &IOSpec{}
	for _, p := range step.InputParams {
		in.Parameters = append(in.Parameters, Parameter{Name: p.Slot})
	}
	for _, a := range step.InputArtifacts {
		in.Artifacts = append(in.Artifacts, Artifact{
			Name: a.Slot,
			Path: constants.WorkdirInputDir + "/" + a.Slot,
		})
	}
	if len(in.Parameters) > 0 || len(in.Artifacts) > 0 {
		tmpl.Inputs = in
	}

	out := &IOSpec{}
	for _, slot := range step.OutputParams {
		out.Parameters = append(out.Parameters, Parameter{
			Name:      slot,
			ValueFrom: &ValueFrom{Path: constants.WorkdirOutputDir + "/" + slot},
		})
	}
	for _, a := range step.OutputArtifacts {
		art := Artifact{
			Name: a.Slot,
			Path: constants.WorkdirOutputDir + "/" + a.Slot,
		}
		if a.Source == ArtifactFromMount {
			art.S3 = &S3Artifact{
				Endpoint: constants.S3Endpoint,
				Bucket:   a.Bucket,
				Key:      a.Key,
			}
		}
		out.Artifacts = append(out.Artifacts, art)
	}
	if len(out.Parameters) > 0 || len(out.Artifacts) > 0 {
		tmpl.Outputs = out
	}

	tmpl.InitContainers = initContainers()
	tmpl.Script = scriptSpec(fn.Image, source)
	return tmpl, nil
}

func splitTemplateOf(step *Step) Template {
	return Template{
		Name: step.Name,
		Inputs: &IOSpec{
			Artifacts: []Artifact{{
				Name: step.SplitInput.Slot,
				Path: constants.WorkdirInputDir + "/" + step.SplitInput.Slot,
			}},
		},
		Outputs: &IOSpec{
			Parameters: []Parameter{
				{Name: "count", ValueFrom: &ValueFrom{Path: constants.WorkdirOutputDir + "/count"}},
				{Name: "rows", ValueFrom: &ValueFrom{Path: constants.WorkdirOutputDir + "/rows"}},
			},
		},
		InitContainers: initContainers(),
		Script:         scriptSpec(constants.SplitImage, step.SplitSource),
	}
}

func initContainers() []InitContainer {
	return []InitContainer{{
		Name:  "init-workdir",
		Image: constants.InitImage,
		Command: []string{
			"sh", "-c",
			fmt.Sprintf("mkdir -p %s %s && chmod -R 777 %s",
				constants.WorkdirInputDir, constants.WorkdirOutputDir, constants.WorkdirMountPath),
		},
		MirrorVolumeMounts: true,
	}}
}

func scriptSpec(image, source string) *ScriptSpec {
	resources := ResourceList{Memory: constants.DefaultMemory, CPU: constants.DefaultCPU}
	return &ScriptSpec{
		Image:     image,
		Command:   []string{constants.ScriptCommand, constants.ScriptSubcommand},
		Source:    source,
		Resources: Resources{Requests: resources, Limits: resources},
		VolumeMounts: []VolumeMount{{
			Name:      constants.WorkdirVolumeName,
			MountPath: constants.WorkdirMountPath,
		}},
	}
}

// MarshalDocument renders the manifest with the generated-file banner.
// Multiline strings, the embedded scripts above all, use literal block
// style so the YAML stays reviewable.
func MarshalDocument(doc *Document) ([]byte, error) {
	body, err := yaml.MarshalWithOptions(doc, yaml.UseLiteralStyleIfMultiline(true), yaml.Indent(2))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow document: %w", err)
	}
	out := make([]byte, 0, len(constants.GeneratedHeader)+len(body))
	out = append(out, constants.GeneratedHeader...)
	out = append(out, body...)
	return out, nil
}

// MarshalParams renders the workflow parameter defaults as a standalone
// values file, in declaration order.
func MarshalParams(decls *Declarations) ([]byte, error) {
	if len(decls.Params) == 0 {
		return nil, nil
	}
	items := make(yaml.MapSlice, 0, len(decls.Params))
	for _, p := range decls.Params {
		items = append(items, yaml.MapItem{Key: p.Name, Value: p.Default})
	}
	body, err := yaml.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameter defaults: %w", err)
	}
	return body, nil
}

// Stem strips the extension from a script file name for workflow naming.
func Stem(filename string) string {
	base := filename
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
