// Package constants centralizes values shared between the compiler, the
// emitted workflow documents, and the dialect runtime.
package constants

const (
	// WorkflowAPIVersion is the API version of the emitted workflow manifest.
	WorkflowAPIVersion = "argoproj.io/v1alpha1"

	// WorkflowKind is the kind of the emitted workflow manifest.
	WorkflowKind = "Workflow"

	// GenerateNamePrefix prefixes the generateName of every emitted workflow.
	GenerateNamePrefix = "argot-"

	// WorkdirVolumeName is the shared scratch volume mounted into every step.
	WorkdirVolumeName = "workdir"

	// WorkdirMountPath is where the scratch volume is mounted in step
	// containers.
	WorkdirMountPath = "/workdir"

	// WorkdirInputDir is the directory where input artifacts are placed.
	WorkdirInputDir = "/workdir/in"

	// WorkdirOutputDir is the directory where steps write outputs. Output
	// parameter slots are read back from files under this directory.
	WorkdirOutputDir = "/workdir/out"

	// StepTemplatePrefix prefixes the template name derived from each step
	// function.
	StepTemplatePrefix = "exec-"

	// SplitStepPrefix prefixes synthesized iteration split steps.
	SplitStepPrefix = "split-"

	// InitImage is the image used by the mkdir/chmod init containers.
	InitImage = "alpine:latest"

	// SplitImage runs synthesized split steps; it must carry a Go toolchain
	// because split scripts are embedded Go programs.
	SplitImage = "golang:1.24-alpine"

	// ScriptCommand is how the orchestrator invokes the embedded script
	// source. The source is materialized to a file and appended as the last
	// argument.
	ScriptCommand = "go"

	// ScriptSubcommand is the subcommand passed before the script path.
	ScriptSubcommand = "run"

	// DefaultMemory is the default memory request and limit for step
	// containers.
	DefaultMemory = "30Mi"

	// DefaultCPU is the default CPU request and limit for step containers.
	DefaultCPU = "20m"

	// S3Endpoint is the object storage endpoint recorded on mount-point
	// derived artifacts.
	S3Endpoint = "s3.amazonaws.com"

	// GeneratedHeader is the comment banner prepended to emitted documents.
	// It must stay constant: emission is required to be byte-reproducible.
	GeneratedHeader = "# This file was generated by argot. DO NOT EDIT.\n# To update, edit the source script and run: argot compile <script>\n"
)
