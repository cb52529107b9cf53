// Package cli implements the argot command surface. Commands are thin
// cobra wrappers; the compilation work lives in pkg/workflow.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/argot-dev/argot/pkg/console"
	"github.com/argot-dev/argot/pkg/logger"
	"github.com/argot-dev/argot/pkg/workflow"
	"github.com/spf13/cobra"
)

var compileCmdLog = logger.New("cli:compile")

// CompileOptions carries the flag values of the compile command.
type CompileOptions struct {
	// Output overrides the manifest path. Only valid for a single script.
	Output string
	// ParamsFile, when set, also writes the workflow parameter defaults
	// file to this path.
	ParamsFile string
	// NoValidate skips the post-emission schema self-check.
	NoValidate bool
	// Watch keeps the process alive and recompiles on script changes.
	Watch bool
	// Verbose echoes per-file progress to stderr.
	Verbose bool
}

// NewCompileCommand creates the compile command
func NewCompileCommand() *cobra.Command {
	opts := &CompileOptions{}

	cmd := &cobra.Command{
		Use:   "compile [script|directory]...",
		Short: "Compile argot scripts into workflow manifests",
		Long: `Compile argot scripts into orchestrator workflow manifests.

Each script compiles to a YAML manifest next to the script, named after it
(experiment.go becomes experiment.yaml). Passing a directory compiles every
top-level .go script in it. Compilation is all-or-nothing per script: on any
validation error no output file is written.

Examples:
  argot compile experiment.go                 # Compile one script
  argot compile experiment.go -o wf.yaml      # Choose the manifest path
  argot compile experiment.go --params-file params.yaml
  argot compile pipelines/                    # Compile a whole directory
  argot compile experiment.go --watch         # Recompile on change`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return RunCompile(args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the manifest to this path (single script only)")
	cmd.Flags().StringVar(&opts.ParamsFile, "params-file", "", "Also write the workflow parameter defaults to this path")
	cmd.Flags().BoolVar(&opts.NoValidate, "no-validate", false, "Skip schema validation of the emitted manifest")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Watch scripts and recompile on change")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show per-file progress")

	return cmd
}

// RunCompile compiles the given scripts and directories.
func RunCompile(args []string, opts *CompileOptions) error {
	scripts, err := resolveScripts(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		return err
	}
	compileCmdLog.Printf("resolved %d scripts from %d args", len(scripts), len(args))

	if opts.Output != "" && len(scripts) != 1 {
		err := fmt.Errorf("--output requires exactly one script, got %d", len(scripts))
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		return err
	}

	if opts.Watch {
		return watchAndCompile(scripts, opts)
	}
	if len(scripts) == 1 {
		_, err := compileOne(scripts[0], opts)
		return err
	}
	return runCompileBatch(scripts, opts)
}

// resolveScripts expands directory arguments into their top-level .go
// scripts and checks that file arguments exist.
func resolveScripts(args []string) ([]string, error) {
	var scripts []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		if !info.IsDir() {
			scripts = append(scripts, arg)
			continue
		}
		found, err := collectScripts(arg)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no scripts found in %s", arg)
		}
		scripts = append(scripts, found...)
	}
	return scripts, nil
}

// collectScripts lists the compilable scripts directly under dir. Test
// files and underscore-prefixed files are skipped, matching the Go
// toolchain's own conventions.
func collectScripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", dir, err)
	}
	var scripts []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if strings.HasSuffix(name, "_test.go") || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}
		scripts = append(scripts, filepath.Join(dir, name))
	}
	return scripts, nil
}

// compileOne compiles a single script and writes its outputs. Diagnostics
// go to stderr; the returned error carries the same message for the exit
// status.
func compileOne(script string, opts *CompileOptions) (*workflow.Result, error) {
	compiler := workflow.NewCompiler(workflow.WithSchemaValidation(!opts.NoValidate))

	if opts.Verbose {
		fmt.Fprintln(os.Stderr, console.FormatVerboseMessage("compiling "+console.ToRelativePath(script)))
	}

	result, err := compiler.CompileFile(script)
	if err != nil {
		printCompileError(os.Stderr, err, opts.Verbose)
		return nil, err
	}

	outPath := manifestPath(script, opts.Output)
	if err := writeFileAtomic(outPath, result.YAML); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		return nil, err
	}

	if opts.ParamsFile != "" {
		if result.ParamsYAML == nil {
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage(
				fmt.Sprintf("%s declares no workflow parameters, skipping %s", console.ToRelativePath(script), opts.ParamsFile)))
		} else if err := writeFileAtomic(opts.ParamsFile, result.ParamsYAML); err != nil {
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
			return nil, err
		}
	}

	fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf("%s -> %s (%d steps, %d stages)",
		console.ToRelativePath(script), console.ToRelativePath(outPath), result.Steps, result.Stages)))
	return result, nil
}

// manifestPath returns the output path for a script's manifest: the
// explicit override when given, otherwise the script path with its
// extension swapped for .yaml.
func manifestPath(script, override string) string {
	if override != "" {
		return override
	}
	return strings.TrimSuffix(script, filepath.Ext(script)) + ".yaml"
}

// printCompileError renders a compilation failure: one kind-message-location
// diagnostic line, plus the source context block in verbose mode. The line
// goes out unstyled so callers can match on it.
func printCompileError(w io.Writer, err error, verbose bool) {
	ce, ok := workflow.AsCompileError(err)
	if !ok {
		fmt.Fprintln(w, console.FormatErrorMessage(err.Error()))
		return
	}
	fmt.Fprintln(w, ce.Error())
	if verbose && len(ce.Context) > 0 {
		fmt.Fprint(w, ce.Format())
	}
}
