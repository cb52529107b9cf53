// Command argot compiles restricted Go scripts into orchestrator workflow
// manifests.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/argot-dev/argot/pkg/cli"
	"github.com/spf13/cobra"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "argot",
	Short: "Compile restricted Go scripts into workflow manifests",
	Long: `argot turns scripts written in a restricted Go dialect into
orchestrator workflow manifests.

Scripts declare mount points and parameters at the top level, mark step
functions with //argot:step directives, and wire them together in a single
//argot:entry function. The compiler validates the whole script and emits a
reproducible YAML document, or no document at all.`,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the argot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(buildVersion())
	},
}

// buildVersion prefers the ldflags-stamped version and falls back to the
// module version recorded by the Go toolchain.
func buildVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

func main() {
	rootCmd.Version = buildVersion()
	rootCmd.AddCommand(cli.NewCompileCommand())
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
