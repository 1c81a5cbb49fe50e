package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dyad",
	Short: "Dyad - transparent producer-consumer file sharing for distributed workflows",
	Long: `Dyad coordinates file hand-off between the tasks of a distributed
workflow. Producer ranks advertise files they close under a managed
directory in a shared key-value store; consumer ranks that open the same
user path block until the owner is known and fetch the bytes directly
from the owner.

The dyad CLI runs the producer-side fetch daemon and provides inspection
tooling for keys and ownership records.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
