package commands

import (
	"github.com/spf13/cobra"

	"github.com/dyad-io/dyad/internal/config"
	"github.com/dyad-io/dyad/internal/printer"
	"github.com/dyad-io/dyad/pkg/keygen"
)

var (
	keyDepth uint32
	keyBins  uint32
)

var keyCmd = &cobra.Command{
	Use:   "key <user-path>",
	Short: "Print the KVS topic key for a user path",
	Long: `Key computes the topic key a user path maps to, with the same depth
and bin parameters the hooks use. Useful for checking what a producer
will publish and what a consumer will wait on.

Depth and bins default to the DYAD_KEY_DEPTH / DYAD_KEY_BINS environment
variables, falling back to 3 and 1024.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		depth := keyDepth
		bins := keyBins
		if !cmd.Flags().Changed("depth") || !cmd.Flags().Changed("bins") {
			cfg := config.FromEnv()
			if !cmd.Flags().Changed("depth") {
				depth = cfg.KeyDepth
			}
			if !cmd.Flags().Changed("bins") {
				bins = cfg.KeyBins
			}
		}

		key, err := keygen.PathKey(args[0], depth, bins)
		if err != nil {
			return printer.Error("Cannot compute key", err.Error(), nil)
		}
		printer.Println(key)
		return nil
	},
}

func init() {
	keyCmd.Flags().Uint32Var(&keyDepth, "depth", keygen.DefaultDepth, "key tree depth")
	keyCmd.Flags().Uint32Var(&keyBins, "bins", keygen.DefaultBins, "per-level fan-out")
	rootCmd.AddCommand(keyCmd)
}
