// Command mb2dump prints the normalized form of a captured multiboot2
// information block. The block is parsed with the same translation core the
// kernel uses at boot, which makes the tool handy for checking what a given
// bootloader actually hands over.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "mb2dump FILE",
	Short: "Dump a captured multiboot2 info block in normalized form",
	Long: `mb2dump reads a raw multiboot2 information block from FILE, runs it
through the kernel's boot-info translation core and prints the resulting
normalized structure. Diagnostics emitted by the core during the parse are
logged to stderr.

Note that the core rejects EFI memory map tags whose embedded map ends up
above the 4GB boundary; blocks captured from an EFI boot may therefore fail
to parse on the host even though they parsed at boot time.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()
		if !verbose {
			logger = logger.Level(zerolog.WarnLevel)
		}

		blob, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		return dumpInfoBlock(cmd.OutOrStdout(), logger, blob)
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log informational diagnostics as well")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
