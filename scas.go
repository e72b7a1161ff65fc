package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aviallon/scas/pkg/linker"
	"github.com/aviallon/scas/pkg/log"
	"github.com/aviallon/scas/pkg/objects"
)

var (
	flagOutput       string
	flagOrigin       uint64
	flagRelocate     bool
	flagRemoveUnused bool
	flagVerbose      int
)

var rootCmd = &cobra.Command{
	Use:   "scas object...",
	Short: "Link assembled object files into one binary image",
	Long: `scas links one or more assembled object units into a single
contiguous binary image: regions are placed back to back in input
order, symbols are resolved across units, and every deferred operand
expression is patched into the output bytes.

Diagnostics (duplicate symbols, unresolved names, truncated values)
are collected across the whole run and reported together; the image
is written regardless, and the exit status tells you whether the
result is trustworthy.`,

	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.SetVerbosity(log.Error + log.Level(flagVerbose))

		ctx := linker.NewContext(linker.LinkSettings{
			AutomaticRelocation: flagRelocate,
			Origin:              flagOrigin,
			RemoveUnused:        flagRemoveUnused,
		})

		for _, path := range args {
			obj, err := objects.ReadFile(path)
			if err != nil {
				return err
			}
			ctx.Objects = append(ctx.Objects, obj)
		}

		out, err := os.Create(flagOutput)
		if err != nil {
			return err
		}
		defer out.Close()

		if err := ctx.Link(out); err != nil {
			return err
		}

		if flagVerbose >= int(log.Debug-log.Error) {
			ctx.DumpLayout()
		}

		for _, diag := range ctx.Errors {
			fmt.Fprintln(os.Stderr, diag)
		}
		if len(ctx.Errors) > 0 {
			return fmt.Errorf("linking completed with %d error(s)", len(ctx.Errors))
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", "a.bin", "output image path")
	rootCmd.Flags().Uint64Var(&flagOrigin, "origin", 0, "offset added to all symbol values")
	rootCmd.Flags().BoolVar(&flagRelocate, "relocate", false, "emit a runtime relocation table")
	rootCmd.Flags().BoolVar(&flagRemoveUnused, "remove-unused", false, "drop regions nothing references")
	rootCmd.Flags().CountVarP(&flagVerbose, "verbose", "v", "increase verbosity (repeatable)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
