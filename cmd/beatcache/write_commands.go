package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"beatcache/internal/beatmap"
	"beatcache/internal/library"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Record fetch results from a JSON file",
		Long: `Record fetch results from a JSON file.

The file holds an array of {"key": "hash:<hash>"|"key:<key>", "metadata": {...}}
objects. Entries with metadata are stored as beatmaps; entries without are
cached as failed lookups.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := library.ReadImportFile(args[0])
			if err != nil {
				return err
			}
			var valid int
			for _, entry := range entries {
				if entry.Record.Resolution().Valid {
					valid++
				}
			}
			return ctx.withLibrary(cmd, func(lib *library.Library) error {
				if err := lib.Record(commandCtx(cmd), entries); err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]int{"valid": valid, "invalid": len(entries) - valid})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries (%d beatmaps, %d failed lookups)\n",
					len(entries), valid, len(entries)-valid)
				return nil
			})
		},
	}
}

func newFailCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fail <hash:..|key:..>...",
		Short: "Cache failed lookups so they are not fetched again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args)
			if err != nil {
				return err
			}
			return ctx.withLibrary(cmd, func(lib *library.Library) error {
				out := cmd.OutOrStdout()
				for _, key := range keys {
					recorded, err := lib.MarkFailed(commandCtx(cmd), key)
					if err != nil {
						return err
					}
					if !ctx.JSONMode() {
						if recorded {
							fmt.Fprintf(out, "%s: marked failed\n", key)
						} else {
							fmt.Fprintf(out, "%s: already resolves to a beatmap, skipped\n", key)
						}
					}
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, encodeKeys(keys))
				}
				return nil
			})
		},
	}
}

func newInvalidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <hash:..|key:..>...",
		Short: "Forget cached failed lookups so they are fetched again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args)
			if err != nil {
				return err
			}
			return ctx.withLibrary(cmd, func(lib *library.Library) error {
				if err := lib.Invalidate(commandCtx(cmd), keys...); err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, encodeKeys(keys))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %d keys\n", len(keys))
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cache and erase the journal when enabled; snapshot files are left alone",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd, func(lib *library.Library) error {
				if err := lib.Reset(commandCtx(cmd)); err != nil {
					return err
				}
				journaled := lib.JournalEnabled()
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]bool{"cleared": true, "journal": journaled})
				}
				if journaled {
					fmt.Fprintln(cmd.OutOrStdout(), "Cache and journal cleared")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared (journal disabled)")
				}
				return nil
			})
		},
	}
}

func encodeKeys(keys []beatmap.Key) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.Encode())
	}
	return out
}
