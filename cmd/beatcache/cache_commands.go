package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"beatcache/internal/beatmap"
	"beatcache/internal/library"
)

func newLoadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load snapshot files and report what was applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd, func(lib *library.Library) error {
				stats, err := lib.Stats(commandCtx(cmd))
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, stats.Snapshot)
				}
				out := cmd.OutOrStdout()
				if stats.Snapshot.Files == 0 {
					fmt.Fprintln(out, "No snapshot files found")
					return nil
				}
				fmt.Fprintf(out, "Loaded %d records from %d snapshot files in %s\n",
					stats.Snapshot.Records, stats.Snapshot.Files, stats.Snapshot.Duration.Round(time.Millisecond))
				fmt.Fprintf(out, "Cache holds %d beatmaps\n", stats.Cache.Valid)
				return nil
			})
		},
	}
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache and journal sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd, func(lib *library.Library) error {
				stats, err := lib.Stats(commandCtx(cmd))
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, stats)
				}

				rows := [][]string{
					{"Valid records", strconv.Itoa(stats.Cache.Valid)},
					{"Failed lookups", strconv.Itoa(stats.Cache.Invalid)},
					{"Indexed keys", strconv.Itoa(stats.Cache.Indexed)},
					{"Snapshot files", strconv.Itoa(stats.Snapshot.Files)},
					{"Snapshot records", strconv.Itoa(stats.Snapshot.Records)},
					{"Journal enabled", yesNo(stats.Journal != nil)},
				}
				if stats.Journal != nil {
					rows = append(rows,
						[]string{"Journal records", strconv.Itoa(stats.Journal.Valid)},
						[]string{"Journal failures", strconv.Itoa(stats.Journal.Invalid)},
						[]string{"Replayed entries", strconv.Itoa(stats.Replayed)},
					)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out, []string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

type lookupResult struct {
	Key    string            `json:"key"`
	Found  bool              `json:"found"`
	Valid  bool              `json:"valid"`
	Record *beatmap.Metadata `json:"record,omitempty"`
}

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var byKey bool

	cmd := &cobra.Command{
		Use:   "lookup <hash>",
		Short: "Look up a beatmap by hash, or by catalog key with --key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := beatmap.HashKey(args[0])
			if byKey {
				key = beatmap.ExternalKey(args[0])
			}
			if key.Value == "" {
				return errors.New("lookup value must not be empty")
			}

			return ctx.withLibrary(cmd, func(lib *library.Library) error {
				rec, found, err := lib.Lookup(key)
				if err != nil {
					return err
				}
				result := lookupResult{Key: key.Encode(), Found: found}
				if found {
					result.Valid = rec.Resolution().Valid
					if valid, ok := beatmap.AsValid(rec); ok {
						meta := valid.Metadata
						result.Record = &meta
					}
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, result)
				}

				out := cmd.OutOrStdout()
				switch {
				case !found:
					fmt.Fprintf(out, "%s: not cached\n", key)
				case result.Record == nil:
					fmt.Fprintf(out, "%s: cached failed lookup\n", key)
				default:
					fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, metadataRows(*result.Record), nil))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&byKey, "key", "k", false, "Treat the argument as a catalog key instead of a hash")
	return cmd
}

func metadataRows(m beatmap.Metadata) [][]string {
	rows := [][]string{
		{"Hash", m.Hash},
		{"Key", m.Key},
		{"Title", m.Title()},
		{"Artist", m.SongAuthorName},
		{"Mapper", m.LevelAuthorName},
		{"Uploader", m.Uploader},
		{"Cover", m.CoverURL},
	}
	if m.BPM > 0 {
		rows = append(rows, []string{"BPM", strconv.FormatFloat(m.BPM, 'f', -1, 64)})
	}
	if m.DurationSeconds > 0 {
		rows = append(rows, []string{"Duration", fmt.Sprintf("%d:%02d", m.DurationSeconds/60, m.DurationSeconds%60)})
	}
	if m.DownloadURL != "" {
		rows = append(rows, []string{"Download", m.DownloadURL})
	}
	if !m.UploadedAt.IsZero() {
		rows = append(rows, []string{"Uploaded", m.UploadedAt.Format("2006-01-02")})
	}
	return rows
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var failed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached beatmaps, or failed lookups with --failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd, func(lib *library.Library) error {
				out := cmd.OutOrStdout()
				if failed {
					records := lib.ListFailed()
					keys := make([]string, 0, len(records))
					for _, rec := range records {
						keys = append(keys, rec.AttemptedSource.Encode())
					}
					if ctx.JSONMode() {
						return writeJSON(cmd, keys)
					}
					if len(keys) == 0 {
						fmt.Fprintln(out, "No failed lookups cached")
						return nil
					}
					rows := make([][]string, 0, len(keys))
					for _, k := range keys {
						rows = append(rows, []string{k})
					}
					fmt.Fprintln(out, renderTable(out, []string{"Failed lookup"}, rows, nil))
					return nil
				}

				records := lib.List()
				metas := make([]beatmap.Metadata, 0, len(records))
				for _, rec := range records {
					metas = append(metas, rec.Metadata)
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, metas)
				}
				if len(metas) == 0 {
					fmt.Fprintln(out, "Beatmap cache: empty")
					return nil
				}
				fmt.Fprintf(out, "Beatmap cache: %d entries\n\n", len(metas))
				fmt.Fprintln(out, renderTable(out, summaryHeaders, summaryRows(metas), nil))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&failed, "failed", false, "List cached failed lookups instead of beatmaps")
	return cmd
}

var summaryHeaders = []string{"Hash", "Key", "Title", "Mapper"}

func summaryRows(metas []beatmap.Metadata) [][]string {
	rows := make([][]string, 0, len(metas))
	for _, m := range metas {
		rows = append(rows, []string{m.Hash, m.Key, truncate(m.Title(), 48), truncate(m.LevelAuthorName, 24)})
	}
	return rows
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Fuzzy search cached beatmaps by title, artist, mapper, or key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return ctx.withLibrary(cmd, func(lib *library.Library) error {
				results := lib.Search(query, limit)
				if ctx.JSONMode() {
					if results == nil {
						results = []library.SearchResult{}
					}
					return writeJSON(cmd, results)
				}
				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintf(out, "No beatmaps match %q\n", query)
					return nil
				}
				metas := make([]beatmap.Metadata, 0, len(results))
				for _, r := range results {
					metas = append(metas, r.Record.Metadata)
				}
				fmt.Fprintln(out, renderTable(out, summaryHeaders, summaryRows(metas), nil))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (default from config)")
	return cmd
}
