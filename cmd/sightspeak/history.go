package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sightspeak/internal/common/fsutil"
	"sightspeak/internal/registry"
	"sightspeak/internal/transcript"
	"sightspeak/pkg/types"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show recent exchanges from the transcript store",
		Example: "  sightspeak history -n 5\n  sightspeak history --json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.TranscriptDB == "" {
				return errors.New("transcript_db is not configured")
			}
			if p, err := fsutil.ExpandHome(c.cfg.TranscriptDB); err != nil || !fsutil.PathExists(p) {
				return fmt.Errorf("no transcript at %s", c.cfg.TranscriptDB)
			}
			store, err := transcript.Open(c.cfg.TranscriptDB, c.log)
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSONLines(cmd.OutOrStdout(), entries)
			}
			return writeHistory(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries, newest first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per line")
	return cmd
}

func newModelsCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models found in models_dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := registry.LoadDir(c.cfg.ModelsDir)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSONLines(cmd.OutOrStdout(), models)
			}
			return writeModels(cmd.OutOrStdout(), models)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per line")
	return cmd
}

func writeHistory(w io.Writer, entries []types.TranscriptEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tOUTCOME\tKIND\tQUERY\tANSWER")
	for _, e := range entries {
		answer := e.Answer
		if e.Outcome != "done" {
			answer = e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			time.Unix(e.CreatedUnix, 0).Format(time.DateTime), e.Outcome, e.Kind, clip(e.Query, 40), clip(answer, 60))
	}
	return tw.Flush()
}

func writeModels(w io.Writer, models []types.Model) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFORMAT\tQUANT\tSIZE")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d MiB\n", m.ID, m.Format, m.Quant, m.SizeBytes>>20)
	}
	return tw.Flush()
}

func writeJSONLines[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
