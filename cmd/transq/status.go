package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bnema/transq/internal/domain"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the saved queue state without contacting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store, err := openSnapshotStore(cfg)
			if err != nil {
				return fmt.Errorf("open state store: %w", err)
			}
			defer func() { _ = store.Close() }()

			snap, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("read state: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			renderStatus(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw snapshot as JSON")
	return cmd
}

func renderStatus(w io.Writer, snap *domain.Snapshot) {
	if snap == nil {
		_, _ = fmt.Fprintln(w, "No saved state yet.")
		return
	}

	_, _ = fmt.Fprintf(w, "Status:    %s\n", snap.Message)
	if !snap.SavedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "Saved:     %s (%s)\n", snap.SavedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(snap.SavedAt))
	}

	jobs := snap.Resumable()
	if len(jobs) == 0 {
		_, _ = fmt.Fprintln(w, "Queue:     empty")
	} else {
		rows := make([][]string, 0, len(jobs))
		for i, job := range jobs {
			state := "queued"
			if i == 0 && snap.Processing && snap.CurrentJob != nil {
				state = "running"
			}
			enqueued := ""
			if !job.EnqueuedAt.IsZero() {
				enqueued = humanize.Time(job.EnqueuedAt)
			}
			rows = append(rows, []string{strconv.Itoa(i + 1), job.OriginalName, state, job.StoredName, job.AdditionalArgs, enqueued})
		}
		_, _ = fmt.Fprintln(w, renderTable([]string{"#", "File", "State", "Stored as", "Args", "Enqueued"}, rows, 1))
	}

	_, _ = fmt.Fprintf(w, "Pending:   %s\n", listOrDash(snap.Pending))
	_, _ = fmt.Fprintf(w, "Completed: %s\n", listOrDash(snap.Completed))
}

func listOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
