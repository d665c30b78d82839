package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/foldersync/internal/journal"
)

const defaultHistoryLimit = 20

var errJournalMissing = errors.New("no pass history recorded yet")

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded mirror passes",
		Long: `List recent passes from the journal, newest first. With --pass, show one
pass and every action it performed, in order. --pass accepts any unique
prefix of a pass ID.`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().String("pass", "", "show the actions of one pass (ID or unique prefix)")
	cmd.Flags().Int("limit", defaultHistoryLimit, "number of passes to list")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	path := cc.Cfg.JournalFile()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w (journal %s)", errJournalMissing, path)
	}

	j, err := journal.Open(ctx, path, cc.Logger)
	if err != nil {
		return err
	}
	defer j.Close()

	out := cmd.OutOrStdout()

	if passID, _ := cmd.Flags().GetString("pass"); passID != "" {
		p, err := j.FindPass(ctx, passID)
		if err != nil {
			return err
		}

		actions, err := j.PassActions(ctx, p.ID)
		if err != nil {
			return err
		}

		if cc.JSON {
			return writeJSON(out, passDetail{Pass: p, Actions: actions})
		}

		printPassDetail(out, p, actions)

		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	passes, err := j.RecentPasses(ctx, limit)
	if err != nil {
		return err
	}

	if cc.JSON {
		if passes == nil {
			passes = []journal.Pass{}
		}

		return writeJSON(out, passes)
	}

	if len(passes) == 0 {
		fmt.Fprintln(out, "No passes recorded.")
		return nil
	}

	printPassTable(out, passes)

	return nil
}

type passDetail struct {
	journal.Pass
	Actions []journal.ActionRow `json:"actions"`
}

func printPassTable(w io.Writer, passes []journal.Pass) {
	headers := []string{"PASS", "STARTED", "DURATION", "STATUS", "CREATED", "COPIED", "REMOVED", "SKIPPED", "ERRORS", "BYTES"}
	rows := make([][]string, len(passes))

	for i := range passes {
		p := &passes[i]
		rows[i] = []string{
			shortID(p.ID),
			formatTime(p.Started),
			formatDuration(p.Duration()),
			p.Status,
			strconv.Itoa(p.Created),
			strconv.Itoa(p.Copied),
			strconv.Itoa(p.Removed),
			strconv.Itoa(p.Skipped),
			strconv.Itoa(p.Errors),
			formatSize(p.BytesCopied),
		}
	}

	printTable(w, headers, rows)
}

func printPassDetail(w io.Writer, p journal.Pass, actions []journal.ActionRow) {
	fmt.Fprintf(w, "Pass:     %s\n", p.ID)
	fmt.Fprintf(w, "Source:   %s\n", p.Source)
	fmt.Fprintf(w, "Replica:  %s\n", p.Replica)
	fmt.Fprintf(w, "Started:  %s\n", formatTime(p.Started))
	fmt.Fprintf(w, "Duration: %s\n", formatDuration(p.Duration()))
	fmt.Fprintf(w, "Status:   %s\n", p.Status)

	if p.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", p.Error)
	}

	fmt.Fprintf(w, "Errors:   %d\n\n", p.Errors)

	if len(actions) == 0 {
		fmt.Fprintln(w, "No actions.")
		return
	}

	rows := make([][]string, len(actions))

	for i := range actions {
		a := &actions[i]

		size := ""
		if a.Size > 0 {
			size = formatSize(a.Size)
		}

		rows[i] = []string{formatTime(a.At), a.Kind.String(), size, a.Path}
	}

	printTable(w, []string{"TIME", "ACTION", "SIZE", "PATH"}, rows)
}
