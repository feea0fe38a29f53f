package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/synthctl/internal/journal"
)

// JournalOptions holds flags shared by the journal subcommands.
type JournalOptions struct {
	*RootOptions
	Database string
	Session  string
	Out      string
}

// SessionView is one journaled session as reported by the CLI.
type SessionView struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Packets   int       `json:"packets"`
	Bytes     int64     `json:"bytes"`
	LastTime  float64   `json:"last_time"`
}

// ExportResult is what journal export reports.
type ExportResult struct {
	Session string `json:"session"`
	Packets int    `json:"packets"`
	Out     string `json:"out"`
}

// NewJournalCommand creates the journal command group.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect and export recorded sessions",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the journal database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newJournalListCommand(opts))
	cmd.AddCommand(newJournalShowCommand(opts))
	cmd.AddCommand(newJournalExportCommand(opts))
	return cmd
}

func newJournalListCommand(opts *JournalOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List recorded sessions, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalList(opts, cmd)
		},
	}
}

func newJournalShowCommand(opts *JournalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "show",
		Short:         "Print the decoded packets of a session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalShow(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newJournalExportCommand(opts *JournalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a session as a command file for offline rendering",
		Long: `Write every packet of a session, in send order, as a command file:
each packet preceded by its size as a big-endian int32.

Use --out - to write the command file to stdout (text format only).

Examples:
  synthctl journal export --db demo.db --session <id> --out session.cmd
  synthctl journal export --db demo.db --session <id> --out - | synthctl decode --file /dev/stdin`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalExport(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (required)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output path, - for stdout (required)")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func openJournal(f *OutputFormatter, path string) (*journal.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fail(f, ExitCommandError, CodeJournal, "journal not found", err)
	}
	st, err := journal.Open(path)
	if err != nil {
		return nil, fail(f, ExitCommandError, CodeJournal, "failed to open journal", err)
	}
	return st, nil
}

func runJournalList(opts *JournalOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	f := opts.formatter(cmd)

	st, err := openJournal(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	sums, err := st.Sessions(ctx)
	if err != nil {
		return fail(f, ExitCommandError, CodeJournal, "failed to list sessions", err)
	}
	views := make([]SessionView, 0, len(sums))
	for _, s := range sums {
		views = append(views, SessionView{
			ID:        s.ID,
			StartedAt: s.StartedAt,
			Packets:   s.Packets,
			Bytes:     s.Bytes,
			LastTime:  float64(s.LastTime),
		})
	}

	if len(views) == 0 {
		return f.Success(views, "No sessions recorded.\n")
	}
	var text strings.Builder
	writeSessionTable(&text, views)
	return f.Success(views, text.String())
}

func writeSessionTable(w io.Writer, views []SessionView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTARTED\tPACKETS\tBYTES\tLAST")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%g\n", v.ID, v.StartedAt.Format(time.RFC3339), v.Packets, v.Bytes, v.LastTime)
	}
	tw.Flush()
}

func runJournalShow(opts *JournalOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	f := opts.formatter(cmd)

	st, err := openJournal(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := sessionEntries(ctx, f, st, opts.Session)
	if err != nil {
		return err
	}
	packets := make([][]byte, len(entries))
	times := make([]float64, len(entries))
	for i, e := range entries {
		packets[i] = e.Packet
		times[i] = float64(e.Time)
	}
	views, err := viewPackets(packets, times)
	if err != nil {
		return fail(f, ExitFailure, CodeDecode, "malformed packet in journal", err)
	}

	var text strings.Builder
	writePackets(&text, views)
	return f.Success(DecodeResult{Packets: views}, text.String())
}

func runJournalExport(opts *JournalOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	f := opts.formatter(cmd)

	if opts.Out == "-" && opts.Format == "json" {
		return fail(f, ExitCommandError, CodeJournal, "--out - cannot be combined with --format json", nil)
	}

	st, err := openJournal(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := sessionEntries(ctx, f, st, opts.Session)
	if err != nil {
		return err
	}

	if opts.Out == "-" {
		if err := journal.WriteCommandFile(cmd.OutOrStdout(), entries); err != nil {
			return fail(f, ExitCommandError, CodeJournal, "failed to write command file", err)
		}
		return nil
	}

	out, err := os.Create(opts.Out)
	if err != nil {
		return fail(f, ExitCommandError, CodeJournal, "failed to create output", err)
	}
	if err := journal.WriteCommandFile(out, entries); err != nil {
		out.Close()
		return fail(f, ExitCommandError, CodeJournal, "failed to write command file", err)
	}
	if err := out.Close(); err != nil {
		return fail(f, ExitCommandError, CodeJournal, "failed to write command file", err)
	}

	result := ExportResult{Session: opts.Session, Packets: len(entries), Out: opts.Out}
	return f.Success(result, fmt.Sprintf("exported %d packets of session %s to %s\n", result.Packets, result.Session, result.Out))
}

func sessionEntries(ctx context.Context, f *OutputFormatter, st *journal.Store, id string) ([]journal.Entry, error) {
	if _, err := st.Session(ctx, id); err != nil {
		if errors.Is(err, journal.ErrSessionNotFound) {
			return nil, fail(f, ExitCommandError, CodeJournal, fmt.Sprintf("session %q not found", id), err)
		}
		return nil, fail(f, ExitCommandError, CodeJournal, "failed to read session", err)
	}
	entries, err := st.Entries(ctx, id)
	if err != nil {
		return nil, fail(f, ExitCommandError, CodeJournal, "failed to read packets", err)
	}
	return entries, nil
}
