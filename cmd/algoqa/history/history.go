// Package historycmder provides the history command for browsing recorded
// answer transcripts.
package historycmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/algoqa/pkg/cliui"
	"github.com/papercomputeco/algoqa/pkg/config"
	"github.com/papercomputeco/algoqa/pkg/logger"
	"github.com/papercomputeco/algoqa/pkg/storage"
	storageutils "github.com/papercomputeco/algoqa/pkg/storage/utils"
	"github.com/papercomputeco/algoqa/pkg/transcript"
	"github.com/papercomputeco/algoqa/pkg/utils"
)

type historyCommander struct {
	storageDriver string
	sqlitePath    string
	postgresDSN   string

	limit   int
	status  string
	jsonOut bool

	cfg    *config.Config
	logger *slog.Logger
}

var historyFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
}

const historyLongDesc string = `List recorded answer transcripts, newest first.

Transcripts are written by "algoqa ask --record" and by the recording proxy.
Use "algoqa history show <id>" to print one in full.

Examples:
  algoqa history
  algoqa history --status failed --limit 10
  algoqa history --json
  algoqa history show 6f1c...`

const historyShortDesc string = "List recorded answer transcripts"

// questionWidth bounds the question column in the list view.
const questionWidth = 60

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.runList(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	cmd.PersistentFlags().BoolVar(&cmder.jsonOut, "json", false, "Print transcripts as JSON")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", storage.DefaultListLimit, "Maximum number of transcripts to list")
	cmd.Flags().StringVar(&cmder.status, "status", "", "Only list transcripts with this status (completed, failed)")

	cmd.AddCommand(newShowCmd(cmder))

	return cmd
}

func newShowCmd(cmder *historyCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one recorded transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runShow(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

func (c *historyCommander) prepare(cmd *cobra.Command) error {
	cfg, err := config.Resolve(cmd, config.Flags, historyFlags)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	c.cfg = cfg

	debug, _ := cmd.Flags().GetBool("debug")
	c.logger = logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(cmd.ErrOrStderr()),
	)
	return nil
}

func (c *historyCommander) open(ctx context.Context) (storage.Driver, error) {
	return storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
		DriverType:  c.cfg.Storage.Driver,
		SQLitePath:  c.cfg.Storage.SQLitePath,
		PostgresDSN: c.cfg.Storage.PostgresDSN,
		Logger:      logger.Nop(),
	})
}

func (c *historyCommander) runList(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch transcript.Status(c.status) {
	case "", transcript.StatusStreaming, transcript.StatusCompleted, transcript.StatusFailed:
	default:
		return fmt.Errorf("unknown status %q (expected completed, failed, or streaming)", c.status)
	}

	driver, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	transcripts, err := driver.List(ctx, storage.ListOptions{
		Limit:  c.limit,
		Status: transcript.Status(c.status),
	})
	if err != nil {
		return fmt.Errorf("listing transcripts: %w", err)
	}
	c.logger.Debug("listed transcripts", "count", len(transcripts))

	if c.jsonOut {
		return writeJSON(w, transcripts)
	}

	if len(transcripts) == 0 {
		fmt.Fprintln(w, "No transcripts recorded.")
		return nil
	}

	styled := isTerminal(w)
	for _, t := range transcripts {
		mark := "✓"
		if t.Status != transcript.StatusCompleted {
			mark = "✗"
		}
		if styled {
			mark = cliui.Mark(statusErr(t))
		}
		fmt.Fprintf(w, "%s %s  %s  %s\n",
			mark,
			t.ID,
			t.StartedAt.Local().Format("2006-01-02 15:04:05"),
			utils.Truncate(t.Question, questionWidth),
		)
	}
	return nil
}

func (c *historyCommander) runShow(ctx context.Context, w io.Writer, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	driver, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	t, err := driver.Get(ctx, id)
	if err != nil {
		return err
	}

	if c.jsonOut {
		return writeJSON(w, t)
	}

	fmt.Fprintf(w, "Question: %s\n", t.Question)
	fmt.Fprintf(w, "Status:   %s\n", t.Status)
	fmt.Fprintf(w, "Started:  %s\n", t.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Latency:  %s\n", cliui.FormatDuration(t.Latency))
	if t.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", t.Error)
	}
	fmt.Fprintf(w, "\n%s\n", t.Answer)

	if len(t.References) > 0 {
		fmt.Fprintln(w, "\nReferences")
		for i, ref := range t.References {
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, ref.TopicID, ref.TopicTitle)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func statusErr(t *transcript.Transcript) error {
	if t.Status == transcript.StatusCompleted {
		return nil
	}
	return errors.New(string(t.Status))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && cliui.IsTerminal(f)
}
