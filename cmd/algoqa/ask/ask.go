// Package askcmder provides the ask command, which streams an answer from the
// QA backend to the terminal.
package askcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/algoqa/pkg/answer"
	"github.com/papercomputeco/algoqa/pkg/cliui"
	"github.com/papercomputeco/algoqa/pkg/config"
	"github.com/papercomputeco/algoqa/pkg/decoder"
	"github.com/papercomputeco/algoqa/pkg/logger"
	"github.com/papercomputeco/algoqa/pkg/qaclient"
	storageutils "github.com/papercomputeco/algoqa/pkg/storage/utils"
	"github.com/papercomputeco/algoqa/pkg/transcript"
)

type askCommander struct {
	baseURL      string
	token        string
	timeout      string
	topK         uint
	unrecognized string
	readBuffer   uint

	storageDriver string
	sqlitePath    string
	postgresDSN   string

	filters  []string
	capture  string
	markdown bool
	record   bool
	debug    bool

	cfg    *config.Config
	logger *slog.Logger
}

var askFlags = []string{
	config.FlagBaseURL,
	config.FlagToken,
	config.FlagTimeout,
	config.FlagTopK,
	config.FlagUnrecognized,
	config.FlagReadBuffer,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
}

const askLongDesc string = `Ask a question and stream the answer.

Answer text is printed as it arrives. Reference documents are listed once the
answer completes. Keep-alive frames and unrecognized payloads are ignored
unless --unrecognized=report is set, in which case they are printed to stderr.

Examples:
  algoqa ask "What is the time complexity of heapsort?"
  algoqa ask -k 8 --filter sorting "Is quicksort stable?"
  algoqa ask --markdown --record "Explain Dijkstra's algorithm"
  algoqa ask --capture answer.sse "What is a trie?"`

const askShortDesc string = "Ask a question and stream the answer"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd, config.Flags, askFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.logger = logger.New(
				logger.WithDebug(cmder.debug),
				logger.WithPretty(true),
				logger.WithWriter(cmd.ErrOrStderr()),
			)
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), strings.Join(args, " "))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagToken, &cmder.token)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	config.AddStringFlag(cmd, config.Flags, config.FlagUnrecognized, &cmder.unrecognized)
	config.AddUintFlag(cmd, config.Flags, config.FlagReadBuffer, &cmder.readBuffer)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	cmd.Flags().StringSliceVarP(&cmder.filters, "filter", "f", nil, "Restrict retrieval to these context filters (repeatable)")
	cmd.Flags().StringVar(&cmder.capture, "capture", "", "Write the raw answer stream to this file")
	cmd.Flags().BoolVarP(&cmder.markdown, "markdown", "m", false, "Render the completed answer as markdown")
	cmd.Flags().BoolVar(&cmder.record, "record", false, "Save the answer to transcript storage")

	return cmd
}

func (c *askCommander) run(ctx context.Context, stdout, stderr io.Writer, question string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	policy, err := decoder.ParsePolicy(c.cfg.Decoder.Unrecognized)
	if err != nil {
		return err
	}
	timeout, err := c.cfg.Client.TimeoutDuration()
	if err != nil {
		return err
	}

	q := qaclient.Question{
		Question:       question,
		ContextFilters: c.filters,
		TopK:           int(c.cfg.Client.TopK), //nolint:gosec // bounded by config parsing
	}
	if err := q.Validate(); err != nil {
		return err
	}

	client, err := qaclient.New(qaclient.Config{
		BaseURL:    c.cfg.Client.BaseURL,
		Token:      c.cfg.Client.Token,
		Timeout:    timeout,
		ReadBuffer: int(c.cfg.Decoder.ReadBuffer), //nolint:gosec // bounded by config parsing
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	var capture io.Writer
	if c.capture != "" {
		f, err := os.Create(c.capture)
		if err != nil {
			return fmt.Errorf("creating capture file: %w", err)
		}
		defer f.Close()
		capture = f
	}

	opts := []cliui.PrinterOption{cliui.WithMarkdown(c.markdown)}
	if f, ok := stdout.(*os.File); ok && cliui.IsTerminal(f) {
		opts = append(opts, cliui.WithStyle(true), cliui.WithWidth(cliui.Width(f)))
	}
	if policy == decoder.PolicyReport {
		opts = append(opts, cliui.WithDiagnostics(stderr))
	}
	printer := cliui.NewAnswerPrinter(stdout, opts...)

	var (
		consumer answer.Consumer = printer
		rec      *transcript.Recorder
	)
	if c.record {
		rec = transcript.NewRecorder(question)
		consumer = answer.Tee(printer, rec)
	}

	outcome := decoder.Run(ctx, client.Opener(q, capture), consumer,
		decoder.WithLogger(c.logger),
		decoder.WithUnrecognizedPolicy(policy),
	)

	if rec != nil {
		if err := c.save(ctx, rec.Transcript()); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "recorded transcript %s\n", rec.Transcript().ID)
	}

	return outcome.Err
}

func (c *askCommander) save(ctx context.Context, t transcript.Transcript) error {
	driver, err := storageutils.NewDriver(context.WithoutCancel(ctx), &storageutils.NewDriverOpts{
		DriverType:  c.cfg.Storage.Driver,
		SQLitePath:  c.cfg.Storage.SQLitePath,
		PostgresDSN: c.cfg.Storage.PostgresDSN,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	defer driver.Close()

	if err := driver.Put(context.WithoutCancel(ctx), &t); err != nil {
		return fmt.Errorf("saving transcript: %w", err)
	}
	return nil
}
