// Package decodecmder provides the decode command for replaying captured
// answer streams through the decoder.
package decodecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/algoqa/pkg/answer"
	"github.com/papercomputeco/algoqa/pkg/cliui"
	"github.com/papercomputeco/algoqa/pkg/config"
	"github.com/papercomputeco/algoqa/pkg/decoder"
	"github.com/papercomputeco/algoqa/pkg/logger"
)

type decodeCommander struct {
	unrecognized string
	readBuffer   uint
	follow       bool
	chunkSize    int
	jsonOut      bool
	debug        bool

	cfg    *config.Config
	logger *slog.Logger
}

var decodeFlags = []string{
	config.FlagUnrecognized,
	config.FlagReadBuffer,
}

const decodeLongDesc string = `Decode a captured answer stream.

Reads an event stream from a file (or stdin when no file or "-" is given)
and prints the decoded answer and references. The input is typically written
by "algoqa ask --capture".

--follow keeps reading as the file grows and stops once it is removed or
renamed. --chunk-size re-splits the input into fixed-size chunks before
decoding. --json prints one JSON object per decoded event.

Examples:
  algoqa decode answer.sse
  algoqa decode --json --unrecognized report answer.sse
  cat answer.sse | algoqa decode --chunk-size 1
  algoqa decode --follow live.sse`

const decodeShortDesc string = "Decode a captured answer stream"

func NewDecodeCmd() *cobra.Command {
	cmder := &decodeCommander{}

	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: decodeShortDesc,
		Long:  decodeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd, config.Flags, decodeFlags)
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

			path := ""
			if len(args) == 1 && args[0] != "-" {
				path = args[0]
			}
			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), path)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagUnrecognized, &cmder.unrecognized)
	config.AddUintFlag(cmd, config.Flags, config.FlagReadBuffer, &cmder.readBuffer)
	cmd.Flags().BoolVarP(&cmder.follow, "follow", "F", false, "Keep reading as the file grows")
	cmd.Flags().IntVar(&cmder.chunkSize, "chunk-size", 0, "Re-split input into chunks of this many bytes")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print one JSON object per event")

	return cmd
}

func (c *decodeCommander) run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	policy, err := decoder.ParsePolicy(c.cfg.Decoder.Unrecognized)
	if err != nil {
		return err
	}

	src, closeSrc, err := c.source(stdin, path)
	if err != nil {
		return err
	}
	defer closeSrc()

	var (
		consumer answer.Consumer
		events   *jsonLines
	)
	if c.jsonOut {
		events = newJSONLines(stdout)
		consumer = events
	} else {
		opts := []cliui.PrinterOption{}
		if f, ok := stdout.(*os.File); ok && cliui.IsTerminal(f) {
			opts = append(opts, cliui.WithStyle(true), cliui.WithWidth(cliui.Width(f)))
		}
		if policy == decoder.PolicyReport {
			opts = append(opts, cliui.WithDiagnostics(stderr))
		}
		consumer = cliui.NewAnswerPrinter(stdout, opts...)
	}

	outcome := decoder.Decode(ctx, src, consumer,
		decoder.WithLogger(c.logger),
		decoder.WithUnrecognizedPolicy(policy),
	)

	if events != nil {
		events.stats(outcome.Stats)
		if events.err != nil {
			return fmt.Errorf("writing events: %w", events.err)
		}
	}
	return outcome.Err
}

func (c *decodeCommander) source(stdin io.Reader, path string) (decoder.Source, func(), error) {
	readBuffer := int(c.cfg.Decoder.ReadBuffer) //nolint:gosec // bounded by config parsing
	noop := func() {}

	if c.follow {
		if path == "" {
			return nil, noop, errors.New("--follow requires a file")
		}
		fs, err := decoder.NewFollowSource(path, readBuffer)
		if err != nil {
			return nil, noop, err
		}
		return fs, func() { _ = fs.Close() }, nil
	}

	var r io.Reader = stdin
	closer := noop
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, noop, fmt.Errorf("opening capture: %w", err)
		}
		r = f
		closer = func() { _ = f.Close() }
	}

	if c.chunkSize > 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			closer()
			return nil, noop, fmt.Errorf("reading capture: %w", err)
		}
		return decoder.NewChunkSource(decoder.SplitEvery(data, c.chunkSize), nil), closer, nil
	}

	return decoder.NewReaderSource(r, readBuffer), closer, nil
}
