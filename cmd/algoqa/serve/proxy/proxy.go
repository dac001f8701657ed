// Package proxycmder provides the recording proxy server command.
package proxycmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/algoqa/pkg/config"
	"github.com/papercomputeco/algoqa/pkg/decoder"
	eventstreamutils "github.com/papercomputeco/algoqa/pkg/eventstream/utils"
	"github.com/papercomputeco/algoqa/pkg/logger"
	storageutils "github.com/papercomputeco/algoqa/pkg/storage/utils"
	"github.com/papercomputeco/algoqa/proxy"
)

type proxyCommander struct {
	listen       string
	upstream     string
	timeout      string
	unrecognized string
	readBuffer   uint

	storageDriver string
	sqlitePath    string
	postgresDSN   string

	eventStream string
	brokers     string
	topic       string

	debug   bool
	logFile string
	cfg     *config.Config
	logger *slog.Logger
}

var proxyFlags = []string{
	config.FlagProxyListen,
	config.FlagUpstream,
	config.FlagTimeout,
	config.FlagUnrecognized,
	config.FlagReadBuffer,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEventStream,
	config.FlagBrokers,
	config.FlagTopic,
}

const proxyLongDesc string = `Run the recording proxy server.

The proxy forwards every request to the upstream QA backend. Streaming
answers on ` + proxy.DefaultStreamPath + ` are relayed to the client byte for byte
while a side decoder records the question, answer, and references as a
transcript. Transcripts are written to the configured storage driver and,
when an event stream is configured, published as answer completed events.

Examples:
  algoqa serve proxy --upstream http://qa-backend:8080
  algoqa serve proxy --storage postgres --postgres postgres://localhost/algoqa
  algoqa serve proxy --eventstream kafka --brokers localhost:9092`

const proxyShortDesc string = "Run the recording proxy server"

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd, config.Flags, proxyFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logFile, err = cmd.Flags().GetString("log-file")
			if err != nil {
				return fmt.Errorf("could not get log-file flag: %w", err)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagUnrecognized, &cmder.unrecognized)
	config.AddUintFlag(cmd, config.Flags, config.FlagReadBuffer, &cmder.readBuffer)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.eventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &cmder.topic)

	return cmd
}

func (c *proxyCommander) run(ctx context.Context) error {
	l, closeLog, err := logger.NewService(c.debug, c.logFile)
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = l

	policy, err := decoder.ParsePolicy(c.cfg.Decoder.Unrecognized)
	if err != nil {
		return err
	}
	timeout, err := c.cfg.Client.TimeoutDuration()
	if err != nil {
		return err
	}

	driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
		DriverType:  c.cfg.Storage.Driver,
		SQLitePath:  c.cfg.Storage.SQLitePath,
		PostgresDSN: c.cfg.Storage.PostgresDSN,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: c.cfg.EventStream.Provider,
		Brokers:      c.cfg.EventStream.BrokerList(),
		Topic:        c.cfg.EventStream.Topic,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	p, err := proxy.New(proxy.Config{
		ListenAddr:            c.cfg.Proxy.Listen,
		UpstreamURL:           c.cfg.Proxy.Upstream,
		Policy:                policy,
		ReadBuffer:            int(c.cfg.Decoder.ReadBuffer), //nolint:gosec // bounded by config parsing
		ResponseHeaderTimeout: timeout,
		Publisher:             publisher,
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	c.logger.Info("event stream configured",
		"provider", c.cfg.EventStream.Provider,
		"topic", c.cfg.EventStream.Topic,
	)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	case <-ctx.Done():
		return nil
	}
}
