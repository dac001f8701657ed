// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/algoqa/api"
	apicmder "github.com/papercomputeco/algoqa/cmd/algoqa/serve/api"
	proxycmder "github.com/papercomputeco/algoqa/cmd/algoqa/serve/proxy"
	"github.com/papercomputeco/algoqa/pkg/config"
	"github.com/papercomputeco/algoqa/pkg/decoder"
	eventstreamutils "github.com/papercomputeco/algoqa/pkg/eventstream/utils"
	"github.com/papercomputeco/algoqa/pkg/logger"
	storageutils "github.com/papercomputeco/algoqa/pkg/storage/utils"
	"github.com/papercomputeco/algoqa/proxy"
)

// ServeCommander runs the recording proxy and the transcript API against a
// shared storage driver.
type ServeCommander struct {
	proxyListen  string
	apiListen    string
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

var serveFlags = []string{
	config.FlagProxyListen,
	config.FlagAPIListen,
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

const serveLongDesc string = `Run algoqa services.

  algoqa serve          Run both the recording proxy and the API server
  algoqa serve api      Run just the transcript API server
  algoqa serve proxy    Run just the recording proxy`

const serveShortDesc string = "Run algoqa services"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd, config.Flags, serveFlags)
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

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &cmder.proxyListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.apiListen)
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

	cmd.PersistentFlags().String("log-file", "", "Also append JSON logs to this file")

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
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

	// Create shared storage driver
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

	apiServer := api.NewServer(api.Config{ListenAddr: c.cfg.API.Listen}, driver, c.logger)
	defer apiServer.Shutdown()

	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

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
