// Package algoqacmder
package algoqacmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/algoqa/cmd/algoqa/ask"
	configcmder "github.com/papercomputeco/algoqa/cmd/algoqa/config"
	decodecmder "github.com/papercomputeco/algoqa/cmd/algoqa/decode"
	historycmder "github.com/papercomputeco/algoqa/cmd/algoqa/history"
	initcmder "github.com/papercomputeco/algoqa/cmd/algoqa/init"
	servecmder "github.com/papercomputeco/algoqa/cmd/algoqa/serve"
	versioncmder "github.com/papercomputeco/algoqa/cmd/version"
	"github.com/papercomputeco/algoqa/pkg/config"
)

const algoqaLongDesc string = `algoqa asks questions of an algorithm QA backend and decodes its
streamed answers.

Common commands:
  algoqa ask "what is a heap?"   Stream an answer to the terminal
  algoqa decode capture.sse      Decode a captured answer stream
  algoqa serve                   Run the recording proxy and transcript API
  algoqa history                 List recorded answers`

const algoqaShortDesc string = "algoqa - streaming answer client"

func NewAlgoqaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "algoqa",
		Short:        algoqaShortDesc,
		Long:         algoqaLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String(config.ConfigDirFlag, "", "Override the .algoqa/ config directory")

	// Add subcommands
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(decodecmder.NewDecodeCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
