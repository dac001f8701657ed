package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/algoqa/pkg/dotdir"
)

// ConfigDirFlag is the persistent root flag that overrides .algoqa/ discovery.
const ConfigDirFlag = "config-dir"

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --sqlite
// on both "algoqa serve proxy" and "algoqa history").
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "proxy.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagBaseURL       = "base-url"
	FlagToken         = "token"
	FlagTimeout       = "timeout"
	FlagTopK          = "top-k"
	FlagUnrecognized  = "unrecognized"
	FlagReadBuffer    = "read-buffer"
	FlagProxyListen   = "listen"
	FlagUpstream      = "upstream"
	FlagAPIListen     = "api-listen"
	FlagStorageDriver = "storage"
	FlagSQLite        = "sqlite"
	FlagPostgres      = "postgres"
	FlagEventStream   = "eventstream"
	FlagBrokers       = "brokers"
	FlagTopic         = "topic"
)

// Flags is the shared registry used by the algoqa commands.
var Flags = FlagSet{
	FlagBaseURL:       {Name: "base-url", Shorthand: "b", ViperKey: "client.base_url", Description: "QA backend base URL"},
	FlagToken:         {Name: "token", ViperKey: "client.token", Description: "Bearer token sent to the QA backend"},
	FlagTimeout:       {Name: "timeout", ViperKey: "client.timeout", Description: "Maximum wait for response headers (e.g. 30s)"},
	FlagTopK:          {Name: "top-k", Shorthand: "k", ViperKey: "client.top_k", Description: "Number of reference documents to retrieve"},
	FlagUnrecognized:  {Name: "unrecognized", ViperKey: "decoder.unrecognized", Description: "Unrecognized payload policy (drop, report)"},
	FlagReadBuffer:    {Name: "read-buffer", ViperKey: "decoder.read_buffer", Description: "Read buffer size in bytes"},
	FlagProxyListen:   {Name: "listen", Shorthand: "l", ViperKey: "proxy.listen", Description: "Address for proxy to listen on"},
	FlagUpstream:      {Name: "upstream", Shorthand: "u", ViperKey: "proxy.upstream", Description: "Upstream QA backend URL"},
	FlagAPIListen:     {Name: "api-listen", ViperKey: "api.listen", Description: "Address for the transcript API to listen on"},
	FlagStorageDriver: {Name: "storage", ViperKey: "storage.driver", Description: "Transcript storage driver (memory, sqlite, postgres)"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: algoqa.db in the config dir)"},
	FlagPostgres:      {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagEventStream:   {Name: "eventstream", ViperKey: "eventstream.provider", Description: "Answer event publisher (nop, kafka)"},
	FlagBrokers:       {Name: "brokers", ViperKey: "eventstream.brokers", Description: "Comma separated Kafka broker addresses"},
	FlagTopic:         {Name: "topic", ViperKey: "eventstream.topic", Description: "Kafka topic for answer events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddPersistentStringFlag is AddStringFlag for flags inherited by subcommands.
func AddPersistentStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	cmd.PersistentFlags().StringVarP(target, def.Name, def.Shorthand, defaultString(def.ViperKey), def.Description)
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// Resolve returns the effective configuration for cmd: defaults, config.toml,
// ALGOQA_* environment and the given registered flags, in increasing
// precedence. An empty storage.sqlite_path resolves to algoqa.db in the
// .algoqa/ directory. Call it from PreRunE.
func Resolve(cmd *cobra.Command, fs FlagSet, registryKeys []string) (*Config, error) {
	configDir, _ := cmd.Flags().GetString(ConfigDirFlag)

	v, err := InitViper(configDir)
	if err != nil {
		return nil, err
	}
	BindRegisteredFlags(v, cmd, fs, registryKeys)

	cfg := FromViper(v)
	if cfg.Storage.SQLitePath == "" {
		path, err := dotdir.NewManager().DatabasePath(configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving database path: %w", err)
		}
		cfg.Storage.SQLitePath = path
	}

	return cfg, nil
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
