package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/seq/internal/constants"
	"github.com/fivetwenty-io/seq/internal/logging"
	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/fivetwenty-io/seq/pkg/seqclient"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConfigDirName is the directory under $HOME holding CLI state.
const ConfigDirName = ".seq"

// Config represents the CLI configuration.
type Config struct {
	API        string  `json:"api,omitempty"        yaml:"api,omitempty"`
	Ledger     string  `json:"ledger,omitempty"     yaml:"ledger,omitempty"`
	Credential string  `json:"credential,omitempty" yaml:"credential,omitempty"`
	Output     string  `json:"output,omitempty"     yaml:"output,omitempty"`
	PageSize   int     `json:"page_size,omitempty"  yaml:"page_size,omitempty"`
	RateLimit  float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`

	CheckpointType string `json:"checkpoint_type,omitempty" yaml:"checkpoint_type,omitempty"`
	CheckpointFile string `json:"checkpoint_file,omitempty" yaml:"checkpoint_file,omitempty"`
	NATSURL        string `json:"nats_url,omitempty"        yaml:"nats_url,omitempty"`
	NATSBucket     string `json:"nats_bucket,omitempty"     yaml:"nats_bucket,omitempty"`
}

// configKeys maps each settable key to its parser.
var configKeys = map[string]func(*Config, string) error{
	"api":        func(c *Config, v string) error { c.API = v; return nil },
	"ledger":     func(c *Config, v string) error { c.Ledger = v; return nil },
	"credential": func(c *Config, v string) error { c.Credential = v; return nil },
	"output": func(c *Config, v string) error {
		switch v {
		case "", constants.FormatTable, constants.FormatJSON, constants.FormatYAML:
			c.Output = v

			return nil
		default:
			return fmt.Errorf("%w: %s", constants.ErrUnsupportedOutput, v)
		}
	},
	"page_size": func(c *Config, v string) error {
		if v == "" {
			c.PageSize = 0

			return nil
		}

		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > constants.MaxPageSize {
			return fmt.Errorf("%w: %s", constants.ErrPageSizeOutOfRange, v)
		}

		c.PageSize = n

		return nil
	},
	"rate_limit": func(c *Config, v string) error {
		if v == "" {
			c.RateLimit = 0

			return nil
		}

		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s", constants.ErrInvalidRateLimit, v)
		}

		c.RateLimit = n

		return nil
	},
	"checkpoint_type": func(c *Config, v string) error {
		switch v {
		case "", constants.CheckpointTypeFile, constants.CheckpointTypeMemory,
			constants.CheckpointTypeNATS, constants.CheckpointTypeNone:
			c.CheckpointType = v

			return nil
		default:
			return fmt.Errorf("%w: %s", constants.ErrUnsupportedCheckType, v)
		}
	},
	"checkpoint_file": func(c *Config, v string) error { c.CheckpointFile = v; return nil },
	"nats_url":        func(c *Config, v string) error { c.NATSURL = v; return nil },
	"nats_bucket":     func(c *Config, v string) error { c.NATSBucket = v; return nil },
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Show and change the ledger endpoint, credential and CLI settings",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current CLI configuration with the credential masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			if config.Credential != "" {
				config.Credential = constants.MaskedSecret
			}

			return writeOutput(cmd.OutOrStdout(), config, func(table *tablewriter.Table) error {
				return displayConfigTable(table, config)
			})
		},
	}
}

func displayConfigTable(table *tablewriter.Table, config *Config) error {
	table.Header("Key", "Value")

	rows := [][]string{
		{"api", config.API},
		{"ledger", config.Ledger},
		{"credential", config.Credential},
		{"output", config.Output},
		{"page_size", strconv.Itoa(config.PageSize)},
		{"rate_limit", strconv.FormatFloat(config.RateLimit, 'f', -1, 64)},
		{"checkpoint_type", config.CheckpointType},
		{"checkpoint_file", config.CheckpointFile},
		{"nats_url", config.NATSURL},
		{"nats_bucket", config.NATSBucket},
	}

	for _, row := range rows {
		err := table.Append(row[0], row[1])
		if err != nil {
			return fmt.Errorf("appending table row: %w", err)
		}
	}

	return nil
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration value. Keys: " + configKeyList(),
		Args:  cobra.ExactArgs(2), //nolint:mnd // key and value
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfig(cmd.OutOrStdout(), args[0], args[1], "Set")
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value. Keys: " + configKeyList(),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfig(cmd.OutOrStdout(), args[0], "", "Unset")
		},
	}
}

func configKeyList() string {
	keys := make([]string, 0, len(configKeys))
	for key := range configKeys {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return strings.Join(keys, ", ")
}

func updateConfig(out io.Writer, key, value, verb string) error {
	apply, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	config := loadConfig()

	err := apply(config, value)
	if err != nil {
		return err
	}

	err = saveConfigStruct(config)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	viper.Set(key, value)

	if value == "" || key == "credential" {
		_, _ = fmt.Fprintf(out, "%s %s\n", verb, key)
	} else {
		_, _ = fmt.Fprintf(out, "%s %s to %s\n", verb, key, value)
	}

	return nil
}

func loadConfig() *Config {
	return &Config{
		API:            viper.GetString("api"),
		Ledger:         viper.GetString("ledger"),
		Credential:     viper.GetString("credential"),
		Output:         viper.GetString("output"),
		PageSize:       viper.GetInt("page_size"),
		RateLimit:      viper.GetFloat64("rate_limit"),
		CheckpointType: viper.GetString("checkpoint_type"),
		CheckpointFile: viper.GetString("checkpoint_file"),
		NATSURL:        viper.GetString("nats_url"),
		NATSBucket:     viper.GetString("nats_bucket"),
	}
}

// configDir returns $HOME/.seq.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ConfigDirName), nil
}

func saveConfigStruct(config *Config) error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}

		configFile = filepath.Join(dir, "config.yml")
	}

	err := os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// cliLogger returns the logger used by commands.
func cliLogger() *logging.ZapLogger {
	logger, err := logging.NewCLILogger(viper.GetBool("verbose"))
	if err != nil {
		return logging.NewZapLogger(nil)
	}

	return logging.NewZapLogger(logger)
}

// createClient builds a ledger client from the current configuration.
func createClient(ctx context.Context) (seq.Client, error) {
	config := loadConfig()

	if config.API == "" {
		return nil, constants.ErrNoAPIConfigured
	}

	if config.Ledger == "" {
		return nil, constants.ErrNoLedgerConfigured
	}

	verbose := viper.GetBool("verbose")
	logger := cliLogger()

	chain := seq.NewInterceptorChain()
	if verbose {
		chain.AddRequestInterceptor(seq.LoggingInterceptor(logger))
		chain.AddResponseInterceptor(seq.LoggingResponseInterceptor(logger))
	}

	if config.RateLimit > 0 {
		chain.AddRequestInterceptor(seq.RateLimitInterceptor(config.RateLimit, 1))
	}

	client, err := seqclient.New(ctx, &seq.Config{
		APIEndpoint:  config.API,
		Ledger:       config.Ledger,
		Credential:   config.Credential,
		Debug:        verbose,
		Logger:       logger,
		UserAgent:    "seq-cli/" + cliVersion,
		Interceptors: chain,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger client: %w", err)
	}

	return client, nil
}

// createCheckpointStore builds the cursor store for --checkpoint. The
// returned function releases backend resources.
func createCheckpointStore(ctx context.Context) (seq.CheckpointStore, func(), error) {
	config := loadConfig()

	checkpointConfig := &seq.CheckpointConfig{
		Type: seq.CheckpointType(config.CheckpointType),
		File: config.CheckpointFile,
	}

	if checkpointConfig.Type == "" {
		checkpointConfig.Type = seq.CheckpointTypeFile
	}

	if checkpointConfig.Type == seq.CheckpointTypeFile && checkpointConfig.File == "" {
		dir, err := configDir()
		if err != nil {
			return nil, nil, err
		}

		checkpointConfig.File = filepath.Join(dir, constants.DefaultCheckpointFile)
	}

	if checkpointConfig.Type == seq.CheckpointTypeNATS {
		checkpointConfig.NATS = &seq.NATSCheckpointConfig{
			URL:    config.NATSURL,
			Bucket: config.NATSBucket,
		}
	}

	store, err := seq.NewCheckpointStore(ctx, checkpointConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	release := func() {}
	if closer, ok := store.(interface{ Close() }); ok {
		release = closer.Close
	}

	return store, release, nil
}
