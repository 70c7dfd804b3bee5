package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fivetwenty-io/seq/internal/constants"
	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/fivetwenty-io/seq/pkg/seqclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// NewLoginCommand creates the login command
func NewLoginCommand() *cobra.Command {
	var (
		apiEndpoint string
		ledger      string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a ledger",
		Long: `Verify a ledger credential and store it with the endpoint and ledger name.

The credential is read from --credential, SEQ_CREDENTIAL, or prompted for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			if apiEndpoint != "" {
				config.API = apiEndpoint
			}

			if ledger != "" {
				config.Ledger = ledger
			}

			if config.API == "" {
				return constants.ErrNoAPIConfigured
			}

			if config.Ledger == "" {
				return constants.ErrNoLedgerConfigured
			}

			config.API = seqclient.NormalizeEndpoint(config.API)

			var err error
			if config.Credential == "" {
				config.Credential, err = promptCredential(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}

			if config.Credential == "" {
				return constants.ErrCredentialRequired
			}

			viper.Set("api", config.API)
			viper.Set("ledger", config.Ledger)
			viper.Set("credential", config.Credential)

			client, err := createClient(cmd.Context())
			if err != nil {
				return err
			}

			_, err = seq.ListKeys().WithPageSize(1).GetPage(cmd.Context(), client)
			if err != nil {
				return fmt.Errorf("failed to verify credential: %w", err)
			}

			err = saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in to ledger '%s' at %s\n", config.Ledger, config.API)

			return nil
		},
	}

	cmd.Flags().StringVar(&apiEndpoint, "api", "", "API endpoint URL")
	cmd.Flags().StringVar(&ledger, "ledger", "", "ledger name")

	return cmd
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			config.Credential = ""

			err := saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			viper.Set("credential", "")

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")

			return nil
		},
	}
}

// promptCredential reads a credential without echo on a terminal, or a
// single line from a pipe.
func promptCredential(in io.Reader, prompt io.Writer) (string, error) {
	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		_, _ = fmt.Fprint(prompt, "Credential: ")

		secret, err := term.ReadPassword(int(file.Fd()))

		_, _ = fmt.Fprintln(prompt)

		if err != nil {
			return "", fmt.Errorf("failed to read credential: %w", err)
		}

		return strings.TrimSpace(string(secret)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}

	return strings.TrimSpace(line), nil
}
