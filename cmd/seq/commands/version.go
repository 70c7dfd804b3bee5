package commands

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// cliVersion is sent in the User-Agent of every request.
var cliVersion = "dev"

// SetVersion records the build version reported to the ledger.
func SetVersion(version string) {
	if version != "" {
		cliVersion = version
	}
}

// NewVersionCommand creates the version command
func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  "Display detailed version information about the seq CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			type VersionInfo struct {
				Version string `json:"version" yaml:"version"`
				Commit  string `json:"commit"  yaml:"commit"`
				Built   string `json:"built"   yaml:"built"`
			}

			versionInfo := VersionInfo{
				Version: version,
				Commit:  commit,
				Built:   date,
			}

			return writeOutput(cmd.OutOrStdout(), versionInfo, func(table *tablewriter.Table) error {
				table.Header("Property", "Value")

				for _, row := range [][]string{{"Version", version}, {"Commit", commit}, {"Built", date}} {
					err := table.Append(row[0], row[1])
					if err != nil {
						return fmt.Errorf("appending table row: %w", err)
					}
				}

				return nil
			})
		},
	}
}
