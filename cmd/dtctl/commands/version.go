package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/dtclient/internal/constants"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  "Display detailed version information about dtctl and the client library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type VersionInfo struct {
				Version string `json:"version" yaml:"version"`
				Library string `json:"library" yaml:"library"`
				Commit  string `json:"commit"  yaml:"commit"`
				Built   string `json:"built"   yaml:"built"`
				Go      string `json:"go"      yaml:"go"`
			}

			versionInfo := VersionInfo{
				Version: version,
				Library: constants.Version,
				Commit:  commit,
				Built:   date,
				Go:      runtime.Version(),
			}

			w := cmd.OutOrStdout()

			return render(w, versionInfo, func() error {
				return renderTable(w, []string{"Property", "Value"}, [][]string{
					{"Version", versionInfo.Version},
					{"Library", versionInfo.Library},
					{"Commit", versionInfo.Commit},
					{"Built", versionInfo.Built},
					{"Go", versionInfo.Go},
				})
			})
		},
	}
}
