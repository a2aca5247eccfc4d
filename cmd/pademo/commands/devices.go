package commands

import (
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices",
	Long: `List every audio device in index order with its maximum input and
output channel counts and default sample rate. The host's default input
and output devices are marked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return newSession(cmd, cfg).ListDevices(cmd.Context())
	},
}
