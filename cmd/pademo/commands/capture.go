package commands

import (
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture input and report levels",
	Long: `Open an input stream on the selected device and log the peak and RMS
level of the captured audio. Runs for --duration or until Ctrl-C.

Examples:
  pademo capture --duration 5s
  pademo capture --channels 1 --rate 48000 --record take.wav`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		_, err = newSession(cmd, cfg).Capture(cmd.Context())
		return err
	},
}

var captureAutoCmd = &cobra.Command{
	Use:   "capture-auto",
	Short: "Capture mono input with the device's own parameters",
	Long: `Like capture, but the sample rate and latency come from the default
input device and the host chooses the buffer size. Always mono.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		_, err = newSession(cmd, cfg).CaptureAuto(cmd.Context())
		return err
	},
}

func init() {
	addDurationFlags(captureCmd)
	addFormatFlags(captureCmd)
	addInputFlags(captureCmd)
	addRecordFlag(captureCmd)

	addDurationFlags(captureAutoCmd)
	addInputFlags(captureAutoCmd)
	addRecordFlag(captureAutoCmd)
}
