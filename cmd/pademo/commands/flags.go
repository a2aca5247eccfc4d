package commands

import (
	"github.com/spf13/cobra"

	"github.com/drgolem/go-portaudio-demos/internal/config"
)

// The defaults shown in help come from config.Default; they only take
// effect when neither the flag nor the config file sets a value.

func addDurationFlags(cmd *cobra.Command) {
	def := config.Default()
	cmd.Flags().Duration("duration", def.Duration, "how long to run (0 runs until interrupted)")
	cmd.Flags().Duration("report-interval", def.ReportInterval, "aggregate level reports over this interval (0 logs every buffer)")
}

func addFormatFlags(cmd *cobra.Command) {
	def := config.Default()
	cmd.Flags().Float64("rate", def.SampleRate, "sample rate in Hz")
	cmd.Flags().Int("frames", def.FramesPerBuffer, "frames per buffer (0 lets the host choose)")
	cmd.Flags().Int("channels", def.Channels, "channel count")
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().Int("input-device", config.DefaultDevice, "input device index (-1 for the default)")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Int("output-device", config.DefaultDevice, "output device index (-1 for the default)")
}

func addRecordFlag(cmd *cobra.Command) {
	cmd.Flags().String("record", "", "also write the captured input to this WAV file")
}
