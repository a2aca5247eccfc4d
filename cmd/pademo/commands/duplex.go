package commands

import (
	"github.com/spf13/cobra"
)

var duplexCmd = &cobra.Command{
	Use:   "duplex",
	Short: "Play the phase-inverted input",
	Long: `Open a full-duplex stream and write every input sample, negated, to the
output. Buffers with no input play silence.

Use headphones: with speakers and a microphone in the same room this
feeds back.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		_, err = newSession(cmd, cfg).Duplex(cmd.Context())
		return err
	},
}

func init() {
	addDurationFlags(duplexCmd)
	addFormatFlags(duplexCmd)
	addInputFlags(duplexCmd)
	addOutputFlags(duplexCmd)
}
