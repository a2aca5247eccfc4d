package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/drgolem/go-portaudio-demos/internal/config"
	"github.com/drgolem/go-portaudio-demos/internal/paengine"
	"github.com/drgolem/go-portaudio-demos/internal/session"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
)

var (
	logger = logrus.New()
	// runLog carries the run_id of this invocation. Set in PersistentPreRunE.
	runLog = logrus.NewEntry(logger)
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pademo",
	Short: "PortAudio device, capture and duplex demos",
	Long: `pademo exercises PortAudio from Go.

It lists audio devices, captures input while reporting peak and RMS
levels, and runs a full-duplex passthrough that plays the phase-inverted
input.

Settings come from built-in defaults, then the optional --config YAML file,
then command flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(logger, logFormat, verbose); err != nil {
			return err
		}
		runLog = logger.WithFields(logrus.Fields{
			"run_id":  uuid.NewString(),
			"command": cmd.Name(),
		})
		return nil
	},
}

// Command returns the root cobra command.
func Command() *cobra.Command {
	return rootCmd
}

// Execute runs the CLI until the command finishes or SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		runLog.WithError(err).Error("Command failed")
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(captureAutoCmd)
	rootCmd.AddCommand(duplexCmd)
	rootCmd.AddCommand(configCmd)
}

func setupLogging(l *logrus.Logger, format string, debug bool) error {
	switch format {
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", format)
	}

	l.SetLevel(logrus.InfoLevel)
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return nil
}

// loadConfig resolves defaults, the config file and the flags cmd defines,
// in that order.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, &session.Error{Kind: session.KindConfig, Detail: err.Error(), Err: err}
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return config.Config{}, &session.Error{Kind: session.KindConfig, Detail: err.Error(), Err: err}
	}
	return cfg, nil
}

// applyFlags copies every stream flag the user set explicitly into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && fs.Changed(name) {
			err = apply()
		}
	}

	set("duration", func() (e error) { cfg.Duration, e = fs.GetDuration("duration"); return })
	set("rate", func() (e error) { cfg.SampleRate, e = fs.GetFloat64("rate"); return })
	set("frames", func() (e error) { cfg.FramesPerBuffer, e = fs.GetInt("frames"); return })
	set("channels", func() (e error) { cfg.Channels, e = fs.GetInt("channels"); return })
	set("report-interval", func() (e error) { cfg.ReportInterval, e = fs.GetDuration("report-interval"); return })
	set("input-device", func() (e error) { cfg.InputDevice, e = fs.GetInt("input-device"); return })
	set("output-device", func() (e error) { cfg.OutputDevice, e = fs.GetInt("output-device"); return })
	set("record", func() (e error) { cfg.RecordPath, e = fs.GetString("record"); return })
	return err
}

func newSession(cmd *cobra.Command, cfg config.Config) *session.Session {
	return session.New(paengine.New(runLog), cfg,
		session.WithLogger(runLog),
		session.WithOutput(cmd.OutOrStdout()),
	)
}
