package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drgolem/go-portaudio-demos/internal/config"
	"github.com/drgolem/go-portaudio-demos/internal/session"
)

func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addDurationFlags(cmd)
	addFormatFlags(cmd)
	addInputFlags(cmd)
	addOutputFlags(cmd)
	addRecordFlag(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestApplyFlagsOnlyChanged(t *testing.T) {
	cfg := config.Default()
	cfg.SampleRate = 48000 // as if from a config file

	cmd := newFlagCmd(t, "--channels", "1", "--duration", "3s", "--record", "out.wav")
	require.NoError(t, applyFlags(cmd, &cfg))

	assert.Equal(t, 48000.0, cfg.SampleRate, "unset flag must not override the file")
	assert.Equal(t, 1, cfg.Channels)
	assert.Equal(t, 3*time.Second, cfg.Duration)
	assert.Equal(t, "out.wav", cfg.RecordPath)
	assert.Equal(t, config.DefaultDevice, cfg.InputDevice)
}

func TestApplyFlagsAll(t *testing.T) {
	cfg := config.Default()
	cmd := newFlagCmd(t,
		"--rate", "96000",
		"--frames", "0",
		"--report-interval", "0",
		"--input-device", "2",
		"--output-device", "3",
	)
	require.NoError(t, applyFlags(cmd, &cfg))

	assert.Equal(t, 96000.0, cfg.SampleRate)
	assert.Equal(t, config.FramesPerBufferUnspecified, cfg.FramesPerBuffer)
	assert.Zero(t, cfg.ReportInterval)
	assert.Equal(t, 2, cfg.InputDevice)
	assert.Equal(t, 3, cfg.OutputDevice)
}

func TestApplyFlagsSkipsUndefined(t *testing.T) {
	cfg := config.Default()
	cmd := &cobra.Command{Use: "devices"}
	require.NoError(t, applyFlags(cmd, &cfg))
	assert.Equal(t, config.Default(), cfg)
}

func TestSetupLogging(t *testing.T) {
	l := logrus.New()

	require.NoError(t, setupLogging(l, "json", false))
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)
	assert.Equal(t, logrus.InfoLevel, l.Level)

	require.NoError(t, setupLogging(l, "text", true))
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)
	assert.Equal(t, logrus.DebugLevel, l.Level)

	assert.Error(t, setupLogging(l, "xml", false))
}

func TestLoadConfigBadFile(t *testing.T) {
	old := cfgFile
	t.Cleanup(func() { cfgFile = old })
	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := loadConfig(&cobra.Command{Use: "devices"})
	require.Error(t, err)
	assert.True(t, session.IsKind(err, session.KindConfig))
}

func TestConfigCommandPrintsEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pademo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sample_rate: 48000\nchannels: 1\n"), 0o644))

	old := cfgFile
	t.Cleanup(func() { cfgFile = old })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", path, "config"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())

	var got config.Config
	require.NoError(t, config.Parse(out.Bytes(), &got))
	assert.Equal(t, 48000.0, got.SampleRate)
	assert.Equal(t, 1, got.Channels)
	assert.Equal(t, config.Default().FramesPerBuffer, got.FramesPerBuffer)
	assert.Contains(t, runLog.Data, "run_id")
}
