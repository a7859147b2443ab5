// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/gy801/internal/app"
	"github.com/relabs-tech/gy801/internal/config"
)

const configOrder = `Configuration is resolved in this order:
1. command line flags
2. GY801_* environment variables
3. the file given by --config, $GY801_CONFIG, or gy801.yaml in
   $HOME/.config/gy801, /etc/gy801, the current directory
4. built-in defaults
`

// CommonFlags registers the flags every command reading the board accepts.
func CommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "configuration file path")
	cmd.Flags().String("bus", config.DefaultI2CBus, "I2C bus name")
	cmd.Flags().Int("interval", config.DefaultSampleIntervalMS, "sample interval in milliseconds")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
}

// loadConfig initializes the global configuration from the flags of cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if err := config.InitGlobal(path, cmd.Flags()); err != nil {
		return nil, err
	}
	cfg := config.Get()
	if cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	cfg.ApplyLogLevel()
	return cfg, nil
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func ConsoleCmdRunE(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	mock, _ := cmd.Flags().GetBool("mock")
	asJSON, _ := cmd.Flags().GetBool("json")
	raw, _ := cmd.Flags().GetBool("raw")

	ctx, cancel := signalContext()
	defer cancel()
	log.Info("starting gy801 console")
	return app.RunConsole(ctx, cfg, app.ConsoleOpts{Mock: mock, JSON: asJSON, Raw: raw, Out: cmd.OutOrStdout()})
}

func ConsoleCmdFlags(cmd *cobra.Command) {
	CommonFlags(cmd)
	cmd.Flags().Bool("mock", false, "use a synthetic orientation source instead of the board")
	cmd.Flags().Bool("json", false, "print one JSON object per sample")
	cmd.Flags().Bool("raw", false, "also print raw sensor counts (board only)")
}

// NewConsoleCmd prints pitch, roll and heading until interrupted.
func NewConsoleCmd() *cobra.Command {
	c := &cobra.Command{
		Use:          "console",
		Short:        "console prints pitch, roll and heading in a loop",
		Long:         "console prints pitch, roll, heading and tilt-compensated heading every sample interval.\n" + configOrder,
		Example:      "  gy801 console --interval 500\n  gy801 console --mock --json",
		RunE:         ConsoleCmdRunE,
		SilenceUsage: true,
	}
	ConsoleCmdFlags(c)
	return c
}

func DisplayCmdRunE(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return app.RunDisplay(ctx, cfg)
}

// NewDisplayCmd shows the orientation on an SSD1306 on the same bus.
func NewDisplayCmd() *cobra.Command {
	c := &cobra.Command{
		Use:          "display",
		Short:        "display shows the orientation on an SSD1306 OLED",
		Long:         "display draws pitch, roll and heading on a 128x64 SSD1306 sharing the I2C bus.\n" + configOrder,
		RunE:         DisplayCmdRunE,
		SilenceUsage: true,
	}
	CommonFlags(c)
	return c
}

func CalibrationCmdRunE(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	samples, _ := cmd.Flags().GetInt("samples")
	magDur, _ := cmd.Flags().GetDuration("mag-duration")
	every, _ := cmd.Flags().GetDuration("sample-every")
	if samples <= 0 {
		return fmt.Errorf("--samples must be > 0, got %d", samples)
	}

	ctx, cancel := signalContext()
	defer cancel()
	return app.RunCalibration(ctx, cfg, app.CalibrationOpts{
		StillSamples: samples,
		MagDuration:  magDur,
		SampleEvery:  every,
		In:           cmd.InOrStdin(),
		Out:          cmd.OutOrStdout(),
	})
}

func CalibrationCmdFlags(cmd *cobra.Command) {
	CommonFlags(cmd)
	cmd.Flags().Int("samples", 100, "number of still samples")
	cmd.Flags().Duration("mag-duration", 30*time.Second, "magnetometer rotation capture duration")
	cmd.Flags().Duration("sample-every", 50*time.Millisecond, "delay between samples")
}

// NewCalibrationCmd measures accelerometer and magnetometer offsets.
func NewCalibrationCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "calibration",
		Short: "calibration measures accelerometer and magnetometer offsets",
		Long: `calibration captures still samples (board flat, Z up) to estimate accelerometer
offsets and gyro bias, then samples the magnetometer while the board is rotated
to estimate hard-iron offsets. The result is printed as YAML and its accel and
mag sections can be pasted into the configuration file.
`,
		Example:      "  gy801 calibration --samples 200 --mag-duration 45s",
		RunE:         CalibrationCmdRunE,
		SilenceUsage: true,
	}
	CalibrationCmdFlags(c)
	return c
}

func RegisterDebugCmdRunE(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	export, _ := cmd.Flags().GetBool("export")
	return app.RunRegisterDump(cfg, app.RegisterDumpOpts{Devices: args, Export: export, Out: cmd.OutOrStdout()})
}

// NewRegisterDebugCmd dumps and decodes the chip registers.
func NewRegisterDebugCmd() *cobra.Command {
	c := &cobra.Command{
		Use:          "register_debug [adxl345|l3g4200d|hmc5883l...]",
		Aliases:      []string{"registers"},
		Short:        "register_debug dumps and decodes the registers of the three chips",
		Example:      "  gy801 register_debug\n  gy801 register_debug hmc5883l --export",
		RunE:         RegisterDebugCmdRunE,
		SilenceUsage: true,
	}
	CommonFlags(c)
	c.Flags().Bool("export", false, "print raw register values as YAML")
	return c
}

func InitCmdRunE(cmd *cobra.Command, _ []string) error {
	printFlag, _ := cmd.Flags().GetBool("print")
	output, _ := cmd.Flags().GetString("output")
	overwrite, _ := cmd.Flags().GetBool("yes")

	b, err := config.Template()
	if err != nil {
		return err
	}
	if printFlag {
		_, err := cmd.OutOrStdout().Write(b)
		return err
	}
	if _, err := os.Stat(output); err == nil && !overwrite {
		return fmt.Errorf("%s exists, use --yes to overwrite", output)
	}
	if err := os.WriteFile(output, b, 0o644); err != nil {
		return err
	}
	log.Infof("configuration template written to %s", output)
	return nil
}

func InitCmdFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("print", false, "print config to stdout")
	cmd.Flags().BoolP("yes", "y", false, "overwrite")
	cmd.Flags().StringP("output", "o", config.DefaultConfigName+".yaml", "output path")
}

// NewInitCmd writes a configuration template with the default values.
func NewInitCmd() *cobra.Command {
	c := &cobra.Command{
		Use:        "init",
		SuggestFor: []string{"ini", "in"},
		Short:      "init creates a configuration template",
		Example: `  gy801 init --print
  gy801 init -o /etc/gy801/gy801.yaml -y`,
		RunE:         InitCmdRunE,
		SilenceUsage: true,
	}
	InitCmdFlags(c)
	return c
}

// NewRootCmd assembles all commands under one binary.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gy801",
		Short: "GY-801 IMU reader: pitch, roll and tilt-compensated heading",
		Long:  "gy801 reads the ADXL345, L3G4200D and HMC5883L of a GY-801 board over I2C\nand fuses them into pitch, roll and magnetic heading.",
	}
	root.AddCommand(
		NewConsoleCmd(),
		NewDisplayCmd(),
		NewCalibrationCmd(),
		NewRegisterDebugCmd(),
		NewInitCmd(),
	)
	return root
}

// Execute runs c and exits non-zero on error.
func Execute(c *cobra.Command) {
	if err := c.Execute(); err != nil {
		os.Exit(1)
	}
}
