// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	capture_app "github.com/rapidaai/motioncam/api/capture-api/app"
	"github.com/rapidaai/motioncam/api/capture-api/config"
	"github.com/rapidaai/motioncam/pkg/commons"
	"github.com/rapidaai/motioncam/pkg/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "motioncam: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "motioncam",
		Short: "Record audio and video while a PIR sensor reports motion",
		Long: "motioncam starts recording when the motion sensor fires, keeps recording while " +
			"motion continues, stops after the grace window and muxes audio and video into one file.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCapture,
	}

	flags := root.PersistentFlags()
	flags.BoolP("debug", "d", false, "enable debug logging")
	flags.BoolP("audio", "a", false, "record audio")
	flags.BoolP("video", "v", false, "record video")
	flags.Float64P("window", "w", 10, "seconds to keep recording after the last motion")
	flags.StringP("filename", "f", "capture", "output filename prefix")
	flags.Bool("vflip", false, "flip the camera image vertically (the old -vf spelling)")
	flags.StringP("output", "o", ".", "output directory")

	root.AddCommand(newDoctorCmd())
	return root
}

var flagKeys = map[string]string{
	"audio":    "capture__audio",
	"video":    "capture__video",
	"window":   "capture__window_seconds",
	"filename": "capture__prefix",
	"vflip":    "capture__vflip",
	"output":   "capture__output_dir",
}

// loadConfig layers defaults, the .env file, the environment and the
// command line, in increasing precedence.
func loadConfig(flags *pflag.FlagSet) (*config.AppConfig, error) {
	v, err := config.InitConfig()
	if err != nil {
		return nil, err
	}
	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}
	if debug, _ := flags.GetBool("debug"); debug {
		v.Set("log_level", "debug")
	}
	return config.GetApplicationConfig(v)
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

func newLogger(cfg *config.AppConfig) (commons.Logger, error) {
	return commons.NewApplicationLogger(
		commons.Name(cfg.Name),
		commons.Path(cfg.LogPath),
		commons.Level(cfg.LogLevel),
		commons.Environment(utils.FromEnvironmentStr(cfg.Environment)),
	)
}

func runCapture(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := capture_app.New(ctx, cfg, logger)
	if err != nil {
		logger.Errorf("startup failed: %v", err)
		return err
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		logger.Errorw("motioncam stopped with errors", "error", err)
		return err
	}
	logger.Info("motioncam stopped")
	return nil
}
