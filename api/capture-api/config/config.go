// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Application config structure
type AppConfig struct {
	Name        string        `mapstructure:"service_name" validate:"required"`
	LogLevel    string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogPath     string        `mapstructure:"log_path"`
	Environment string        `mapstructure:"environment"`
	Capture     CaptureConfig `mapstructure:"capture"`
	Motion      MotionConfig  `mapstructure:"motion"`
	Audio       AudioConfig   `mapstructure:"audio"`
	Video       VideoConfig   `mapstructure:"video"`
	Mux         MuxConfig     `mapstructure:"mux"`
	Ledger      LedgerConfig  `mapstructure:"ledger"`
	HTTP        HTTPConfig    `mapstructure:"http"`
}

type CaptureConfig struct {
	Audio          bool          `mapstructure:"audio" validate:"required_without=Video"`
	Video          bool          `mapstructure:"video" validate:"required_without=Audio"`
	WindowSeconds  float64       `mapstructure:"window_seconds" validate:"gt=0"`
	Prefix         string        `mapstructure:"prefix" validate:"required"`
	OutputDir      string        `mapstructure:"output_dir"`
	Width          int           `mapstructure:"width" validate:"gt=0"`
	Height         int           `mapstructure:"height" validate:"gt=0"`
	VFlip          bool          `mapstructure:"vflip"`
	TickInterval   time.Duration `mapstructure:"tick_interval" validate:"gt=0"`
	StartSequence  int           `mapstructure:"start_sequence" validate:"gte=0"`
	ResumeSequence bool          `mapstructure:"resume_sequence"`
}

// Window is the grace period after the last motion edge.
func (c CaptureConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds * float64(time.Second))
}

type MotionConfig struct {
	GPIO             string `mapstructure:"gpio" validate:"required"`
	ExtendOnPresence bool   `mapstructure:"extend_on_presence"`
}

type AudioConfig struct {
	Device string `mapstructure:"device"`
}

type VideoConfig struct {
	Backend   string `mapstructure:"backend" validate:"oneof=rpicam gstreamer"`
	Device    string `mapstructure:"device"`
	Framerate int    `mapstructure:"framerate" validate:"gt=0"`
}

type MuxConfig struct {
	FFmpegPath      string        `mapstructure:"ffmpeg_path" validate:"required"`
	Workers         int           `mapstructure:"workers" validate:"gte=1"`
	// ShutdownTimeout bounds the wait for pending mux jobs at exit. Zero
	// waits for them to finish.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

type LedgerConfig struct {
	// Path of the sqlite file. Empty disables the ledger.
	Path string `mapstructure:"path"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address" validate:"required_if=Enabled true"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	if path := os.Getenv("ENV_PATH"); path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()
	setDefault(vConfig)

	if err := vConfig.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "motioncam")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PATH", "")
	v.SetDefault("ENVIRONMENT", "development")

	v.SetDefault("CAPTURE__AUDIO", false)
	v.SetDefault("CAPTURE__VIDEO", false)
	v.SetDefault("CAPTURE__WINDOW_SECONDS", 10)
	v.SetDefault("CAPTURE__PREFIX", "capture")
	v.SetDefault("CAPTURE__OUTPUT_DIR", ".")
	v.SetDefault("CAPTURE__WIDTH", 640)
	v.SetDefault("CAPTURE__HEIGHT", 480)
	v.SetDefault("CAPTURE__VFLIP", false)
	v.SetDefault("CAPTURE__TICK_INTERVAL", "100ms")
	v.SetDefault("CAPTURE__START_SEQUENCE", 0)
	v.SetDefault("CAPTURE__RESUME_SEQUENCE", false)

	v.SetDefault("MOTION__GPIO", "GPIO4")
	v.SetDefault("MOTION__EXTEND_ON_PRESENCE", false)

	v.SetDefault("AUDIO__DEVICE", "default")

	v.SetDefault("VIDEO__BACKEND", "rpicam")
	v.SetDefault("VIDEO__DEVICE", "")
	v.SetDefault("VIDEO__FRAMERATE", 30)

	v.SetDefault("MUX__FFMPEG_PATH", "ffmpeg")
	v.SetDefault("MUX__WORKERS", 1)
	v.SetDefault("MUX__SHUTDOWN_TIMEOUT", "0s")

	v.SetDefault("LEDGER__PATH", "motioncam.db")

	v.SetDefault("HTTP__ENABLED", false)
	v.SetDefault("HTTP__ADDRESS", "127.0.0.1:8089")
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	config.Video.Backend = strings.ToLower(config.Video.Backend)

	if err := validator.New().Struct(&config); err != nil {
		return nil, describe(err)
	}
	return &config, nil
}

// describe turns validator output into messages an operator can act on.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	seen := map[string]bool{}
	for _, fe := range verrs {
		var msg string
		switch {
		case fe.Tag() == "required_without" && strings.HasPrefix(fe.Namespace(), "AppConfig.Capture."):
			msg = "at least one of audio (-a) or video (-v) must be enabled"
		case fe.Tag() == "oneof":
			msg = fmt.Sprintf("%s must be one of [%s], got %q", fe.Namespace(), fe.Param(), fe.Value())
		default:
			msg = fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		if !seen[msg] {
			seen[msg] = true
			msgs = append(msgs, msg)
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
