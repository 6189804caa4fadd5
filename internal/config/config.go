// Package config implements the renderer's settings tree (spec §6
// "Configuration", SPEC_FULL §10.2): a struct mirroring the original
// prototype's AppConfig/RendererConfig/PathConfig models, loaded through
// viper with the same defaults, and falling back gracefully on a corrupt
// file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AppConfig holds state unrelated to a single render.
type AppConfig struct {
	LastOpenDir string `mapstructure:"last_open_dir" yaml:"last_open_dir"`
}

// RendererConfig controls output shape and the encoder.
type RendererConfig struct {
	Width         int    `mapstructure:"width" yaml:"width"`
	Height        int    `mapstructure:"height" yaml:"height"`
	FPS           int    `mapstructure:"fps" yaml:"fps"`
	EncoderPreset string `mapstructure:"encoder_preset" yaml:"encoder_preset"`
	CRF           int    `mapstructure:"crf" yaml:"crf"`
	UseGPU        bool   `mapstructure:"use_gpu" yaml:"use_gpu"`
	EnableAudio   bool   `mapstructure:"enable_audio" yaml:"enable_audio"`
	SampleMethod  string `mapstructure:"sample_method" yaml:"sample_method"`
}

// PathConfig names the input storyboard and the output video file.
type PathConfig struct {
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
	OsuPath    string `mapstructure:"osu_path" yaml:"osu_path"`
}

// Config is the full settings tree.
type Config struct {
	App      AppConfig      `mapstructure:"app" yaml:"app"`
	Renderer RendererConfig `mapstructure:"renderer" yaml:"renderer"`
	Path     PathConfig     `mapstructure:"path" yaml:"path"`
}

// Default returns the built-in defaults (spec §6).
func Default() Config {
	return Config{
		App: AppConfig{LastOpenDir: "."},
		Renderer: RendererConfig{
			Width: 1280, Height: 720, FPS: 60,
			EncoderPreset: "fast", CRF: 20,
			UseGPU: true, EnableAudio: true,
			SampleMethod: "linear",
		},
		Path: PathConfig{
			OutputPath: "./output.mp4",
			OsuPath:    "./example.osu",
		},
	}
}

func bindDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("app.last_open_dir", d.App.LastOpenDir)
	v.SetDefault("renderer.width", d.Renderer.Width)
	v.SetDefault("renderer.height", d.Renderer.Height)
	v.SetDefault("renderer.fps", d.Renderer.FPS)
	v.SetDefault("renderer.encoder_preset", d.Renderer.EncoderPreset)
	v.SetDefault("renderer.crf", d.Renderer.CRF)
	v.SetDefault("renderer.use_gpu", d.Renderer.UseGPU)
	v.SetDefault("renderer.enable_audio", d.Renderer.EnableAudio)
	v.SetDefault("renderer.sample_method", d.Renderer.SampleMethod)
	v.SetDefault("path.output_path", d.Path.OutputPath)
	v.SetDefault("path.osu_path", d.Path.OsuPath)
}

// New returns a viper instance pre-loaded with defaults and bound to
// path (if non-empty) as its YAML config file. Callers bind additional
// flag/env sources before calling Load.
func New(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	bindDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// Load reads and unmarshals v into a Config. A missing file is not an
// error — viper.ReadInConfig reports one but the caller just gets
// defaults (plus any flags/env already bound). A present-but-unparsable
// file logs a warning and falls back to pure defaults, matching the
// original prototype's from_yaml behaviour.
func Load(v *viper.Viper, log *logrus.Entry) (Config, error) {
	if log == nil {
		log = logrus.WithField("component", "config")
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, isNotFound := err.(viper.ConfigFileNotFoundError); !isNotFound && !errors.Is(err, fs.ErrNotExist) {
				log.WithError(err).Warn("config file present but unparsable, falling back to defaults")
				return Default(), nil
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Save round-trips cfg to path as YAML (SPEC_FULL §12.4), mirroring the
// prototype's Config.to_yaml.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	return nil
}
