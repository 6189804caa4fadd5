package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Speechless-10308/osb-render/internal/assets"
	"github.com/Speechless-10308/osb-render/internal/compositor"
	"github.com/Speechless-10308/osb-render/internal/config"
	"github.com/Speechless-10308/osb-render/internal/driver"
	"github.com/Speechless-10308/osb-render/internal/engine"
	"github.com/Speechless-10308/osb-render/internal/gpu"
	"github.com/Speechless-10308/osb-render/internal/osufile"
	"github.com/Speechless-10308/osb-render/internal/storyboard"
)

var (
	flagOsuPath    string
	flagOutputPath string
	flagStoryboard string
	flagWidth      int
	flagHeight     int
	flagFPS        int
	flagPreset     string
	flagCRF        int
	flagGPU        bool
	flagAudio      bool
	flagSample     string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a storyboard to a video file",
	RunE:  runRender,
}

func init() {
	f := renderCmd.Flags()
	f.StringVar(&flagOsuPath, "osu", "", "path to the companion .osu file (used to locate the .osb and audio)")
	f.StringVar(&flagStoryboard, "storyboard", "", "explicit path to the .osb storyboard (overrides the one derived from --osu)")
	f.StringVar(&flagOutputPath, "output", "", "output video path")
	f.IntVar(&flagWidth, "width", 0, "output width")
	f.IntVar(&flagHeight, "height", 0, "output height")
	f.IntVar(&flagFPS, "fps", 0, "output frame rate")
	f.StringVar(&flagPreset, "preset", "", "x264 encoder preset")
	f.IntVar(&flagCRF, "crf", -1, "x264 constant rate factor")
	f.BoolVar(&flagGPU, "gpu", false, "use the single GPU-context compositor instead of the CPU worker pool")
	f.BoolVar(&flagAudio, "audio", false, "mux the companion audio into the finished video")
	f.StringVar(&flagSample, "sample", "", "sampling method: linear or nearest")
}

// bindRenderFlags layers cobra flags over the YAML file and built-in
// defaults (spec SPEC_FULL §10.3: flags > YAML file > built-in defaults).
func bindRenderFlags(v *viper.Viper, cmd *cobra.Command) {
	binds := map[string]string{
		"path.osu_path":         "osu",
		"path.output_path":      "output",
		"renderer.width":        "width",
		"renderer.height":       "height",
		"renderer.fps":          "fps",
		"renderer.encoder_preset": "preset",
		"renderer.crf":          "crf",
		"renderer.use_gpu":      "gpu",
		"renderer.enable_audio": "audio",
		"renderer.sample_method": "sample",
	}
	for key, flag := range binds {
		if cmd.Flags().Changed(flag) {
			_ = v.BindPFlag(key, cmd.Flags().Lookup(flag))
		}
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	v := config.New(cfgFile)
	bindRenderFlags(v, cmd)

	cfg, err := config.Load(v, nil)
	if err != nil {
		return fmt.Errorf("osbrender: config: %w", err)
	}

	storyboardPath := flagStoryboard
	if storyboardPath == "" {
		if cfg.Path.OsuPath == "" {
			return fmt.Errorf("osbrender: no --osu or --storyboard given")
		}
		storyboardPath = osufile.DeriveStoryboardPath(cfg.Path.OsuPath)
	}
	baseDir := filepath.Dir(storyboardPath)

	log.WithField("path", storyboardPath).Info("parsing storyboard")
	parser := storyboard.NewParser(nil)
	sb, err := parser.ParseFile(storyboardPath)
	if err != nil {
		return fmt.Errorf("osbrender: storyboard: %w", err)
	}
	if n := parser.ErrorsSeen(); n > 0 {
		log.WithField("count", n).Warn("storyboard had malformed lines, skipped and continuing")
	}

	eng := engine.New(sb)
	duration := videoDuration(sb)
	log.WithField("duration_ms", duration).Info("computed video duration")

	frameTimes := driver.Frames(duration, cfg.Renderer.FPS)
	log.WithField("frames", len(frameTimes)).Info("scheduled frames")

	enc, err := driver.NewFFmpegEncoder(driver.EncoderOptions{
		Width: cfg.Renderer.Width, Height: cfg.Renderer.Height,
		FPS: cfg.Renderer.FPS, Preset: cfg.Renderer.EncoderPreset,
		CRF: cfg.Renderer.CRF, OutputPath: cfg.Path.OutputPath,
	}, nil)
	if err != nil {
		return fmt.Errorf("osbrender: %w", err)
	}

	d := driver.New(eng, baseDir, driver.Config{
		Width: cfg.Renderer.Width, Height: cfg.Renderer.Height,
		FPS:    cfg.Renderer.FPS,
		Sample: sampleMethod(cfg.Renderer.SampleMethod),
		OnProgress: func(done, total int) {
			log.WithField("frame", done).WithField("total", total).Info("rendering")
		},
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Warn("stop requested, finishing current work cooperatively")
		d.Stop()
	}()

	var renderErr error
	if cfg.Renderer.UseGPU {
		loader := assets.NewLoader(baseDir, nil)
		gc := gpu.New(eng, loader, cfg.Renderer.Width, cfg.Renderer.Height)
		renderErr = d.RenderGPU(gc, enc, frameTimes)
	} else {
		renderErr = d.RenderCPU(enc, frameTimes)
	}

	waitErr := enc.Wait()
	if renderErr != nil {
		return fmt.Errorf("osbrender: render: %w", renderErr)
	}
	if waitErr != nil {
		return fmt.Errorf("osbrender: %w", waitErr)
	}

	if d.Stopped() {
		log.Warn("rendering was stopped before completion")
		return nil
	}

	log.WithField("path", cfg.Path.OutputPath).Info("rendering completed successfully")

	if cfg.Renderer.EnableAudio && cfg.Path.OsuPath != "" {
		audioName := osufile.AudioFilename(cfg.Path.OsuPath)
		if audioName != "" {
			audioPath := filepath.Join(baseDir, audioName)
			if err := driver.MuxAudio(cfg.Path.OutputPath, audioPath, nil); err != nil {
				log.WithError(err).Warn("audio mux failed, silent video retained")
			}
		}
	}
	return nil
}

// videoDuration returns max(lifeEnd) across every layer, including Fail,
// matching jobs.py's _get_video_duration (spec §4.5 "Duration defaults to
// max(lifeEnd) over all layers").
func videoDuration(sb *storyboard.Storyboard) int {
	maxEnd := 0
	for _, l := range storyboard.AllLayers() {
		for _, obj := range sb.Objects(l) {
			if obj.LifeEnd > maxEnd {
				maxEnd = obj.LifeEnd
			}
		}
	}
	return maxEnd
}

func sampleMethod(name string) compositor.SampleMethod {
	if name == "nearest" {
		return compositor.SampleNearest
	}
	return compositor.SampleLinear
}
