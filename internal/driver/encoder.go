package driver

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// FFmpegEncoder spawns ffmpeg as a child process reading rawvideo RGBA8888
// frames from its stdin (spec §6 "Encoder interface"). It is the sole
// writer of that pipe (spec §5 "Shared-resource policy").
type FFmpegEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	log    *logrus.Entry
	closed bool
}

// EncoderOptions mirrors the renderer settings that shape the ffmpeg
// invocation (spec §6 "Configuration").
type EncoderOptions struct {
	Width, Height int
	FPS           int
	Preset        string
	CRF           int
	OutputPath    string
}

// buildArgs constructs the argument list from spec §6's literal shape:
//
//	ffmpeg -y -hide_banner -loglevel error
//	  -f rawvideo -vcodec rawvideo
//	  -s {W}x{H} -pix_fmt rgba -r {fps}
//	  -i -
//	  -c:v libx264 -preset {preset} -pix_fmt yuv420p -crf {crf}
//	  {outputPath}
func buildArgs(o EncoderOptions) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "rawvideo", "-vcodec", "rawvideo",
		"-s", fmt.Sprintf("%dx%d", o.Width, o.Height),
		"-pix_fmt", "rgba",
		"-r", fmt.Sprintf("%d", o.FPS),
		"-i", "-",
		"-c:v", "libx264",
		"-preset", o.Preset,
		"-pix_fmt", "yuv420p",
		"-crf", fmt.Sprintf("%d", o.CRF),
		o.OutputPath,
	}
}

// NewFFmpegEncoder spawns ffmpeg and returns an Encoder wrapping its stdin.
// A spawn failure is fatal before render (spec §7).
func NewFFmpegEncoder(o EncoderOptions, log *logrus.Entry) (*FFmpegEncoder, error) {
	if log == nil {
		log = logrus.WithField("component", "driver.encoder")
	}
	args := buildArgs(o)
	cmd := exec.Command("ffmpeg", args...)
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder: stdin pipe: %w", err)
	}
	log.WithField("args", args).Info("starting ffmpeg")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("encoder: spawn ffmpeg: %w", err)
	}
	return &FFmpegEncoder{cmd: cmd, stdin: stdin, log: log}, nil
}

// Write streams one frame's raw RGBA8888 bytes to ffmpeg's stdin. A
// non-EOF write error is fatal during render (spec §7); EOF (the encoder
// closed its own input early, e.g. it crashed) is returned as-is so the
// caller can distinguish it if needed.
func (e *FFmpegEncoder) Write(p []byte) (int, error) {
	return e.stdin.Write(p)
}

// Close closes ffmpeg's stdin, signalling end of stream. Safe to call more
// than once.
func (e *FFmpegEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.stdin.Close()
}

// Wait closes stdin (if not already closed) and blocks until ffmpeg exits,
// allowing it to finish writing its trailer even on a cooperative stop
// (spec §5 "Cancellation").
func (e *FFmpegEncoder) Wait() error {
	_ = e.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("encoder: ffmpeg: %w", err)
	}
	return nil
}

// MuxAudio re-muxes audioPath into the finished video at videoPath (spec §6
// "Audio mux"): the video is renamed to a temp file, ffmpeg copies the
// video stream and encodes audio as aac, and the temp file is removed.
// Mirrors jobs.py's _merge_audio. A mux failure is logged, not fatal — the
// silent video produced so far is left in place.
func MuxAudio(videoPath, audioPath string, log *logrus.Entry) error {
	if log == nil {
		log = logrus.WithField("component", "driver.encoder")
	}
	if _, err := os.Stat(audioPath); err != nil {
		log.WithField("audio", audioPath).Warn("no audio to merge or audio file missing")
		return nil
	}

	tempPath := videoPath + ".temp.mp4"
	if err := os.Rename(videoPath, tempPath); err != nil {
		return fmt.Errorf("encoder: rename %q: %w", videoPath, err)
	}

	cmd := exec.Command("ffmpeg", "-y",
		"-i", tempPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		videoPath,
	)
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		log.WithError(err).Warn("audio mux failed")
		if rerr := os.Rename(tempPath, videoPath); rerr != nil {
			log.WithError(rerr).Warn("failed to restore silent video after mux failure")
		}
		return fmt.Errorf("encoder: mux audio: %w", err)
	}

	if err := os.Remove(tempPath); err != nil {
		log.WithError(err).Warn("failed to remove temp video after mux")
	}
	log.Info("audio merged successfully")
	return nil
}
