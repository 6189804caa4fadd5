package driver

import (
	"reflect"
	"testing"
)

func TestBuildArgsMatchesEncoderInterface(t *testing.T) {
	got := buildArgs(EncoderOptions{
		Width: 1280, Height: 720, FPS: 60,
		Preset: "fast", CRF: 20, OutputPath: "out.mp4",
	})
	want := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "rawvideo", "-vcodec", "rawvideo",
		"-s", "1280x720",
		"-pix_fmt", "rgba",
		"-r", "60",
		"-i", "-",
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-crf", "20",
		"out.mp4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildArgs = %v, want %v", got, want)
	}
}

func TestMuxAudioSkipsWhenAudioMissing(t *testing.T) {
	dir := t.TempDir()
	videoPath := dir + "/out.mp4"
	if err := MuxAudio(videoPath, dir+"/no-such-audio.mp3", nil); err != nil {
		t.Errorf("MuxAudio with missing audio should be a no-op, got err: %v", err)
	}
}
