package driver

import (
	"errors"
	"sync"
	"testing"

	"github.com/Speechless-10308/osb-render/internal/compositor"
	"github.com/Speechless-10308/osb-render/internal/engine"
	"github.com/Speechless-10308/osb-render/internal/storyboard"
)

func TestFramesCountAndSpacing(t *testing.T) {
	times := Frames(1000, 60)
	want := 1000*60/1000 + 1
	if len(times) != want {
		t.Fatalf("len = %d, want %d", len(times), want)
	}
	if times[0] != 0 {
		t.Errorf("times[0] = %d, want 0", times[0])
	}
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			t.Fatalf("times not monotonic at %d: %d < %d", i, times[i], times[i-1])
		}
	}
}

// recordingEncoder captures frames written to it, in the order Write is
// called, and records whether Close/Wait were invoked.
type recordingEncoder struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	waited bool
	failAt int // Write returns an error on the failAt'th call (0 = never)
	calls  int
}

func (e *recordingEncoder) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failAt != 0 && e.calls == e.failAt {
		return 0, errors.New("synthetic write failure")
	}
	cp := append([]byte(nil), p...)
	e.frames = append(e.frames, cp)
	return len(p), nil
}

func (e *recordingEncoder) Close() error { e.closed = true; return nil }
func (e *recordingEncoder) Wait() error  { e.waited = true; return nil }

func (e *recordingEncoder) snapshot() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]byte, len(e.frames))
	copy(out, e.frames)
	return out
}

func fadeStoryboard() *engine.Engine {
	sb := &storyboard.Storyboard{}
	sb.AddObject(&storyboard.SBObject{
		Kind: storyboard.KindSprite, Layer: storyboard.LayerBackground,
		Origin: storyboard.OriginTopLeft, Filepath: "missing.png",
		Commands: []storyboard.TopCommand{{Cmd: storyboard.Command{
			Type: storyboard.CmdFade, StartTime: 0, EndTime: 1000,
			Params: [6]float64{1, 1},
		}}},
	})
	return engine.New(sb)
}

func TestRenderCPUWritesEveryFrameAcrossChunks(t *testing.T) {
	eng := fadeStoryboard()
	d := New(eng, t.TempDir(), Config{Width: 16, Height: 16, FPS: 60, Sample: compositor.SampleNearest})

	times := Frames(1000, 60) // spans several chunkSize=10 boundaries
	enc := &recordingEncoder{}
	if err := d.RenderCPU(enc, times); err != nil {
		t.Fatalf("RenderCPU: %v", err)
	}

	frames := enc.snapshot()
	if len(frames) != len(times) {
		t.Fatalf("wrote %d frames, want %d", len(frames), len(times))
	}
	frameSize := 16 * 16 * 4
	for i, f := range frames {
		if len(f) != frameSize {
			t.Fatalf("frame %d size = %d, want %d", i, len(f), frameSize)
		}
	}
}

func TestRenderCPUStopIsCooperative(t *testing.T) {
	eng := fadeStoryboard()
	d := New(eng, t.TempDir(), Config{Width: 8, Height: 8, FPS: 60, Sample: compositor.SampleNearest})
	d.Stop()

	times := Frames(2000, 60)
	enc := &recordingEncoder{}
	if err := d.RenderCPU(enc, times); err != nil {
		t.Fatalf("RenderCPU: %v", err)
	}
	if len(enc.snapshot()) != 0 {
		t.Errorf("expected no frames written after Stop, got %d", len(enc.snapshot()))
	}
}

func TestRenderCPUPropagatesWriteError(t *testing.T) {
	eng := fadeStoryboard()
	d := New(eng, t.TempDir(), Config{Width: 8, Height: 8, FPS: 60, Sample: compositor.SampleNearest})

	times := Frames(500, 60)
	enc := &recordingEncoder{failAt: 2}
	if err := d.RenderCPU(enc, times); err == nil {
		t.Fatal("expected error from failing encoder")
	}
}

// fakeGPUCompositor returns a distinct single-byte-repeated frame per call,
// keyed off the query time, so ordering is observable.
type fakeGPUCompositor struct {
	width, height int
}

func (f *fakeGPUCompositor) Composite(t int) []byte {
	buf := make([]byte, f.width*f.height*4)
	for i := range buf {
		buf[i] = byte(t % 256)
	}
	return buf
}

func TestRenderGPUStreamsInTimeOrder(t *testing.T) {
	d := New(engine.New(&storyboard.Storyboard{}), t.TempDir(), Config{Width: 4, Height: 4})

	times := []int{0, 16, 33, 50}
	comp := &fakeGPUCompositor{width: 4, height: 4}
	enc := &recordingEncoder{}
	if err := d.RenderGPU(comp, enc, times); err != nil {
		t.Fatalf("RenderGPU: %v", err)
	}

	frames := enc.snapshot()
	if len(frames) != len(times) {
		t.Fatalf("wrote %d frames, want %d", len(frames), len(times))
	}
	for i, tm := range times {
		if frames[i][0] != byte(tm%256) {
			t.Errorf("frame %d = %d, want %d", i, frames[i][0], tm%256)
		}
	}
}

func TestRenderGPUStopsBetweenFrames(t *testing.T) {
	d := New(engine.New(&storyboard.Storyboard{}), t.TempDir(), Config{Width: 2, Height: 2})
	comp := &fakeGPUCompositor{width: 2, height: 2}
	enc := &recordingEncoder{}

	times := Frames(5000, 60)
	// Stop before rendering begins — simulates a stop requested right after
	// start, which must still leave output empty and untouched.
	d.Stop()
	if err := d.RenderGPU(comp, enc, times); err != nil {
		t.Fatalf("RenderGPU: %v", err)
	}
	if len(enc.snapshot()) != 0 {
		t.Error("expected no frames after immediate stop")
	}
}

func TestProgressCallbackCadence(t *testing.T) {
	eng := fadeStoryboard()
	var mu sync.Mutex
	var calls []int
	d := New(eng, t.TempDir(), Config{
		Width: 4, Height: 4, FPS: 60, Sample: compositor.SampleNearest,
		OnProgress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, done)
		},
	})

	times := Frames(2000, 60) // 121 frames, spans several progressEvery=30 boundaries
	enc := &recordingEncoder{}
	if err := d.RenderCPU(enc, times); err != nil {
		t.Fatalf("RenderCPU: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) == 0 {
		t.Fatal("expected at least one progress callback")
	}
	if calls[len(calls)-1] != len(times) {
		t.Errorf("final progress = %d, want %d", calls[len(calls)-1], len(times))
	}
}
