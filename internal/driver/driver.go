// Package driver implements the Frame Driver (spec §4.5): it schedules
// frame times, distributes rendering across a CPU worker pool or a single
// GPU context, and streams raw RGBA bytes to an encoder in strictly
// time-ascending order (spec §5 "Ordering").
package driver

import (
	"fmt"
	"io"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Speechless-10308/osb-render/internal/assets"
	"github.com/Speechless-10308/osb-render/internal/compositor"
	"github.com/Speechless-10308/osb-render/internal/engine"
)

// chunkSize matches the prototype's multiprocessing.Pool imap chunksize
// (jobs.py: `pool.imap(render_frame_worker, tasks, chunksize=10)`).
const chunkSize = 10

// progressEvery mirrors the prototype's `if i % 30 == 0` progress cadence.
const progressEvery = 30

// GPUCompositor is the single-context backend (internal/gpu.Compositor)
// driven serially on the caller's goroutine (spec §4.5 "Single GPU
// context"). It is defined here as an interface so this package does not
// import internal/gpu (which in turn would pull ebiten into every caller of
// driver, including tests that only exercise the CPU path).
type GPUCompositor interface {
	Composite(t int) []byte
}

// Encoder is the write side of the Encoder Bridge (spec §6): raw RGBA8888
// frame bytes are written in order, then the encoder is closed and waited
// on. Implementations must tolerate Close being called before all bytes a
// cancelled render would have produced.
type Encoder interface {
	io.WriteCloser
	Wait() error
}

// Frames returns the frame times (spec §4.5): tᵢ = ⌊i·1000/fps⌋ for
// i ∈ [0, N], N = ⌊durationMs·fps/1000⌋.
func Frames(durationMs, fps int) []int {
	n := durationMs * fps / 1000
	times := make([]int, n+1)
	for i := range times {
		times[i] = i * 1000 / fps
	}
	return times
}

// Config controls how a Driver renders.
type Config struct {
	Width, Height int
	FPS           int
	Sample        compositor.SampleMethod
	// OnProgress, if non-nil, is invoked every progressEvery frames and once
	// more at completion with (done, total) — SPEC_FULL §12.3's progress
	// reporting callback.
	OnProgress func(done, total int)
}

// Driver renders a whole storyboard to an Encoder, either across a CPU
// worker pool or through a single GPU context.
type Driver struct {
	eng     *engine.Engine
	baseDir string
	cfg     Config

	stopped atomic.Bool
}

// New returns a Driver bound to eng, loading assets relative to baseDir.
func New(eng *engine.Engine, baseDir string, cfg Config) *Driver {
	return &Driver{eng: eng, baseDir: baseDir, cfg: cfg}
}

// Stop requests cooperative cancellation: it is checked between frames (GPU
// mode) and at chunk boundaries (CPU mode). It never corrupts output — the
// encoder is still closed and awaited by the caller (spec §5
// "Cancellation").
func (d *Driver) Stop() {
	d.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (d *Driver) Stopped() bool {
	return d.stopped.Load()
}

// RenderGPU drives comp serially on the calling goroutine, writing each
// frame's bytes to enc in time order (spec §4.5 "Single GPU context").
func (d *Driver) RenderGPU(comp GPUCompositor, enc Encoder, times []int) error {
	total := len(times)
	for i, t := range times {
		if d.stopped.Load() {
			break
		}
		frame := comp.Composite(t)
		if _, err := enc.Write(frame); err != nil {
			return fmt.Errorf("driver: write frame %d: %w", i, err)
		}
		d.reportProgress(i, total)
	}
	if !d.stopped.Load() {
		d.reportProgress(total-1, total)
	}
	return nil
}

// RenderCPU fans frame rendering out across a worker pool (size
// max(1, NumCPU-1), spec §4.5), each worker owning a private AssetLoader +
// Compositor built from the shared immutable engine. Chunks are dispatched
// to the pool in submission order and results are streamed to enc in that
// same order as soon as each one is ready — a worker may render chunk 3
// while the writer is still waiting on chunk 1, mirroring the prototype's
// `pool.imap(..., chunksize=10)` pipeline (spec §5 "Ordering").
func (d *Driver) RenderCPU(enc Encoder, times []int) error {
	workers := max(1, runtime.NumCPU()-1)
	total := len(times)
	chunks := chunk(times, chunkSize)

	jobs := make(chan int, len(chunks))
	for i := range chunks {
		jobs <- i
	}
	close(jobs)

	resultChans := make([]chan [][]byte, len(chunks))
	for i := range resultChans {
		resultChans[i] = make(chan [][]byte, 1)
	}

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			loader := assets.NewLoader(d.baseDir, nil)
			comp := compositor.New(d.eng, loader, d.cfg.Width, d.cfg.Height, d.cfg.Sample)
			for idx := range jobs {
				if d.stopped.Load() {
					resultChans[idx] <- nil
					continue
				}
				c := chunks[idx]
				frames := make([][]byte, len(c))
				for i, t := range c {
					frames[i] = comp.Composite(t).Pix
				}
				resultChans[idx] <- frames
			}
			return nil
		})
	}

	var writeErr error
	done := 0
writeLoop:
	for _, frames := range resultChans {
		chunkFrames, ok := <-frames
		if !ok || chunkFrames == nil {
			if d.stopped.Load() {
				break writeLoop
			}
			continue
		}
		for _, f := range chunkFrames {
			if _, err := enc.Write(f); err != nil {
				writeErr = fmt.Errorf("driver: write frame %d: %w", done, err)
				break writeLoop
			}
			d.reportProgress(done, total)
			done++
		}
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("driver: worker pool: %w", err)
	}
	if writeErr != nil {
		return writeErr
	}
	if !d.stopped.Load() {
		d.reportProgress(total-1, total)
	}
	return nil
}

func (d *Driver) reportProgress(i, total int) {
	if d.cfg.OnProgress == nil {
		return
	}
	if i%progressEvery == 0 || i == total-1 {
		d.cfg.OnProgress(i+1, total)
	}
}

func chunk(times []int, size int) [][]int {
	var out [][]int
	for i := 0; i < len(times); i += size {
		end := i + size
		if end > len(times) {
			end = len(times)
		}
		out = append(out, times[i:end])
	}
	return out
}
