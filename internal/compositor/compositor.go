// Package compositor implements the frame compositor (spec §4.4): lifetime
// bucketing, per-object affine transform, tint/opacity modulation, and
// source-over/additive blending onto an opaque RGBA canvas.
package compositor

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/Speechless-10308/osb-render/internal/assets"
	"github.com/Speechless-10308/osb-render/internal/engine"
	"github.com/Speechless-10308/osb-render/internal/storyboard"
	"github.com/Speechless-10308/osb-render/internal/xform"
)

// SampleMethod selects the interpolator used for the affine warp.
type SampleMethod int

const (
	SampleLinear SampleMethod = iota
	SampleNearest
)

// Canvas is an opaque, straight-alpha RGBA8888 frame buffer, row-major,
// top-to-bottom — exactly the layout the encoder bridge streams to ffmpeg.
type Canvas struct {
	Pix           []uint8
	Width, Height int
}

// NewCanvas allocates a canvas cleared to opaque black, matching the
// compositor's required background (spec §4.4 step 1).
func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Pix: make([]uint8, w*h*4), Width: w, Height: h}
	for i := 0; i < len(c.Pix); i += 4 {
		c.Pix[i+3] = 255
	}
	return c
}

func (c *Canvas) clear() {
	for i := 0; i < len(c.Pix); i += 4 {
		c.Pix[i+0] = 0
		c.Pix[i+1] = 0
		c.Pix[i+2] = 0
		c.Pix[i+3] = 255
	}
}

// Compositor binds an Engine and AssetLoader to a fixed output resolution.
// It holds mutable per-invocation scratch (the ObjectState it fills per
// object, and the asset cache inside its Loader) next to a bucket index
// built once in New, and must not be shared across goroutines — each Frame
// Driver worker constructs its own (spec §5).
type Compositor struct {
	eng    *engine.Engine
	assets *assets.Loader
	width  int
	height int
	sample SampleMethod

	scaleS  float64
	offsetX float64
	offsetY float64

	buckets [5]map[int][]*storyboard.SBObject

	state storyboard.ObjectState
}

// drawLayers is the draw order; Fail is deliberately excluded (spec §4.4,
// §9 Open Questions — preserved from the source, possibly a bug there).
var drawLayers = []storyboard.Layer{
	storyboard.LayerBackground,
	storyboard.LayerPass,
	storyboard.LayerForeground,
	storyboard.LayerOverlay,
}

// New builds a Compositor for the given output resolution, bucketing every
// object in eng's storyboard by 1-second lifetime intervals.
func New(eng *engine.Engine, loader *assets.Loader, width, height int, sample SampleMethod) *Compositor {
	c := &Compositor{
		eng:     eng,
		assets:  loader,
		width:   width,
		height:  height,
		sample:  sample,
		scaleS:  float64(height) / 480.0,
		offsetY: 0,
	}
	c.offsetX = (float64(width) - 640*c.scaleS) / 2

	sb := eng.Storyboard()
	for _, l := range storyboard.AllLayers() {
		buckets := make(map[int][]*storyboard.SBObject)
		for _, obj := range sb.Objects(l) {
			if len(obj.Commands) == 0 {
				continue
			}
			startSec := obj.LifeStart / 1000
			endSec := obj.LifeEnd / 1000
			for s := startSec; s <= endSec; s++ {
				buckets[s] = append(buckets[s], obj)
			}
		}
		c.buckets[l] = buckets
	}
	return c
}

// Composite renders the frame at time t onto a fresh canvas.
func (c *Compositor) Composite(t int) *Canvas {
	canvas := NewCanvas(c.width, c.height)
	c.CompositeInto(t, canvas)
	return canvas
}

// CompositeInto renders the frame at time t onto a caller-owned canvas,
// reusing its buffer (clearing it first) — avoids a per-frame allocation
// when the driver already owns a scratch canvas.
func (c *Compositor) CompositeInto(t int, canvas *Canvas) {
	canvas.clear()
	second := t / 1000

	for _, layer := range drawLayers {
		objs := c.buckets[layer][second]
		for _, obj := range objs {
			c.drawObject(canvas, obj, t)
		}
	}
}

func (c *Compositor) drawObject(canvas *Canvas, obj *storyboard.SBObject, t int) {
	if !c.eng.State(obj, t, &c.state) {
		return
	}
	st := &c.state
	if st.Opacity < 0.001 {
		return
	}
	if math.Abs(st.ScaleVec.X) < 0.001 && math.Abs(st.ScaleVec.Y) < 0.001 {
		return
	}

	img := c.assets.Load(st.ImagePath)
	if img.IsPlaceholder() {
		return
	}

	sx := st.ScaleVec.X * c.scaleS
	sy := st.ScaleVec.Y * c.scaleS
	if st.FlipH {
		sx = -sx
	}
	if st.FlipV {
		sy = -sy
	}

	ox, oy := obj.Origin.Offset(float64(img.Width), float64(img.Height))
	px := c.offsetX + st.Position.X*c.scaleS
	py := c.offsetY + st.Position.Y*c.scaleS

	forward := xform.ForObject(px, py, sx, sy, st.Rotation, ox, oy)

	destRect := boundingBox(forward, img.Width, img.Height, c.width, c.height)
	if destRect.Empty() {
		return
	}

	scratch := image.NewNRGBA(destRect)
	m := f64.Aff3{forward[0], forward[2], forward[4], forward[1], forward[3], forward[5]}

	interp := xdraw.Interpolator(xdraw.BiLinear)
	if c.sample == SampleNearest {
		interp = xdraw.NearestNeighbor
	}
	src := img.AsNRGBA()
	interp.Transform(scratch, m, src, src.Bounds(), xdraw.Src, nil)

	blend(canvas, scratch, st)
}

// boundingBox transforms the source's four corners by m and returns the
// clipped integer bounding rectangle on the canvas.
func boundingBox(m xform.Affine, w, h, canvasW, canvasH int) image.Rectangle {
	corners := [4][2]float64{{0, 0}, {float64(w), 0}, {0, float64(h)}, {float64(w), float64(h)}}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range corners {
		x, y := xform.Apply(m, p[0], p[1])
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	r := image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
	return r.Intersect(image.Rect(0, 0, canvasW, canvasH))
}

// blend composites scratch (straight-alpha, already geometrically
// transformed) onto canvas, applying tint and opacity, then either
// source-over or additive blending per state (spec §4.4 "Painting").
func blend(canvas *Canvas, scratch *image.NRGBA, st *storyboard.ObjectState) {
	tintR := st.TintR / 255.0
	tintG := st.TintG / 255.0
	tintB := st.TintB / 255.0
	tinted := st.TintR != 255 || st.TintG != 255 || st.TintB != 255

	rect := scratch.Rect
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		if y < 0 || y >= canvas.Height {
			continue
		}
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if x < 0 || x >= canvas.Width {
				continue
			}
			si := scratch.PixOffset(x, y)
			sr := float64(scratch.Pix[si+0])
			sg := float64(scratch.Pix[si+1])
			sb := float64(scratch.Pix[si+2])
			sa := float64(scratch.Pix[si+3]) / 255.0

			if tinted {
				sr *= tintR
				sg *= tintG
				sb *= tintB
			}
			sa *= st.Opacity
			if sa <= 0 {
				continue
			}

			di := (y*canvas.Width + x) * 4
			dr := float64(canvas.Pix[di+0])
			dg := float64(canvas.Pix[di+1])
			db := float64(canvas.Pix[di+2])
			da := float64(canvas.Pix[di+3]) / 255.0

			if st.Additive {
				canvas.Pix[di+0] = clampByte(dr + sr*sa)
				canvas.Pix[di+1] = clampByte(dg + sg*sa)
				canvas.Pix[di+2] = clampByte(db + sb*sa)
				canvas.Pix[di+3] = clampByte(da * 255)
			} else {
				outR := sr*sa + dr*(1-sa)
				outG := sg*sa + dg*(1-sa)
				outB := sb*sa + db*(1-sa)
				outA := sa + da*(1-sa)
				canvas.Pix[di+0] = clampByte(outR)
				canvas.Pix[di+1] = clampByte(outG)
				canvas.Pix[di+2] = clampByte(outB)
				canvas.Pix[di+3] = clampByte(outA * 255)
			}
		}
	}
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
