// Package gpu implements the single-GPU-context compositor backend (spec
// §4.5 "Single GPU context"): one compositor drives a GPU-backed surface
// serially, using ebiten.Image/DrawImageOptions the same way the teacher's
// scene graph (render.go, willow.go's BlendMode.EbitenBlend) drives its live
// per-tick draw, repointed here at one-shot offline frame queries.
package gpu

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/Speechless-10308/osb-render/internal/assets"
	"github.com/Speechless-10308/osb-render/internal/engine"
	"github.com/Speechless-10308/osb-render/internal/storyboard"
	"github.com/Speechless-10308/osb-render/internal/xform"
)

// additiveBlend replicates the source-unmodified-destination-alpha additive
// formula from spec §4.4: out.rgb = dst.rgb + src.rgb*srcA, out.a = dst.a.
// ebiten's image data is premultiplied, so the source factor is One (already
// alpha-scaled), not SourceAlpha.
var additiveBlend = ebiten.Blend{
	BlendFactorSourceRGB:        ebiten.BlendFactorOne,
	BlendFactorSourceAlpha:      ebiten.BlendFactorZero,
	BlendFactorDestinationRGB:   ebiten.BlendFactorOne,
	BlendFactorDestinationAlpha: ebiten.BlendFactorOne,
	BlendOperationRGB:           ebiten.BlendOperationAdd,
	BlendOperationAlpha:         ebiten.BlendOperationAdd,
}

// imageCache keeps one *ebiten.Image per decoded asset path, uploaded to
// the GPU lazily and reused across frames — mirrors the CPU compositor's
// per-worker assets.Loader cache, one level up the stack.
type imageCache struct {
	loader *assets.Loader
	gpu    map[string]*ebiten.Image
}

func newImageCache(loader *assets.Loader) *imageCache {
	return &imageCache{loader: loader, gpu: make(map[string]*ebiten.Image)}
}

func (c *imageCache) get(path string) (*ebiten.Image, *assets.Image) {
	img := c.loader.Load(path)
	if img.IsPlaceholder() {
		return nil, img
	}
	if gi, ok := c.gpu[path]; ok {
		return gi, img
	}
	gi := ebiten.NewImageFromImage(img.AsNRGBA())
	c.gpu[path] = gi
	return gi, img
}

// Compositor composites frames on the GPU, one at a time, on whichever
// goroutine owns the ebiten graphics context (spec §4.5: "one compositor on
// the main thread").
type Compositor struct {
	eng    *engine.Engine
	cache  *imageCache
	width  int
	height int

	scaleS  float64
	offsetX float64
	offsetY float64

	canvas *ebiten.Image
	state  storyboard.ObjectState
}

var drawLayers = []storyboard.Layer{
	storyboard.LayerBackground,
	storyboard.LayerPass,
	storyboard.LayerForeground,
	storyboard.LayerOverlay,
}

// New builds a GPU Compositor for the given output resolution.
func New(eng *engine.Engine, loader *assets.Loader, width, height int) *Compositor {
	c := &Compositor{
		eng:    eng,
		cache:  newImageCache(loader),
		width:  width,
		height: height,
		scaleS: float64(height) / 480.0,
		canvas: ebiten.NewImage(width, height),
	}
	c.offsetX = (float64(width) - 640*c.scaleS) / 2
	return c
}

// Composite renders the frame at time t and reads back straight-alpha
// RGBA8888 pixels, row-major, top-to-bottom — the same layout the CPU
// compositor's Canvas produces.
func (c *Compositor) Composite(t int) []byte {
	c.canvas.Fill(color.RGBA{A: 255})

	sb := c.eng.Storyboard()
	for _, layer := range drawLayers {
		for _, obj := range sb.Objects(layer) {
			if t < obj.LifeStart || t > obj.LifeEnd {
				continue
			}
			c.drawObject(obj, t)
		}
	}

	out := make([]byte, c.width*c.height*4)
	c.canvas.ReadPixels(out)
	unpremultiply(out)
	return out
}

func (c *Compositor) drawObject(obj *storyboard.SBObject, t int) {
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

	gi, img := c.cache.get(st.ImagePath)
	if gi == nil {
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

	m := xform.ForObject(px, py, sx, sy, st.Rotation, ox, oy)

	var op ebiten.DrawImageOptions
	op.GeoM.SetElement(0, 0, m[0])
	op.GeoM.SetElement(1, 0, m[1])
	op.GeoM.SetElement(0, 1, m[2])
	op.GeoM.SetElement(1, 1, m[3])
	op.GeoM.SetElement(0, 2, m[4])
	op.GeoM.SetElement(1, 2, m[5])

	a := float32(st.Opacity)
	op.ColorScale.Scale(float32(st.TintR/255)*a, float32(st.TintG/255)*a, float32(st.TintB/255)*a, a)

	if st.Additive {
		op.Blend = additiveBlend
	} else {
		op.Blend = ebiten.BlendSourceOver
	}

	c.canvas.DrawImage(gi, &op)
}

// unpremultiply converts ebiten's premultiplied ReadPixels output back to
// the straight alpha the encoder bridge expects (spec §6).
func unpremultiply(pix []byte) {
	for i := 0; i < len(pix); i += 4 {
		a := pix[i+3]
		if a == 0 || a == 255 {
			continue
		}
		pix[i+0] = unpremultiplyChannel(pix[i+0], a)
		pix[i+1] = unpremultiplyChannel(pix[i+1], a)
		pix[i+2] = unpremultiplyChannel(pix[i+2], a)
	}
}

func unpremultiplyChannel(c, a byte) byte {
	v := (int(c) * 255) / int(a)
	if v > 255 {
		v = 255
	}
	return byte(v)
}
