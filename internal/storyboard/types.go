// Package storyboard holds the immutable data model produced by the parser:
// the layer-indexed object graph that the state engine and compositor read.
package storyboard

// Vector2 is a 2D point or offset in authoring units.
type Vector2 struct {
	X, Y float64
}

// Add returns the pointwise sum of v and o.
func (v Vector2) Add(o Vector2) Vector2 { return Vector2{v.X + o.X, v.Y + o.Y} }

// Sub returns the pointwise difference v - o.
func (v Vector2) Sub(o Vector2) Vector2 { return Vector2{v.X - o.X, v.Y - o.Y} }

// Scale returns v multiplied by a scalar.
func (v Vector2) Scale(s float64) Vector2 { return Vector2{v.X * s, v.Y * s} }

// Layer is an ordered draw bucket. Fail is parsed but never drawn (spec §9
// Open Questions: preserved as-is, possibly a bug in the original).
type Layer uint8

const (
	LayerBackground Layer = iota
	LayerFail
	LayerPass
	LayerForeground
	LayerOverlay
	layerCount
)

var layerNames = map[string]Layer{
	"Background": LayerBackground,
	"Fail":       LayerFail,
	"Pass":       LayerPass,
	"Foreground": LayerForeground,
	"Overlay":    LayerOverlay,
}

// ParseLayer resolves a layer name to its enum value.
func ParseLayer(name string) (Layer, bool) {
	l, ok := layerNames[name]
	return l, ok
}

// Origin is the anchor point on a sprite that aligns with its position.
// Custom is folded into TopLeft per spec §3.
type Origin uint8

const (
	OriginTopLeft Origin = iota
	OriginTopCentre
	OriginTopRight
	OriginCentreLeft
	OriginCentre
	OriginCentreRight
	OriginBottomLeft
	OriginBottomCentre
	OriginBottomRight
	OriginCustom
)

var originNames = map[string]Origin{
	"TopLeft":      OriginTopLeft,
	"TopCentre":    OriginTopCentre,
	"TopRight":     OriginTopRight,
	"CentreLeft":   OriginCentreLeft,
	"Centre":       OriginCentre,
	"CentreRight":  OriginCentreRight,
	"BottomLeft":   OriginBottomLeft,
	"BottomCentre": OriginBottomCentre,
	"BottomRight":  OriginBottomRight,
	"Custom":       OriginCustom,
}

// ParseOrigin resolves an origin name to its enum value.
func ParseOrigin(name string) (Origin, bool) {
	o, ok := originNames[name]
	return o, ok
}

// Offset returns the (ox, oy) anchor offset within an image of size (w, h).
// Custom is treated as TopLeft per spec §3.
func (o Origin) Offset(w, h float64) (ox, oy float64) {
	switch o {
	case OriginTopLeft, OriginCustom:
		return 0, 0
	case OriginTopCentre:
		return w / 2, 0
	case OriginTopRight:
		return w, 0
	case OriginCentreLeft:
		return 0, h / 2
	case OriginCentre:
		return w / 2, h / 2
	case OriginCentreRight:
		return w, h / 2
	case OriginBottomLeft:
		return 0, h
	case OriginBottomCentre:
		return w / 2, h
	case OriginBottomRight:
		return w, h
	default:
		return 0, 0
	}
}

// CommandType identifies a primitive command's kind.
type CommandType uint8

const (
	CmdFade CommandType = iota // F
	CmdMove                    // M
	CmdMoveX                   // MX
	CmdMoveY                   // MY
	CmdScale                   // S
	CmdVectorScale             // V
	CmdRotate                  // R
	CmdColor                   // C
	CmdParameter               // P
)

// ParamFlag is the character carried by a P command.
type ParamFlag byte

const (
	ParamFlipH    ParamFlag = 'H'
	ParamFlipV    ParamFlag = 'V'
	ParamAdditive ParamFlag = 'A'
)

// Command is one primitive timeline event. Params holds the start tuple
// followed by the end tuple, except for CmdParameter whose only "param" is
// stored in Flag.
type Command struct {
	Type      CommandType
	Easing    int
	StartTime int
	EndTime   int
	Params    [6]float64 // only as many as the type needs are meaningful
	Flag      ParamFlag  // valid only when Type == CmdParameter
}

// LoopCommand replays its Children on a repeating local clock. SubMax is the
// period, derived during lifetime analysis as the max child EndTime.
type LoopCommand struct {
	StartTime int
	LoopCount int
	SubMax    int
	Children  []Command
}

// TopCommand is either a bare Command or a LoopCommand — the closed set of
// things that can appear at the top level of an object's command list.
// Exactly one of Cmd/Loop is non-nil-equivalent; IsLoop selects which.
type TopCommand struct {
	IsLoop bool
	Cmd    Command
	Loop   LoopCommand
}

// LoopType controls animation frame wraparound.
type LoopType uint8

const (
	LoopForever LoopType = iota
	LoopOnce
)

// ObjectKind distinguishes Sprite from Animation without a type switch.
type ObjectKind uint8

const (
	KindSprite ObjectKind = iota
	KindAnimation
)

// SBObject is a single storyboard object (Sprite or Animation) together with
// its command list and precomputed lifetime.
type SBObject struct {
	Kind     ObjectKind
	Layer    Layer
	Origin   Origin
	Filepath string
	Position Vector2
	Commands []TopCommand

	// Animation-only fields (zero for Sprite).
	FrameCount  int
	FrameDelay  int
	AnimLoop    LoopType

	// Computed once by the state engine's lifetime analysis.
	LifeStart int
	LifeEnd   int
}

// ObjectState is a snapshot of one object's visual state at one instant.
// Callers should treat this as scratch: allocate once, reuse across queries
// (see engine.Engine.State).
type ObjectState struct {
	Visible    bool
	Position   Vector2
	Opacity    float64
	ScaleVec   Vector2
	Rotation   float64
	TintR      float64
	TintG      float64
	TintB      float64
	FlipH      bool
	FlipV      bool
	Additive   bool
	ImagePath  string
	FrameIndex int
}

// Reset restores the state to an object's defaults (spec §3).
func (s *ObjectState) Reset(obj *SBObject) {
	s.Visible = true
	s.Position = obj.Position
	s.Opacity = 1.0
	s.ScaleVec = Vector2{1, 1}
	s.Rotation = 0
	s.TintR, s.TintG, s.TintB = 255, 255, 255
	s.FlipH = false
	s.FlipV = false
	s.Additive = false
	s.ImagePath = obj.Filepath
	s.FrameIndex = 0
}

// Storyboard is five parallel ordered sequences of objects, indexed by Layer.
// Built once by the parser and immutable thereafter.
type Storyboard struct {
	layers [layerCount][]*SBObject
}

// Objects returns the ordered object list for a layer. The returned slice
// must not be mutated by the caller.
func (sb *Storyboard) Objects(l Layer) []*SBObject {
	return sb.layers[l]
}

// AddObject appends obj to its own layer, preserving parse order.
func (sb *Storyboard) AddObject(obj *SBObject) {
	sb.layers[obj.Layer] = append(sb.layers[obj.Layer], obj)
}

// AllLayers returns every layer in draw-irrelevant enumeration order
// (Background, Fail, Pass, Foreground, Overlay) — used by lifetime analysis,
// which must visit Fail too even though the compositor never draws it.
func AllLayers() []Layer {
	return []Layer{LayerBackground, LayerFail, LayerPass, LayerForeground, LayerOverlay}
}
