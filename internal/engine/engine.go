// Package engine implements the stateless time-query state engine (spec
// §4.2): lifetime analysis, performed once per storyboard, and state(obj, t)
// queries evaluated fresh on every call.
package engine

import (
	"strconv"
	"strings"

	"github.com/Speechless-10308/osb-render/internal/easing"
	"github.com/Speechless-10308/osb-render/internal/storyboard"
)

// Engine binds a Storyboard and exposes per-object time queries. It performs
// lifetime analysis once, at construction, and is safe for concurrent
// read-only use across goroutines/workers thereafter — mirroring the
// teacher's "immutable after build" posture for its scene graph.
type Engine struct {
	sb *storyboard.Storyboard
}

// New analyses every object's lifetime and returns a ready-to-query Engine.
func New(sb *storyboard.Storyboard) *Engine {
	e := &Engine{sb: sb}
	for _, l := range storyboard.AllLayers() {
		for _, obj := range sb.Objects(l) {
			analyzeLifetime(obj)
		}
	}
	return e
}

// Storyboard returns the bound storyboard.
func (e *Engine) Storyboard() *storyboard.Storyboard {
	return e.sb
}

// analyzeLifetime folds over an object's top-level commands once, computing
// lifeStart/lifeEnd and each loop's subMax, then widens any P command whose
// start equals its end to the object's full lifetime.
func analyzeLifetime(obj *storyboard.SBObject) {
	if len(obj.Commands) == 0 {
		obj.LifeStart, obj.LifeEnd = 0, 0
		return
	}

	lifeStart := int(^uint(0) >> 1) // max int
	lifeEnd := -lifeStart - 1

	for i := range obj.Commands {
		tc := &obj.Commands[i]
		var start, end int
		if tc.IsLoop {
			subMax := 0
			for _, c := range tc.Loop.Children {
				if c.EndTime > subMax {
					subMax = c.EndTime
				}
			}
			tc.Loop.SubMax = subMax
			start = tc.Loop.StartTime
			end = tc.Loop.StartTime + subMax*tc.Loop.LoopCount
		} else {
			start = tc.Cmd.StartTime
			end = tc.Cmd.EndTime
		}
		if start < lifeStart {
			lifeStart = start
		}
		if end > lifeEnd {
			lifeEnd = end
		}
	}

	obj.LifeStart, obj.LifeEnd = lifeStart, lifeEnd

	for i := range obj.Commands {
		tc := &obj.Commands[i]
		if !tc.IsLoop && tc.Cmd.Type == storyboard.CmdParameter && tc.Cmd.StartTime == tc.Cmd.EndTime {
			tc.Cmd.StartTime = lifeStart
			tc.Cmd.EndTime = lifeEnd
		}
	}
}

// State evaluates obj's visual state at time t (milliseconds), writing into
// out. It returns false if the object is absent at t (it has no commands,
// t is outside its lifetime, or opacity decayed below the visibility
// threshold). When opacity is the reason, out holds the evaluated state;
// otherwise out is left as it was. Callers should allocate out once and
// reuse it across queries to avoid per-frame allocation (spec §9 "Large
// storyboards").
func (e *Engine) State(obj *storyboard.SBObject, t int, out *storyboard.ObjectState) bool {
	if len(obj.Commands) == 0 {
		return false
	}
	if t < obj.LifeStart || t > obj.LifeEnd {
		return false
	}

	out.Reset(obj)

	for i := range obj.Commands {
		tc := &obj.Commands[i]
		if tc.IsLoop {
			applyLoop(&tc.Loop, t, out)
		} else {
			applyCommand(&tc.Cmd, t, out)
		}
	}

	if out.Opacity < 0.001 {
		return false
	}

	if obj.Kind == storyboard.KindAnimation {
		applyAnimationFrame(obj, t, out)
	}

	return true
}

func applyLoop(loop *storyboard.LoopCommand, t int, out *storyboard.ObjectState) {
	period := loop.SubMax
	totalSpan := period * loop.LoopCount
	end := loop.StartTime + totalSpan
	if t < loop.StartTime || t > end {
		return
	}
	local := t - loop.StartTime
	if period > 0 {
		local = local % period
	} else {
		local = 0
	}
	for i := range loop.Children {
		applyCommand(&loop.Children[i], local, out)
	}
}

func lerp(a, b, u float64) float64 { return a + (b-a)*u }

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// applyCommand applies a single primitive command at time t, mutating out
// in place. Commands that haven't started yet are no-ops; commands already
// finished clamp progress to 1 rather than being skipped, so their final
// value sticks (spec §4.2 "Applying a primitive command"). P commands are
// dispatched before the start-time gate below: spec §4.2 bounds a P
// command only by its end time ("if t ≤ endTime, set the flag"), with no
// start-time condition, matching state_engine.py's _process_commands
// calling _apply_parameter unconditionally — only that function's own
// end-time check (applyParameter below) bounds it.
func applyCommand(c *storyboard.Command, t int, out *storyboard.ObjectState) {
	if c.Type == storyboard.CmdParameter {
		applyParameter(c, t, out)
		return
	}
	if t < c.StartTime {
		return
	}

	var u float64
	if t >= c.EndTime || c.StartTime == c.EndTime {
		u = 1
	} else {
		raw := float64(t-c.StartTime) / float64(c.EndTime-c.StartTime)
		u = easing.Apply(c.Easing, raw)
	}

	p := c.Params
	switch c.Type {
	case storyboard.CmdFade:
		out.Opacity = lerp(p[0], p[1], u)
	case storyboard.CmdMove:
		out.Position.X = lerp(p[0], p[2], u)
		out.Position.Y = lerp(p[1], p[3], u)
	case storyboard.CmdMoveX:
		out.Position.X = lerp(p[0], p[1], u)
	case storyboard.CmdMoveY:
		out.Position.Y = lerp(p[0], p[1], u)
	case storyboard.CmdScale:
		s := lerp(p[0], p[1], u)
		out.ScaleVec = storyboard.Vector2{X: s, Y: s}
	case storyboard.CmdVectorScale:
		out.ScaleVec.X = lerp(p[0], p[2], u)
		out.ScaleVec.Y = lerp(p[1], p[3], u)
	case storyboard.CmdRotate:
		out.Rotation = lerp(p[0], p[1], u)
	case storyboard.CmdColor:
		out.TintR = clamp255(lerp(p[0], p[3], u))
		out.TintG = clamp255(lerp(p[1], p[4], u))
		out.TintB = clamp255(lerp(p[2], p[5], u))
	}
}

// applyParameter sets the flag named by c.Flag as long as t has not yet
// passed c.EndTime, and never clears it — matching the source's behaviour
// verbatim (spec §9 Open Questions: a future revision may want P to respect
// endTime as a deactivation boundary; not implemented here).
func applyParameter(c *storyboard.Command, t int, out *storyboard.ObjectState) {
	if t > c.EndTime {
		return
	}
	switch c.Flag {
	case storyboard.ParamFlipH:
		out.FlipH = true
	case storyboard.ParamFlipV:
		out.FlipV = true
	case storyboard.ParamAdditive:
		out.Additive = true
	}
}

// applyAnimationFrame computes frameIndex per spec §4.2's LoopOnce/
// LoopForever rules and rewrites imagePath by inserting the frame index
// between the filepath's stem and its final extension.
func applyAnimationFrame(obj *storyboard.SBObject, t int, out *storyboard.ObjectState) {
	runTime := t - obj.LifeStart
	if runTime < 0 {
		runTime = 0
	}
	total := obj.FrameDelay * obj.FrameCount

	var frameIndex int
	if obj.AnimLoop == storyboard.LoopOnce {
		if total <= 0 || runTime >= total {
			frameIndex = obj.FrameCount - 1
		} else {
			frameIndex = runTime / obj.FrameDelay
		}
	} else {
		if total <= 0 {
			frameIndex = 0
		} else {
			frameIndex = (runTime % total) / obj.FrameDelay
		}
	}
	if frameIndex < 0 {
		frameIndex = 0
	}

	out.FrameIndex = frameIndex
	out.ImagePath = framePath(obj.Filepath, frameIndex)
}

func framePath(filepath string, frameIndex int) string {
	idx := strings.LastIndexByte(filepath, '.')
	if idx < 0 {
		return filepath + strconv.Itoa(frameIndex)
	}
	return filepath[:idx] + strconv.Itoa(frameIndex) + filepath[idx:]
}
