package storyboard

import (
	"strings"
	"testing"
)

func mustParse(t *testing.T, text string) *Storyboard {
	t.Helper()
	p := NewParser(nil)
	sb, err := p.Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return sb
}

func TestParseSpriteObject(t *testing.T) {
	sb := mustParse(t, `[Events]
Sprite,Background,Centre,"sb/bg.png",320,240
`)
	objs := sb.Objects(LayerBackground)
	if len(objs) != 1 {
		t.Fatalf("got %d objects, want 1", len(objs))
	}
	o := objs[0]
	if o.Kind != KindSprite || o.Origin != OriginCentre || o.Filepath != "sb/bg.png" {
		t.Errorf("unexpected object: %+v", o)
	}
	if o.Position != (Vector2{320, 240}) {
		t.Errorf("position = %+v", o.Position)
	}
}

func TestParseAnimationObject(t *testing.T) {
	sb := mustParse(t, `[Events]
Animation,Foreground,TopLeft,"sb/fx.png",0,0,4,100,LoopOnce
`)
	objs := sb.Objects(LayerForeground)
	if len(objs) != 1 {
		t.Fatalf("got %d objects, want 1", len(objs))
	}
	o := objs[0]
	if o.Kind != KindAnimation || o.FrameCount != 4 || o.FrameDelay != 100 || o.AnimLoop != LoopOnce {
		t.Errorf("unexpected animation: %+v", o)
	}
}

func TestIgnoresOutsideEventsSection(t *testing.T) {
	sb := mustParse(t, `[General]
Sprite,Background,Centre,"sb/should_be_ignored.png",0,0
[Events]
Sprite,Background,Centre,"sb/bg.png",0,0
`)
	if len(sb.Objects(LayerBackground)) != 1 {
		t.Fatalf("expected only the Events-section sprite to be parsed")
	}
}

func TestShorthandDuplication(t *testing.T) {
	// F,easing,start,end,value (single tuple) duplicates into start==end hold.
	sb := mustParse(t, `[Events]
Sprite,Background,Centre,"sb/bg.png",0,0
 F,0,1000,2000,0.5
`)
	obj := sb.Objects(LayerBackground)[0]
	if len(obj.Commands) != 1 {
		t.Fatalf("got %d commands, want 1", len(obj.Commands))
	}
	c := obj.Commands[0].Cmd
	if c.Params[0] != 0.5 || c.Params[1] != 0.5 {
		t.Errorf("params = %v, want [0.5 0.5]", c.Params)
	}
}

// Testable property: shorthand equivalence (spec §8).
func TestShorthandEquivalence(t *testing.T) {
	sbShort := mustParse(t, `[Events]
Sprite,Background,Centre,"sb/bg.png",0,0
 F,0,1000,2000,0,1,0
`)
	sbLong := mustParse(t, `[Events]
Sprite,Background,Centre,"sb/bg.png",0,0
 F,0,1000,2000,0,1
 F,0,2000,3000,1,0
`)
	objShort := sbShort.Objects(LayerBackground)[0]
	objLong := sbLong.Objects(LayerBackground)[0]
	if len(objShort.Commands) != 2 {
		t.Fatalf("shorthand expansion produced %d commands, want 2", len(objShort.Commands))
	}
	for i := range objLong.Commands {
		a, b := objShort.Commands[i].Cmd, objLong.Commands[i].Cmd
		if a.StartTime != b.StartTime || a.EndTime != b.EndTime || a.Params != b.Params {
			t.Errorf("command %d: shorthand=%+v explicit=%+v", i, a, b)
		}
	}
}

func TestShorthandRejectsUnderArity(t *testing.T) {
	// F expects arity 1; two raw values means either a dup-hold (if == 1) or
	// a full 2-tuple set (if >= 2); a lone value between 1 and 2 is impossible
	// for arity-1 commands, so exercise this on C (arity 3) with 4 values.
	sb := mustParse(t, `[Events]
Sprite,Background,Centre,"sb/bg.png",0,0
 C,0,0,1000,255,255,255,128
`)
	obj := sb.Objects(LayerBackground)[0]
	if len(obj.Commands) != 0 {
		t.Errorf("expected under-arity command to be rejected, got %d commands", len(obj.Commands))
	}
}

func TestLoopCommandAttachesChildren(t *testing.T) {
	sb := mustParse(t, `[Events]
Sprite,Background,Centre,"sb/bg.png",0,0
 L,1000,3
  F,0,0,500,0,1
  M,0,0,500,0,0,100,100
`)
	obj := sb.Objects(LayerBackground)[0]
	if len(obj.Commands) != 1 || !obj.Commands[0].IsLoop {
		t.Fatalf("expected a single loop command, got %+v", obj.Commands)
	}
	loop := obj.Commands[0].Loop
	if loop.StartTime != 1000 || loop.LoopCount != 3 {
		t.Errorf("loop header = %+v", loop)
	}
	if len(loop.Children) != 2 {
		t.Fatalf("got %d loop children, want 2", len(loop.Children))
	}
}

// A new object header closes any loop left open by the previous object
// (spec §4.1); a stray level-2 line right after it must be ignored rather
// than corrupting the previous object's loop.
func TestNewObjectClosesPreviousLoop(t *testing.T) {
	sb := mustParse(t, `[Events]
Sprite,Background,Centre,"sb/bg.png",0,0
 L,1000,3
  F,0,0,500,0,1
Sprite,Foreground,Centre,"sb/fg.png",0,0
  F,0,0,500,0,1
 F,0,0,1000,0,1
`)
	objs := sb.Objects(LayerBackground)
	if len(objs) != 1 {
		t.Fatalf("got %d background objects, want 1", len(objs))
	}
	loop := objs[0].Commands[0].Loop
	if len(loop.Children) != 1 {
		t.Fatalf("stray level-2 line leaked into previous object's loop: got %d children, want 1", len(loop.Children))
	}

	fgObjs := sb.Objects(LayerForeground)
	if len(fgObjs) != 1 {
		t.Fatalf("got %d foreground objects, want 1", len(fgObjs))
	}
	if len(fgObjs[0].Commands) != 1 {
		t.Fatalf("expected the stray level-2 line to be ignored, got %d commands", len(fgObjs[0].Commands))
	}
}

func TestTriggerCommandIgnored(t *testing.T) {
	sb := mustParse(t, `[Events]
Sprite,Background,Centre,"sb/bg.png",0,0
 T,Passing,100,200
  F,0,0,100,0,1
 F,0,0,1000,0,1
`)
	obj := sb.Objects(LayerBackground)[0]
	if len(obj.Commands) != 1 {
		t.Fatalf("expected trigger body to be ignored, got %d commands", len(obj.Commands))
	}
}

func TestMalformedObjectLineSkippedNotFatal(t *testing.T) {
	p := NewParser(nil)
	sb, err := p.Parse(strings.NewReader(`[Events]
Sprite,NotALayer,Centre,"sb/bg.png",0,0
Sprite,Background,Centre,"sb/ok.png",0,0
`))
	if err != nil {
		t.Fatalf("parse should not fail on malformed object line: %v", err)
	}
	if len(sb.Objects(LayerBackground)) != 1 {
		t.Fatalf("expected the well-formed sprite to still parse")
	}
	if p.ErrorsSeen() != 1 {
		t.Errorf("ErrorsSeen = %d, want 1", p.ErrorsSeen())
	}
}
