package viewer

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"scrollworld.ai/internal/sim/world"
	"scrollworld.ai/internal/sim/world/logic/anim"
)

const (
	glyphGround   = '█'
	glyphTrunk    = '▓'
	glyphLeaf     = '♣'
	glyphObserver = '@'
)

const (
	nightDarkness = 0.6
	nightFade     = 2.0 // seconds
)

var (
	background = colorful.Color{R: 0.05, G: 0.07, B: 0.12}
	black      = colorful.Color{}
)

// Viewer draws a world onto a terminal screen and turns key presses into
// observer movement. It drives the world synchronously, so it must own it.
type Viewer struct {
	screen tcell.Screen
	world  *world.World

	x       float64
	speed   float64
	nudge   float64
	walking bool
	err     error

	// Night overlay: darkness blends every cell toward black.
	darkness float64
	nightOn  bool
	night    *anim.Transition
}

func New(screen tcell.Screen, w *world.World) *Viewer {
	cfg := w.Config()
	return &Viewer{
		screen: screen,
		world:  w,
		x:      cfg.StartX,
		speed:  cfg.Terrain.BlockSize * 8,
		nudge:  cfg.Terrain.BlockSize,
	}
}

func (v *Viewer) X() float64 { return v.x }

func (v *Viewer) Walking() bool { return v.walking }

func (v *Viewer) Darkness() float64 { return v.darkness }

// HandleEvent applies one input event. It returns false when the viewer
// should exit.
func (v *Viewer) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyLeft:
			v.x -= v.nudge
			if v.walking && v.speed > 0 {
				v.speed = -v.speed
			}
		case tcell.KeyRight:
			v.x += v.nudge
			if v.walking && v.speed < 0 {
				v.speed = -v.speed
			}
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case 'w', ' ':
				v.walking = !v.walking
			case '+':
				v.speed *= 2
			case '-':
				v.speed /= 2
			case 'n':
				v.toggleNight()
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

// toggleNight fades the overlay toward the other end from wherever it is.
func (v *Viewer) toggleNight() {
	v.nightOn = !v.nightOn
	target := 0.0
	if v.nightOn {
		target = nightDarkness
	}
	v.night = anim.NewTransition(v.darkness, target, nightFade, anim.Cubic, anim.Once)
}

func (v *Viewer) shade(c colorful.Color) colorful.Color {
	if v.darkness <= 0 {
		return c
	}
	return c.BlendRgb(black, v.darkness)
}

// Tick advances the world by one step of dt seconds and redraws.
func (v *Viewer) Tick(dt float64) {
	if v.night != nil {
		v.darkness = v.night.Step(dt)
		if v.night.Done() {
			v.night = nil
		}
	}
	if v.walking {
		v.x += v.speed * dt
	}
	if _, _, err := v.world.StepOnce(v.x); err != nil {
		v.err = err
	}
	v.Draw()
}

// Draw renders the current world state without stepping.
func (v *Viewer) Draw() {
	cols, rows := v.screen.Size()
	v.screen.Clear()
	if cols <= 0 || rows <= 1 {
		v.screen.Show()
		return
	}

	cfg := v.world.Config()
	left := v.x - cfg.ViewWidth/2
	sx := cfg.ViewWidth / float64(cols)
	sy := cfg.ViewHeight / float64(rows)

	bg := tcell.StyleDefault.Background(toTcell(v.shade(background)))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v.screen.SetContent(x, y, ' ', nil, bg)
		}
	}

	frame := v.world.Snapshot(left, left+cfg.ViewWidth)
	for _, o := range frame.Objects {
		c0, c1 := span(o.Pos.X()-left, o.Size.X(), sx, cols)
		r0, r1 := span(o.Pos.Y(), o.Size.Y(), sy, rows)
		glyph := glyphGround
		switch o.Kind {
		case world.KindTrunk:
			glyph = glyphTrunk
		case world.KindLeaf:
			glyph = glyphLeaf
		}
		tint := o.Tint
		if o.Opacity < 1 {
			tint = background.BlendRgb(o.Tint, o.Opacity)
		}
		style := bg.Foreground(toTcell(v.shade(tint)))
		for r := r0; r < r1; r++ {
			for c := c0; c < c1; c++ {
				v.screen.SetContent(c, r, glyph, nil, style)
			}
		}
	}

	// Observer stands on the surface at the center column.
	oc := cols / 2
	or := int(math.Floor(v.world.SurfaceAt(v.x)/sy)) - 1
	if or >= 1 && or < rows {
		v.screen.SetContent(oc, or, glyphObserver, nil, bg.Foreground(tcell.ColorWhite).Bold(true))
	}

	v.drawStatus(frame, cols)
	v.screen.Show()
}

func (v *Viewer) drawStatus(f world.Frame, cols int) {
	status := fmt.Sprintf("step=%s x=%.0f window=[%.0f,%.0f) objects=%s",
		humanize.Comma(int64(f.Step)), f.ObserverX, f.Window.MinX, f.Window.MaxX, humanize.Comma(int64(len(f.Objects))))
	if v.walking {
		status += fmt.Sprintf(" walk=%.0f/s", v.speed)
	}
	if v.nightOn {
		status += " night"
	}
	if v.err != nil {
		status += " err=" + v.err.Error()
	}
	style := tcell.StyleDefault.Reverse(true)
	x := 0
	for _, r := range status {
		if x >= cols {
			break
		}
		v.screen.SetContent(x, 0, r, nil, style)
		x++
	}
}

// span maps the world interval [pos, pos+size) to the cells it overlaps.
func span(pos, size, scale float64, n int) (int, int) {
	a := int(math.Floor(pos / scale))
	b := int(math.Ceil((pos + size) / scale))
	if a < 0 {
		a = 0
	}
	if b > n {
		b = n
	}
	return a, b
}

func toTcell(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
