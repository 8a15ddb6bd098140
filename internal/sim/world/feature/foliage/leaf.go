// Package foliage implements the self-contained leaf lifecycle: a leaf hangs
// still, starts swaying, eventually drops and fades, stays hidden for a while
// and then respawns at its original spot. It only needs the animation
// substrate and a ground query; world streaming never looks inside it.
package foliage

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"scrollworld.ai/internal/sim/world/logic/anim"
)

type State int

const (
	Idle State = iota
	Swaying
	Falling
	FadingOut
	Dormant
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Swaying:
		return "SWAYING"
	case Falling:
		return "FALLING"
	case FadingOut:
		return "FADING_OUT"
	case Dormant:
		return "DORMANT"
	default:
		return "UNKNOWN"
	}
}

// Params are the lifecycle timings (seconds) and speeds (units/second).
type Params struct {
	SwayAfterMin, SwayAfterMax float64
	FallAfterMin, FallAfterMax float64
	FadeOut                    float64
	DormantMin, DormantMax     float64
	FallVelocity               float64
	DriftVelocity              float64
	DriftPeriod                float64
}

const (
	swayAngle        = 8
	swayAnglePeriod  = 3
	swayDimsPeriod   = 4
	swayWidthFactor  = 1.2
	swayHeightFactor = 0.8
)

// GroundFunc returns the y of the ground surface below x.
type GroundFunc func(x float64) float64

type Leaf struct {
	home   mgl64.Vec2
	size   mgl64.Vec2
	p      Params
	rng    *rand.Rand
	sched  *anim.Scheduler
	ground GroundFunc

	state   State
	pos     mgl64.Vec2
	vel     mgl64.Vec2
	dims    mgl64.Vec2
	angle   float64
	opacity float64

	swayAngle *anim.Transition
	swayDims  [2]*anim.Transition
	drift     *anim.Transition
	fade      *anim.Transition

	tasks    []anim.TaskID
	detached bool
}

// New creates a leaf at home (top-left) and schedules its first life.
func New(home, size mgl64.Vec2, p Params, seed int64, sched *anim.Scheduler, ground GroundFunc) *Leaf {
	l := &Leaf{
		home:   home,
		size:   size,
		p:      p,
		rng:    rand.New(rand.NewSource(seed)),
		sched:  sched,
		ground: ground,
	}
	l.reset()
	l.scheduleLife()
	return l
}

func (l *Leaf) State() State { return l.state }

func (l *Leaf) Pos() mgl64.Vec2 { return l.pos }

func (l *Leaf) Home() mgl64.Vec2 { return l.home }

func (l *Leaf) Dims() mgl64.Vec2 { return l.dims }

func (l *Leaf) Velocity() mgl64.Vec2 { return l.vel }

func (l *Leaf) Angle() float64 { return l.angle }

func (l *Leaf) Opacity() float64 { return l.opacity }

func (l *Leaf) Visible() bool { return l.state != Dormant && l.opacity > 0 }

func (l *Leaf) Detached() bool { return l.detached }

// Detach cancels pending timers; the leaf stops changing.
func (l *Leaf) Detach() {
	if l.detached {
		return
	}
	l.detached = true
	l.cancelTasks()
}

func (l *Leaf) reset() {
	l.state = Idle
	l.pos = l.home
	l.vel = mgl64.Vec2{}
	l.dims = l.size
	l.angle = 0
	l.opacity = 1
	l.swayAngle = nil
	l.swayDims = [2]*anim.Transition{}
	l.drift = nil
	l.fade = nil
}

func (l *Leaf) between(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + l.rng.Float64()*(max-min)
}

func (l *Leaf) after(delay float64, fn func()) {
	id := l.sched.After(delay, fn)
	l.tasks = append(l.tasks, id)
}

func (l *Leaf) cancelTasks() {
	for _, id := range l.tasks {
		l.sched.Cancel(id)
	}
	l.tasks = l.tasks[:0]
}

func (l *Leaf) scheduleLife() {
	l.tasks = l.tasks[:0]
	l.after(l.between(l.p.SwayAfterMin, l.p.SwayAfterMax), l.startSway)
	l.after(l.between(l.p.FallAfterMin, l.p.FallAfterMax), l.startFall)
}

func (l *Leaf) startSway() {
	if l.detached {
		return
	}
	l.swayAngle = anim.NewTransition(-swayAngle, swayAngle, swayAnglePeriod, anim.Linear, anim.BackAndForth)
	l.swayDims = [2]*anim.Transition{
		anim.NewTransition(l.size.X(), l.size.X()*swayWidthFactor, swayDimsPeriod, anim.Cubic, anim.BackAndForth),
		anim.NewTransition(l.size.Y(), l.size.Y()*swayHeightFactor, swayDimsPeriod, anim.Cubic, anim.BackAndForth),
	}
	if l.state == Idle {
		l.state = Swaying
	}
}

func (l *Leaf) startFall() {
	if l.detached {
		return
	}
	l.state = Falling
	l.vel = mgl64.Vec2{0, l.p.FallVelocity}
	l.drift = anim.NewTransition(l.p.DriftVelocity, -l.p.DriftVelocity, l.p.DriftPeriod, anim.Cubic, anim.BackAndForth)
	l.fade = anim.NewTransition(1, 0, l.p.FadeOut, anim.Linear, anim.Once)
}

func (l *Leaf) goDormant() {
	l.state = Dormant
	l.opacity = 0
	l.vel = mgl64.Vec2{}
	l.drift = nil
	l.fade = nil
	l.after(l.between(l.p.DormantMin, l.p.DormantMax), l.respawn)
}

func (l *Leaf) respawn() {
	if l.detached {
		return
	}
	l.reset()
	l.scheduleLife()
}

// Update integrates motion and transitions for dt seconds. Timers fire from
// the shared scheduler, which the owner advances separately.
func (l *Leaf) Update(dt float64) {
	if l.detached || dt <= 0 {
		return
	}
	if l.swayAngle != nil {
		l.angle = l.swayAngle.Step(dt)
		l.dims = mgl64.Vec2{l.swayDims[0].Step(dt), l.swayDims[1].Step(dt)}
	}

	switch l.state {
	case Falling:
		if l.drift != nil {
			l.vel[0] = l.drift.Step(dt)
		}
		l.pos = l.pos.Add(l.vel.Mul(dt))
		if l.ground != nil {
			floor := l.ground(l.pos.X()+l.size.X()/2) - l.size.Y()
			if l.pos.Y() >= floor {
				// Ground contact kills drift; the fade keeps running.
				l.pos[1] = floor
				l.vel = mgl64.Vec2{}
				l.drift = nil
				l.state = FadingOut
			}
		}
		l.stepFade(dt)
	case FadingOut:
		l.stepFade(dt)
	}
}

func (l *Leaf) stepFade(dt float64) {
	if l.fade == nil {
		return
	}
	l.opacity = l.fade.Step(dt)
	if l.fade.Done() {
		l.goDormant()
	}
}
