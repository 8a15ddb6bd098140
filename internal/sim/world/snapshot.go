package world

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"
)

// Frame is a copy of what a host needs to draw one step.
type Frame struct {
	Step      uint64
	ObserverX float64
	Window    Bounds
	View      mgl64.Vec2
	Digest    string
	Objects   []FrameObject
}

// FrameObject is one visible managed object. Objects are ordered terrain,
// then trunks, then foliage, so later entries draw on top.
type FrameObject struct {
	Category Category
	Kind     Kind
	Pos      mgl64.Vec2
	Size     mgl64.Vec2
	Tint     colorful.Color
	Opacity  float64
}

// Snapshot copies the objects whose horizontal extent intersects
// [minX, maxX). Loop-owned; call it from the goroutine driving the world.
func (w *World) Snapshot(minX, maxX float64) Frame {
	f := Frame{
		Step:      w.step.Load(),
		ObserverX: w.observerX,
		Window:    w.window.Bounds(),
		View:      mgl64.Vec2{w.cfg.ViewWidth, w.cfg.ViewHeight},
		Digest:    w.digest,
	}
	for _, cat := range ManagedCategories {
		for _, o := range w.layers.layers[cat] {
			fo := FrameObject{
				Category: cat,
				Kind:     o.Kind,
				Pos:      o.Position(),
				Size:     o.Size,
				Tint:     o.Tint,
				Opacity:  1,
			}
			if o.Leaf != nil {
				if !o.Leaf.Visible() {
					continue
				}
				fo.Size = o.Leaf.Dims()
				fo.Opacity = o.Leaf.Opacity()
			}
			if fo.Pos.X()+fo.Size.X() <= minX || fo.Pos.X() >= maxX {
				continue
			}
			f.Objects = append(f.Objects, fo)
		}
	}
	return f
}
