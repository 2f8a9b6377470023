package viewer

import (
	"go.viam.com/rgbdview/logging"
	"go.viam.com/rgbdview/viz/controls"
)

// DefaultClearColor is the background of a new viewer.
const DefaultClearColor = "#ffffff"

// State is every user-adjustable option of the viewer. It is read and written through the
// Viewer only; settings panels observe it and write back via ApplyState.
type State struct {
	ArrowsVisible           bool            `json:"arrows_visible"`
	FloorGridVisible        bool            `json:"floor_grid_visible"`
	CameraControlScheme     controls.Scheme `json:"camera_control_scheme"`
	ClearColor              string          `json:"clear_color"`
	OnlyRenderWhenNecessary bool            `json:"only_render_when_necessary"`
	Width                   int             `json:"width"`
	Height                  int             `json:"height"`
}

// DefaultState is the state of a new viewer of the given size.
func DefaultState(width, height int) State {
	return State{
		ArrowsVisible:           true,
		FloorGridVisible:        true,
		CameraControlScheme:     controls.SchemeOrbit,
		ClearColor:              DefaultClearColor,
		OnlyRenderWhenNecessary: true,
		Width:                   width,
		Height:                  height,
	}
}

// Observer is told about every state change, including ones it did not cause, so it can
// refresh its controls.
type Observer interface {
	SyncFromState(State)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(State)

// SyncFromState implements Observer.
func (f ObserverFunc) SyncFromState(s State) {
	f(s)
}

// Notifier reports configuration errors to the user. The operation that failed has already
// been abandoned when Notify is called.
type Notifier interface {
	Notify(err error)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(error)

// Notify implements Notifier.
func (f NotifierFunc) Notify(err error) {
	f(err)
}

type logNotifier struct {
	logger logging.Logger
}

func (n logNotifier) Notify(err error) {
	n.logger.Errorw("configuration error", "error", err)
}
