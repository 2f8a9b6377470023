// Package viewer is the programmatic surface of the RGB-D scene viewer. A Viewer owns the scene,
// the camera with its controls, and the frame loop deciding when the scene is redrawn.
//
// Every method and every frame tick hold the viewer's lock, so scene mutations and draws never
// overlap. Image loading runs in the background and only takes the lock to register its result.
package viewer

import (
	"context"
	"image"
	"image/png"
	"io"
	"slices"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/rgbdview/logging"
	"go.viam.com/rgbdview/pointcloud"
	"go.viam.com/rgbdview/rimage"
	"go.viam.com/rgbdview/rimage/transform"
	"go.viam.com/rgbdview/utils"
	"go.viam.com/rgbdview/viz/campose"
	"go.viam.com/rgbdview/viz/controls"
	"go.viam.com/rgbdview/viz/render"
	"go.viam.com/rgbdview/viz/render/soft"
	"go.viam.com/rgbdview/viz/scene"
)

// Default output size.
const (
	DefaultWidth  = 1024
	DefaultHeight = 768
)

// ErrObjectNotFound is returned when no scene object has the requested name.
var ErrObjectNotFound = errors.New("object not found")

// ErrHelperObject is returned when asked to remove one of the helper arrows or the floor grid.
// Those are shown and hidden through their toggles.
var ErrHelperObject = errors.New("helper objects cannot be removed")

// ErrNoSnapshot is returned by Screenshot when the renderer cannot hand back frames.
var ErrNoSnapshot = errors.New("renderer does not support snapshots")

// CameraMove is one batch of pointer input for the camera controls.
type CameraMove struct {
	RotateX float64 `json:"rotate_x"`
	RotateY float64 `json:"rotate_y"`
	PanX    float64 `json:"pan_x"`
	PanY    float64 `json:"pan_y"`
	Zoom    float64 `json:"zoom"`
}

type options struct {
	width, height int
	intrinsics    *transform.PinholeCameraIntrinsics
	renderer      render.Renderer
	notifier      Notifier
	load          pointcloud.LoadFunc
	clock         clock.Clock
}

// Option configures a Viewer.
type Option func(*options)

// WithSize sets the initial output size.
func WithSize(width, height int) Option {
	return func(o *options) { o.width, o.height = width, height }
}

// WithIntrinsics sets the intrinsics the viewer starts with. The camera pose frustum is built
// from these.
func WithIntrinsics(intrinsics *transform.PinholeCameraIntrinsics) Option {
	return func(o *options) { o.intrinsics = intrinsics }
}

// WithRenderer replaces the software renderer.
func WithRenderer(r render.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithNotifier sets where configuration errors are reported. By default they are logged.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithLoader replaces how image paths are fetched and decoded.
func WithLoader(load pointcloud.LoadFunc) Option {
	return func(o *options) { o.load = load }
}

// WithClock sets the clock driving the frame loop.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Viewer is a scene of point clouds, images and camera poses plus the machinery to draw it.
type Viewer struct {
	mu     sync.Mutex
	logger logging.Logger

	notifier Notifier
	load     pointcloud.LoadFunc

	intrinsics *transform.PinholeCameraIntrinsics
	prototype  *campose.Prototype

	registry *scene.Registry
	arrows   *scene.Group
	grid     *scene.Group

	renderer  render.Renderer
	camera    *render.PerspectiveCamera
	controls  *controls.Controls
	scheduler *render.Scheduler

	state     State
	observers map[int]Observer
	nextObsID int

	workers *utils.StoppableWorkers
}

// New returns a viewer showing the helper arrows and floor grid. Call Run to start its frame loop.
func New(logger logging.Logger, opts ...Option) *Viewer {
	o := options{
		width:  DefaultWidth,
		height: DefaultHeight,
		load:   pointcloud.LoadFile,
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.intrinsics == nil {
		o.intrinsics = transform.DefaultIntrinsics()
	}
	if o.renderer == nil {
		o.renderer = soft.NewRenderer(o.width, o.height)
	}
	if o.notifier == nil {
		o.notifier = logNotifier{logger}
	}

	v := &Viewer{
		logger:     logger,
		notifier:   o.notifier,
		load:       o.load,
		intrinsics: o.intrinsics,
		prototype:  campose.BuildPrototype(o.intrinsics, campose.DefaultScale),
		registry:   scene.NewRegistry(),
		renderer:   o.renderer,
		state:      DefaultState(o.width, o.height),
		observers:  map[int]Observer{},
		workers:    utils.NewStoppableWorkers(context.Background()),
	}
	v.arrows = scene.NewGroup("helper_arrows", v.registry, scene.NewHelperArrows()...)
	v.grid = scene.NewGroup("floor_grid", v.registry, scene.NewFloorGrid())

	v.scheduler = render.NewScheduler(v.draw, nil, logger.Sublogger("scheduler"),
		render.WithClock(o.clock),
		render.WithLocker(&v.mu),
		render.WithOnlyRenderWhenNecessary(v.state.OnlyRenderWhenNecessary),
	)
	v.renderer.Resize(o.width, o.height)
	goutils.UncheckedError(v.applyClearColor(DefaultClearColor))
	v.resetCamera()
	v.scheduler.RequestRender()
	return v
}

// draw runs with the lock held, from either the frame loop or ForceRerender.
func (v *Viewer) draw() error {
	return v.renderer.Render(v.registry.Objects(), v.camera)
}

// mutate runs fn under the lock. If fn reports a visible change a render is requested. Observers
// are synced after the lock is released whenever the state changed or fn failed, so a panel that
// wrote a rejected value shows the current one again.
func (v *Viewer) mutate(fn func() (bool, error)) error {
	v.mu.Lock()
	before := v.state
	changed, err := fn()
	if changed {
		v.scheduler.RequestRender()
	}
	after := v.state
	var observers []Observer
	if after != before || err != nil {
		observers = v.observerList()
	}
	v.mu.Unlock()

	for _, obs := range observers {
		obs.SyncFromState(after)
	}
	return err
}

func (v *Viewer) observerList() []Observer {
	ids := make([]int, 0, len(v.observers))
	for id := range v.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Observer, 0, len(ids))
	for _, id := range ids {
		out = append(out, v.observers[id])
	}
	return out
}

// Subscribe registers obs for state changes and immediately syncs it. The returned function
// unsubscribes.
func (v *Viewer) Subscribe(obs Observer) func() {
	v.mu.Lock()
	id := v.nextObsID
	v.nextObsID++
	v.observers[id] = obs
	st := v.state
	v.mu.Unlock()

	obs.SyncFromState(st)
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.observers, id)
	}
}

// State returns the current options.
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// ApplyState sets every option that differs from the current state. It stops at the first
// invalid option; options applied before it stay applied.
func (v *Viewer) ApplyState(st State) error {
	cur := v.State()
	if st.ArrowsVisible != cur.ArrowsVisible {
		v.ToggleHelperArrows(st.ArrowsVisible)
	}
	if st.FloorGridVisible != cur.FloorGridVisible {
		v.ToggleFloorGrid(st.FloorGridVisible)
	}
	if st.OnlyRenderWhenNecessary != cur.OnlyRenderWhenNecessary {
		v.SetOnlyRenderWhenNecessary(st.OnlyRenderWhenNecessary)
	}
	if st.Width != cur.Width || st.Height != cur.Height {
		v.Resize(st.Width, st.Height)
	}
	if st.ClearColor != "" && st.ClearColor != cur.ClearColor {
		if err := v.SetClearColor(st.ClearColor); err != nil {
			return err
		}
	}
	if st.CameraControlScheme != "" && st.CameraControlScheme != cur.CameraControlScheme {
		if err := v.SwitchCameraControlScheme(string(st.CameraControlScheme)); err != nil {
			return err
		}
	}
	return nil
}

// Intrinsics returns the intrinsics used to unproject depth images.
func (v *Viewer) Intrinsics() *transform.PinholeCameraIntrinsics {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.intrinsics
}

// SetCameraIntrinsics replaces the intrinsics wholesale; omitted fields take defaults. Clouds
// already in the scene are unaffected.
func (v *Viewer) SetCameraIntrinsics(params IntrinsicsParams) error {
	intrinsics, err := transform.NewPinholeCameraIntrinsics(params)
	if err != nil {
		return err
	}
	return v.mutate(func() (bool, error) {
		v.intrinsics = intrinsics
		v.logger.Debugw("camera intrinsics set",
			"fx", intrinsics.Fx, "fy", intrinsics.Fy, "cx", intrinsics.Ppx, "cy", intrinsics.Ppy)
		return false, nil
	})
}

// add registers obj and requests a render.
func (v *Viewer) add(obj scene.Object) {
	goutils.UncheckedError(v.mutate(func() (bool, error) {
		v.registry.Add(obj)
		return true, nil
	}))
}

// DisplayPointCloud loads the depth image, then the color image, builds a cloud from them with
// the current intrinsics, and adds it to the scene. The returned future resolves after the cloud
// is in the scene, or with the first error.
func (v *Viewer) DisplayPointCloud(ctx context.Context, params PointCloudParams) *utils.Future[*pointcloud.PointCloud] {
	if err := params.Validate(); err != nil {
		if params.OnComplete != nil {
			params.OnComplete(nil, err)
		}
		return utils.Resolved[*pointcloud.PointCloud](nil, err)
	}
	intrinsics := v.Intrinsics()
	logger := v.logger.Sublogger("pointcloud")
	built := pointcloud.BuildFromFiles(ctx, v.load, params.DepthPath, params.ColorPath, intrinsics, params.buildConfig())

	return utils.Go(ctx, func(ctx context.Context) (*pointcloud.PointCloud, error) {
		pc, err := built.Await(ctx)
		if err != nil {
			logger.Warnw("point cloud not displayed", "name", params.Name, "error", err)
		} else {
			v.add(pc)
			logger.Debugw("point cloud displayed", "name", pc.Name(), "points", pc.Size())
		}
		if params.OnComplete != nil {
			params.OnComplete(pc, err)
		}
		return pc, err
	})
}

// DisplayImage loads an image and adds it to the scene as a textured plane. Textures larger than
// MaxTextureSize in either dimension are scaled down.
func (v *Viewer) DisplayImage(ctx context.Context, params ImageParams) *utils.Future[*scene.ImagePlane] {
	fail := func(err error) *utils.Future[*scene.ImagePlane] {
		if params.OnComplete != nil {
			params.OnComplete(nil, err)
		}
		return utils.Resolved[*scene.ImagePlane](nil, err)
	}
	if params.Path == "" {
		return fail(errors.New("image needs a path"))
	}
	pose, err := params.Pose()
	if err != nil {
		return fail(err)
	}
	width := params.Width
	if width <= 0 {
		width = DefaultImageWidth
	}

	return utils.Go(ctx, func(ctx context.Context) (*scene.ImagePlane, error) {
		var plane *scene.ImagePlane
		tex, err := v.load(ctx, params.Path)
		if err == nil {
			tex = fitTexture(tex)
			plane = scene.NewImagePlane(params.Name, tex, width, pose)
			v.add(plane)
		} else {
			v.logger.Warnw("image not displayed", "name", params.Name, "error", err)
		}
		if params.OnComplete != nil {
			params.OnComplete(plane, err)
		}
		return plane, err
	})
}

func fitTexture(tex *rimage.PixelBuffer) *rimage.PixelBuffer {
	if tex.Width <= MaxTextureSize && tex.Height <= MaxTextureSize {
		return tex
	}
	return rimage.NewPixelBufferFromImage(imaging.Fit(tex.ToNRGBA(), MaxTextureSize, MaxTextureSize, imaging.Lanczos))
}

// DisplayCameraPose adds a frustum at the given pose. Every pose shares the frustum built from
// the intrinsics the viewer was created with.
func (v *Viewer) DisplayCameraPose(params CameraPoseParams) (*campose.Instance, error) {
	pose, err := params.Pose()
	if err != nil {
		return nil, err
	}
	var inst *campose.Instance
	err = v.mutate(func() (bool, error) {
		inst = campose.Instantiate(v.prototype, pose, params.Name)
		v.registry.Add(inst)
		return true, nil
	})
	return inst, err
}

// ToggleHelperArrows shows or hides the axis arrows and their labels.
func (v *Viewer) ToggleHelperArrows(visible bool) {
	goutils.UncheckedError(v.mutate(func() (bool, error) {
		v.state.ArrowsVisible = visible
		return v.arrows.SetVisible(visible), nil
	}))
}

// ToggleFloorGrid shows or hides the floor grid.
func (v *Viewer) ToggleFloorGrid(visible bool) {
	goutils.UncheckedError(v.mutate(func() (bool, error) {
		v.state.FloorGridVisible = visible
		return v.grid.SetVisible(visible), nil
	}))
}

// GetObjectByName returns the most recently added object with the given name.
func (v *Viewer) GetObjectByName(name string) (scene.Object, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	obj, ok := v.registry.GetByName(name)
	if !ok {
		return nil, errors.Wrapf(ErrObjectNotFound, "%q", name)
	}
	return obj, nil
}

// ObjectNames lists the names of everything in the scene, in insertion order.
func (v *Viewer) ObjectNames() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.registry.Names()
}

// RemoveObject removes the most recently added object with the given name. The helper arrows
// and floor grid are refused with ErrHelperObject.
func (v *Viewer) RemoveObject(name string) error {
	return v.mutate(func() (bool, error) {
		obj, ok := v.registry.GetByName(name)
		if !ok {
			return false, errors.Wrapf(ErrObjectNotFound, "%q", name)
		}
		if v.arrows.Contains(obj) || v.grid.Contains(obj) {
			return false, errors.Wrapf(ErrHelperObject, "%q", name)
		}
		return v.registry.Remove(obj), nil
	})
}

func (v *Viewer) applyClearColor(hex string) error {
	c, err := rimage.ParseColor(hex)
	if err != nil {
		return err
	}
	v.renderer.SetClearColor(c, 1)
	v.state.ClearColor = c.Hex()
	return nil
}

// SetClearColor sets the background from a "#rrggbb" string. An invalid color is reported to
// the notifier and leaves the background unchanged.
func (v *Viewer) SetClearColor(hex string) error {
	err := v.mutate(func() (bool, error) {
		if err := v.applyClearColor(hex); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		v.notifier.Notify(err)
	}
	return err
}

// SwitchCameraControlScheme swaps the camera controls. Unknown names are reported to the
// notifier and the current scheme stays active.
func (v *Viewer) SwitchCameraControlScheme(name string) error {
	err := v.mutate(func() (bool, error) {
		scheme, err := controls.ParseScheme(name)
		if err != nil {
			return false, err
		}
		if err := v.attachControls(scheme); err != nil {
			return false, err
		}
		v.state.CameraControlScheme = scheme
		return false, nil
	})
	if err != nil {
		v.notifier.Notify(err)
	}
	return err
}

func (v *Viewer) attachControls(scheme controls.Scheme) error {
	c, err := controls.New(scheme, v.camera)
	if err != nil {
		return err
	}
	v.controls = c
	v.scheduler.SetControls(c)
	v.logger.Debugw("camera controls attached", "scheme", scheme)
	return nil
}

func (v *Viewer) resetCamera() {
	v.camera = render.NewPerspectiveCamera(float64(v.state.Width) / float64(max(v.state.Height, 1)))
	scheme := v.state.CameraControlScheme
	if err := v.attachControls(scheme); err != nil {
		v.logger.Errorw("cannot attach camera controls", "scheme", scheme, "error", err)
	}
}

// ResetCamera restores the initial camera and re-attaches the current control scheme.
func (v *Viewer) ResetCamera() {
	goutils.UncheckedError(v.mutate(func() (bool, error) {
		v.resetCamera()
		return true, nil
	}))
}

// MoveCamera feeds pointer input to the camera controls. The camera moves on the next frame.
func (v *Viewer) MoveCamera(move CameraMove) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if move.RotateX != 0 || move.RotateY != 0 {
		v.controls.Rotate(move.RotateX, move.RotateY)
	}
	if move.PanX != 0 || move.PanY != 0 {
		v.controls.Pan(move.PanX, move.PanY)
	}
	if move.Zoom != 0 {
		v.controls.Zoom(move.Zoom)
	}
}

// Resize changes the output size and the camera's aspect ratio. Non-positive sizes are ignored.
func (v *Viewer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		v.logger.Warnw("ignoring invalid size", "width", width, "height", height)
		return
	}
	goutils.UncheckedError(v.mutate(func() (bool, error) {
		v.state.Width, v.state.Height = width, height
		v.renderer.Resize(width, height)
		v.camera.Aspect = float64(width) / float64(height)
		v.camera.UpdateProjectionMatrix()
		return true, nil
	}))
}

// SetOnlyRenderWhenNecessary switches between drawing only dirty frames and drawing every frame.
func (v *Viewer) SetOnlyRenderWhenNecessary(only bool) {
	goutils.UncheckedError(v.mutate(func() (bool, error) {
		v.state.OnlyRenderWhenNecessary = only
		v.scheduler.SetOnlyRenderWhenNecessary(only)
		return false, nil
	}))
}

// ForceRerender draws immediately without touching the pending dirty flags.
func (v *Viewer) ForceRerender() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scheduler.ForceRerender()
}

// Frame forces a draw and returns the resulting image.
func (v *Viewer) Frame() (image.Image, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	snap, ok := v.renderer.(render.Snapshotter)
	if !ok {
		return nil, ErrNoSnapshot
	}
	if err := v.scheduler.ForceRerender(); err != nil {
		return nil, err
	}
	return snap.Snapshot(), nil
}

// NextFrame runs a frame tick now, so pending camera input is applied, and returns the latest
// frame. Nothing is drawn if nothing changed since the last draw.
func (v *Viewer) NextFrame() (image.Image, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	snap, ok := v.renderer.(render.Snapshotter)
	if !ok {
		return nil, ErrNoSnapshot
	}
	v.scheduler.Tick()
	return snap.Snapshot(), nil
}

// Screenshot writes the current scene to w as a PNG.
func (v *Viewer) Screenshot(w io.Writer) error {
	img, err := v.Frame()
	if err != nil {
		return err
	}
	return errors.Wrap(png.Encode(w, img), "encoding screenshot")
}

// Scheduler exposes the frame scheduler for inspection. Callers must not drive it directly.
func (v *Viewer) Scheduler() *render.Scheduler {
	return v.scheduler
}

// Run drives the frame loop until ctx is done or the viewer is closed.
func (v *Viewer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	v.workers.Add(func(workerCtx context.Context) {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		defer context.AfterFunc(workerCtx, cancel)()
		v.logger.Info("viewer running")
		errCh <- v.scheduler.Run(runCtx)
	})
	select {
	case err := <-errCh:
		return err
	case <-v.workers.Context().Done():
		// closed, possibly before the loop could start
		select {
		case err := <-errCh:
			return err
		default:
			return v.workers.Context().Err()
		}
	}
}

// Close stops the frame loop and waits for it to exit.
func (v *Viewer) Close(ctx context.Context) error {
	v.workers.Stop()
	var err error
	if closer, ok := v.renderer.(io.Closer); ok {
		err = multierr.Combine(err, closer.Close())
	}
	return err
}
