package viewer

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/rgbdview/logging"
	"go.viam.com/rgbdview/pointcloud"
	"go.viam.com/rgbdview/rimage"
	"go.viam.com/rgbdview/spatialmath"
	"go.viam.com/rgbdview/viz/campose"
	"go.viam.com/rgbdview/viz/controls"
	"go.viam.com/rgbdview/viz/render"
	"go.viam.com/rgbdview/viz/scene"
)

type countingRenderer struct {
	mu      sync.Mutex
	renders int
	clear   rimage.RGB
	width   int
	height  int
	objects int
}

func (r *countingRenderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = width, height
}

func (r *countingRenderer) SetClearColor(c rimage.RGB, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clear = c
}

func (r *countingRenderer) Render(objects []scene.Object, _ *render.PerspectiveCamera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders++
	r.objects = len(objects)
	return nil
}

func (r *countingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

// fakeImages serves pixel buffers by path.
type fakeImages map[string]*rimage.PixelBuffer

func (f fakeImages) load(_ context.Context, path string) (*rimage.PixelBuffer, error) {
	pb, ok := f[path]
	if !ok {
		return nil, errors.Errorf("no such image %q", path)
	}
	return pb, nil
}

// threeValid is a 2x2 byte depth image with one hole and a matching color image.
func threeValid() fakeImages {
	depth := rimage.NewPixelBuffer(2, 2)
	color := rimage.NewPixelBuffer(2, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			depth.SetQuad(x, y, [4]uint8{uint8(10 * (x + y + 1)), 0, 0, 255})
			color.SetQuad(x, y, [4]uint8{255, 0, 0, 255})
		}
	}
	depth.SetQuad(1, 1, [4]uint8{0, 0, 0, 255})
	return fakeImages{
		"depth.png": depth,
		"color.png": color,
		"small.png": rimage.NewPixelBuffer(1, 1),
		"wide.png":  rimage.NewPixelBuffer(4000, 10),
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	errs []error
}

func (n *recordingNotifier) Notify(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func newTestViewer(t *testing.T, opts ...Option) (*Viewer, *countingRenderer, *recordingNotifier) {
	t.Helper()
	r := &countingRenderer{}
	n := &recordingNotifier{}
	opts = append([]Option{WithRenderer(r), WithNotifier(n), WithLoader(threeValid().load)}, opts...)
	v := New(logging.NewTestLogger(t), opts...)
	t.Cleanup(func() {
		test.That(t, v.Close(context.Background()), test.ShouldBeNil)
	})
	return v, r, n
}

func TestNewViewer(t *testing.T) {
	v, r, _ := newTestViewer(t)
	test.That(t, v.State(), test.ShouldResemble, DefaultState(DefaultWidth, DefaultHeight))
	test.That(t, r.width, test.ShouldEqual, DefaultWidth)
	test.That(t, r.clear, test.ShouldResemble, rimage.NewRGBHex(0xffffff))

	names := v.ObjectNames()
	test.That(t, names, test.ShouldHaveLength, 7)
	test.That(t, names, test.ShouldContain, "helper_arrow_X")
	test.That(t, names, test.ShouldContain, "floor_grid")

	// the initial scene is drawn on the first tick and not again
	test.That(t, v.Scheduler().Tick(), test.ShouldBeTrue)
	test.That(t, v.Scheduler().Tick(), test.ShouldBeFalse)
	test.That(t, r.count(), test.ShouldEqual, 1)
	test.That(t, r.objects, test.ShouldEqual, 7)
}

func TestToggleHelpers(t *testing.T) {
	v, _, _ := newTestViewer(t)
	v.Scheduler().Tick()

	var synced []State
	unsubscribe := v.Subscribe(ObserverFunc(func(s State) { synced = append(synced, s) }))
	test.That(t, synced, test.ShouldHaveLength, 1)

	v.ToggleHelperArrows(false)
	test.That(t, v.State().ArrowsVisible, test.ShouldBeFalse)
	test.That(t, v.ObjectNames(), test.ShouldResemble, []string{"floor_grid"})
	test.That(t, v.Scheduler().Dirty().Requested, test.ShouldBeTrue)
	test.That(t, synced, test.ShouldHaveLength, 2)
	test.That(t, synced[1].ArrowsVisible, test.ShouldBeFalse)

	v.ToggleFloorGrid(false)
	test.That(t, v.ObjectNames(), test.ShouldBeEmpty)

	v.ToggleFloorGrid(true)
	v.ToggleHelperArrows(true)
	test.That(t, v.ObjectNames(), test.ShouldHaveLength, 7)

	unsubscribe()
	v.ToggleFloorGrid(false)
	test.That(t, synced, test.ShouldHaveLength, 5)
}

func TestDisplayPointCloud(t *testing.T) {
	v, _, _ := newTestViewer(t)
	v.Scheduler().Tick()

	var callbackErr error
	var callbackCloud *pointcloud.PointCloud
	params, err := DecodeParams[PointCloudParams](map[string]interface{}{
		"depth":      "depth.png",
		"color":      "color.png",
		"name":       "couch",
		"stride_x":   "1",
		"point_size": 0.5,
	})
	test.That(t, err, test.ShouldBeNil)
	params.OnComplete = func(pc *pointcloud.PointCloud, err error) {
		callbackCloud, callbackErr = pc, err
	}

	pc, err := v.DisplayPointCloud(context.Background(), params).Await(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 3)
	test.That(t, pc.PointSize(), test.ShouldEqual, 0.5)
	test.That(t, callbackErr, test.ShouldBeNil)
	test.That(t, callbackCloud, test.ShouldEqual, pc)

	obj, err := v.GetObjectByName("couch")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obj, test.ShouldEqual, pc)
	test.That(t, v.Scheduler().Dirty().Requested, test.ShouldBeTrue)

	test.That(t, v.RemoveObject("couch"), test.ShouldBeNil)
	_, err = v.GetObjectByName("couch")
	test.That(t, errors.Is(err, ErrObjectNotFound), test.ShouldBeTrue)
	test.That(t, errors.Is(v.RemoveObject("couch"), ErrObjectNotFound), test.ShouldBeTrue)
}

func TestDisplayPointCloudFailures(t *testing.T) {
	v, _, _ := newTestViewer(t)
	ctx := context.Background()

	t.Run("size mismatch", func(t *testing.T) {
		var callbackErr error
		_, err := v.DisplayPointCloud(ctx, PointCloudParams{
			DepthPath: "depth.png", ColorPath: "small.png", Name: "bad",
			OnComplete: func(_ *pointcloud.PointCloud, err error) { callbackErr = err },
		}).Await(ctx)
		test.That(t, errors.Is(err, pointcloud.ErrDimensionMismatch), test.ShouldBeTrue)
		test.That(t, errors.Is(callbackErr, pointcloud.ErrDimensionMismatch), test.ShouldBeTrue)
		_, err = v.GetObjectByName("bad")
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("missing image", func(t *testing.T) {
		_, err := v.DisplayPointCloud(ctx, PointCloudParams{DepthPath: "nope.png", ColorPath: "color.png"}).Await(ctx)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "loading depth image")
	})

	t.Run("missing params", func(t *testing.T) {
		_, err := v.DisplayPointCloud(ctx, PointCloudParams{DepthPath: "depth.png"}).Await(ctx)
		test.That(t, err, test.ShouldNotBeNil)
	})

	test.That(t, v.ObjectNames(), test.ShouldHaveLength, 7)
}

func TestDisplayCameraPose(t *testing.T) {
	v, _, _ := newTestViewer(t)
	a, err := v.DisplayCameraPose(CameraPoseParams{Name: "cam"})
	test.That(t, err, test.ShouldBeNil)
	b, err := v.DisplayCameraPose(CameraPoseParams{
		Name: "cam",
		TransformParams: TransformParams{
			Rotation:    []float64{0, -1, 0, 1, 0, 0, 0, 0, 1},
			Translation: []float64{1, 2, 3},
		},
	})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, a.Prototype(), test.ShouldEqual, b.Prototype())
	test.That(t, a.Prototype().Vertices(), test.ShouldHaveLength, campose.PrototypeVertexCount)
	test.That(t, a.Pose().AlmostEqual(spatialmath.NewZeroPose(), 1e-9), test.ShouldBeTrue)
	test.That(t, b.Pose().Point().Z, test.ShouldEqual, 3)

	obj, err := v.GetObjectByName("cam")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obj, test.ShouldEqual, b)

	test.That(t, v.RemoveObject("cam"), test.ShouldBeNil)
	obj, err = v.GetObjectByName("cam")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obj, test.ShouldEqual, a)

	_, err = v.DisplayCameraPose(CameraPoseParams{TransformParams: TransformParams{Translation: []float64{1}}})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestHelpersStayWithTheirToggles(t *testing.T) {
	v, _, _ := newTestViewer(t)

	err := v.RemoveObject("helper_arrow_X")
	test.That(t, errors.Is(err, ErrHelperObject), test.ShouldBeTrue)
	test.That(t, errors.Is(v.RemoveObject("floor_grid"), ErrHelperObject), test.ShouldBeTrue)
	test.That(t, v.ObjectNames(), test.ShouldHaveLength, 7)

	v.ToggleHelperArrows(false)
	v.ToggleHelperArrows(true)
	test.That(t, v.ObjectNames(), test.ShouldHaveLength, 7)

	// a scene object that shadows a helper's name is still removable
	_, err = v.DisplayCameraPose(CameraPoseParams{Name: "floor_grid"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.ObjectNames(), test.ShouldHaveLength, 8)
	test.That(t, v.RemoveObject("floor_grid"), test.ShouldBeNil)
	test.That(t, v.ObjectNames(), test.ShouldHaveLength, 7)
	test.That(t, errors.Is(v.RemoveObject("floor_grid"), ErrHelperObject), test.ShouldBeTrue)
}

func TestDisplayImage(t *testing.T) {
	v, _, _ := newTestViewer(t)
	ctx := context.Background()

	plane, err := v.DisplayImage(ctx, ImageParams{Path: "wide.png", Name: "banner"}).Await(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, plane.Texture.Width, test.ShouldEqual, MaxTextureSize)
	test.That(t, plane.Texture.Height, test.ShouldEqual, 5)
	test.That(t, plane.Width, test.ShouldEqual, DefaultImageWidth)

	obj, err := v.GetObjectByName("banner")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obj, test.ShouldEqual, plane)

	_, err = v.DisplayImage(ctx, ImageParams{Path: "nope.png"}).Await(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = v.DisplayImage(ctx, ImageParams{}).Await(ctx)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSwitchCameraControlScheme(t *testing.T) {
	v, _, n := newTestViewer(t)

	var synced int
	v.Subscribe(ObserverFunc(func(State) { synced++ }))

	err := v.SwitchCameraControlScheme("fly")
	test.That(t, errors.Is(err, controls.ErrUnknownControlScheme), test.ShouldBeTrue)
	test.That(t, n.errs, test.ShouldHaveLength, 1)
	test.That(t, v.State().CameraControlScheme, test.ShouldEqual, controls.SchemeOrbit)
	test.That(t, synced, test.ShouldEqual, 2)

	test.That(t, v.SwitchCameraControlScheme("trackball"), test.ShouldBeNil)
	test.That(t, v.State().CameraControlScheme, test.ShouldEqual, controls.SchemeTrackball)

	// the new controls are the ones polled by the frame loop
	v.Scheduler().Tick()
	v.MoveCamera(CameraMove{RotateY: 30})
	test.That(t, v.Scheduler().Tick(), test.ShouldBeTrue)
	test.That(t, v.Scheduler().Tick(), test.ShouldBeFalse)

	v.ResetCamera()
	test.That(t, v.State().CameraControlScheme, test.ShouldEqual, controls.SchemeTrackball)
	test.That(t, v.Scheduler().Dirty().Requested, test.ShouldBeTrue)
}

func TestClearColorAndResize(t *testing.T) {
	v, r, n := newTestViewer(t)

	test.That(t, v.SetClearColor("#102030"), test.ShouldBeNil)
	test.That(t, r.clear, test.ShouldResemble, rimage.NewRGBHex(0x102030))
	test.That(t, v.State().ClearColor, test.ShouldEqual, "#102030")

	test.That(t, v.SetClearColor("blue-ish"), test.ShouldNotBeNil)
	test.That(t, n.errs, test.ShouldHaveLength, 1)
	test.That(t, v.State().ClearColor, test.ShouldEqual, "#102030")

	v.Resize(640, 480)
	test.That(t, r.width, test.ShouldEqual, 640)
	test.That(t, v.State().Width, test.ShouldEqual, 640)
	v.Resize(0, 480)
	test.That(t, v.State().Width, test.ShouldEqual, 640)
}

func TestApplyState(t *testing.T) {
	v, _, _ := newTestViewer(t)
	st := v.State()
	st.ArrowsVisible = false
	st.OnlyRenderWhenNecessary = false
	st.ClearColor = "#000000"
	st.CameraControlScheme = "Trackball"
	test.That(t, v.ApplyState(st), test.ShouldBeNil)
	test.That(t, v.State(), test.ShouldResemble, st)
	test.That(t, v.Scheduler().OnlyRenderWhenNecessary(), test.ShouldBeFalse)

	st.CameraControlScheme = "Nope"
	test.That(t, v.ApplyState(st), test.ShouldNotBeNil)
	test.That(t, v.State().CameraControlScheme, test.ShouldEqual, controls.SchemeTrackball)
}

func TestScreenshot(t *testing.T) {
	v := New(logging.NewTestLogger(t), WithSize(64, 48))
	defer func() {
		test.That(t, v.Close(context.Background()), test.ShouldBeNil)
	}()
	requested := v.Scheduler().Dirty()

	var buf bytes.Buffer
	test.That(t, v.Screenshot(&buf), test.ShouldBeNil)
	img, err := png.Decode(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 64)
	test.That(t, img.Bounds().Dy(), test.ShouldEqual, 48)
	test.That(t, v.Scheduler().Dirty(), test.ShouldResemble, requested)

	counting, _, _ := newTestViewer(t)
	test.That(t, errors.Is(counting.Screenshot(&buf), ErrNoSnapshot), test.ShouldBeTrue)
}

func TestRun(t *testing.T) {
	mock := clock.NewMock()
	v, r, _ := newTestViewer(t, WithClock(mock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- v.Run(ctx)
	}()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		mock.Add(render.DefaultFrameInterval)
		test.That(tb, r.count(), test.ShouldEqual, 1)
	})
	// a clean scene ticks without drawing again
	ticks := v.Scheduler().Ticks()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		mock.Add(render.DefaultFrameInterval)
		test.That(tb, v.Scheduler().Ticks(), test.ShouldBeGreaterThan, ticks)
	})
	test.That(t, r.count(), test.ShouldEqual, 1)

	cancel()
	test.That(t, errors.Is(<-done, context.Canceled), test.ShouldBeTrue)
}

func TestRunAfterClose(t *testing.T) {
	v := New(logging.NewTestLogger(t), WithRenderer(&countingRenderer{}))
	test.That(t, v.Close(context.Background()), test.ShouldBeNil)
	err := v.Run(context.Background())
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestDecodeParams(t *testing.T) {
	params, err := DecodeParams[CameraPoseParams](map[string]interface{}{
		"name":        "pose",
		"rotation":    []interface{}{1, 0, 0, 0, 1, 0, 0, 0, 1},
		"translation": []interface{}{"1", 2.5, 3},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.Name, test.ShouldEqual, "pose")
	test.That(t, params.Translation, test.ShouldResemble, []float64{1, 2.5, 3})

	_, err = DecodeParams[PointCloudParams](map[string]interface{}{"depht": "typo.png"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, strings.Contains(err.Error(), "depht"), test.ShouldBeTrue)

	intr, err := DecodeParams[IntrinsicsParams](map[string]interface{}{"fx": 500})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *intr.Fx, test.ShouldEqual, 500)
	test.That(t, intr.Fy, test.ShouldBeNil)
}

func TestSetCameraIntrinsics(t *testing.T) {
	v, _, _ := newTestViewer(t)
	fx := 400.
	test.That(t, v.SetCameraIntrinsics(IntrinsicsParams{Fx: &fx}), test.ShouldBeNil)
	test.That(t, v.Intrinsics().Fx, test.ShouldEqual, 400)
	test.That(t, v.Intrinsics().Fy, test.ShouldEqual, 800)

	bad := -1.
	test.That(t, v.SetCameraIntrinsics(IntrinsicsParams{Fy: &bad}), test.ShouldNotBeNil)
	test.That(t, v.Intrinsics().Fx, test.ShouldEqual, 400)
}
