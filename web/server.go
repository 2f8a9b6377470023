package web

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io/fs"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/xfmoulet/qoi"
	"go.uber.org/multierr"
	"goji.io"
	"goji.io/pat"

	"go.viam.com/rgbdview/logging"
	"go.viam.com/rgbdview/pointcloud"
	"go.viam.com/rgbdview/utils"
	"go.viam.com/rgbdview/viewer"
	"go.viam.com/rgbdview/viz/controls"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

var (
	// ErrPathOutsideRoot is returned when a request names a file outside the served root, or
	// when the server has no root and so loads no files at all.
	ErrPathOutsideRoot = errors.New("path is outside the served root")
	// ErrNotJSON is returned for request bodies not sent as application/json.
	ErrNotJSON = errors.New("request body must be application/json")
)

// Server is the HTTP face of a Viewer.
type Server struct {
	logger      logging.Logger
	viewer      *viewer.Viewer
	hub         *stateHub
	unsubscribe func()
	upgrader    websocket.Upgrader
	cors        *cors.Cors
	handler     http.Handler

	rootDir string
	origins []string
	root    *os.Root
}

// Option configures a Server.
type Option func(*Server)

// WithRoot lets requests load images from files under dir, and nowhere else. Without it the
// server refuses every request that names a file.
func WithRoot(dir string) Option {
	return func(s *Server) {
		s.rootDir = dir
	}
}

// WithAllowedOrigins lists the foreign origins whose pages may call the API and open the
// state websocket. Same-origin requests from the served panel are always allowed.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = append(s.origins, origins...)
	}
}

// NewServer builds the panel routes for v. Close detaches the server from v.
func NewServer(v *viewer.Viewer, logger logging.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		logger: logger,
		viewer: v,
		hub:    newStateHub(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rootDir != "" {
		abs, err := filepath.Abs(s.rootDir)
		if err != nil {
			return nil, err
		}
		if s.root, err = os.OpenRoot(abs); err != nil {
			return nil, pkgerrors.Wrap(err, "opening served root")
		}
	}
	corsOpts := cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}
	if len(s.origins) == 0 {
		// an empty list means "*" to cors
		corsOpts.AllowOriginFunc = func(string) bool { return false }
	}
	s.cors = cors.New(corsOpts)
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	api := goji.SubMux()
	api.HandleFunc(pat.Get("/state"), s.getState)
	api.HandleFunc(pat.Post("/state"), s.postState)
	api.HandleFunc(pat.Get("/frame"), s.getFrame)
	api.HandleFunc(pat.Get("/screenshot"), s.getScreenshot)
	api.HandleFunc(pat.Post("/camera/move"), s.postCameraMove)
	api.HandleFunc(pat.Post("/camera/reset"), s.postCameraReset)
	api.HandleFunc(pat.Get("/objects"), s.getObjects)
	api.HandleFunc(pat.Get("/objects/:name/pcd"), s.getObjectPCD)
	api.HandleFunc(pat.Delete("/objects/:name"), s.deleteObject)
	api.HandleFunc(pat.Post("/pointclouds"), s.postPointCloud)
	api.HandleFunc(pat.Post("/images"), s.postImage)
	api.HandleFunc(pat.Post("/cameraposes"), s.postCameraPose)
	api.HandleFunc(pat.Get("/ws"), s.serveWebsocket)

	static, err := fs.Sub(AppFS, "static")
	if err != nil {
		return nil, err
	}
	mux := goji.NewMux()
	mux.Handle(pat.New("/api/*"), s.cors.Handler(api))
	mux.Handle(pat.Get("/*"), http.FileServer(http.FS(static)))
	s.handler = mux

	s.unsubscribe = v.Subscribe(s.hub)
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve serves on listener until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()
	s.logger.Infow("serving", "address", listener.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.closeAll()
	err := httpServer.Shutdown(shutdownCtx)
	if serveErr := <-errCh; !errors.Is(serveErr, http.ErrServerClosed) {
		err = multierr.Combine(err, serveErr)
	}
	return err
}

// Close detaches from the viewer and drops every panel connection.
func (s *Server) Close() error {
	s.unsubscribe()
	s.hub.closeAll()
	if s.root != nil {
		return s.root.Close()
	}
	return nil
}

// checkOrigin admits clients that send no Origin (not a browser), pages served by this server,
// and the configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && u.Host == r.Host {
		return true
	}
	return s.cors.OriginAllowed(r)
}

// resolvePath maps a requested file onto the served root. Relative paths are taken from the
// root. Absolute paths must already lie inside it, and symlinks may not lead out of it.
func (s *Server) resolvePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if s.root == nil {
		return "", pkgerrors.Wrapf(ErrPathOutsideRoot, "no root configured for %q", path)
	}
	rel := filepath.Clean(path)
	if filepath.IsAbs(rel) {
		var err error
		if rel, err = filepath.Rel(s.root.Name(), rel); err != nil {
			return "", pkgerrors.Wrapf(ErrPathOutsideRoot, "%q", path)
		}
	}
	if !filepath.IsLocal(rel) {
		return "", pkgerrors.Wrapf(ErrPathOutsideRoot, "%q", path)
	}
	if _, err := s.root.Stat(rel); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", pkgerrors.Wrapf(err, "no file %q", path)
		}
		return "", pkgerrors.Wrapf(ErrPathOutsideRoot, "%q: %v", path, err)
	}
	return filepath.Join(s.root.Name(), rel), nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", utils.MimeTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debugw("writing response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, viewer.ErrObjectNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pointcloud.ErrDimensionMismatch), errors.Is(err, controls.ErrUnknownControlScheme):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, viewer.ErrNoSnapshot):
		status = http.StatusNotImplemented
	case errors.Is(err, viewer.ErrHelperObject):
		status = http.StatusConflict
	case errors.Is(err, ErrPathOutsideRoot):
		status = http.StatusForbidden
	case errors.Is(err, ErrNotJSON):
		status = http.StatusUnsupportedMediaType
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeBody only takes JSON bodies, so a cross-origin page cannot send one without passing
// the CORS preflight.
func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) error {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil ||
		mediaType != utils.MimeTypeJSON {
		return ErrNotJSON
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(out); err != nil {
		return pkgerrors.Wrap(err, "invalid request body")
	}
	return nil
}

func decodeParams[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var raw map[string]interface{}
	if err := decodeBody(w, r, &raw); err != nil {
		var zero T
		return zero, err
	}
	return viewer.DecodeParams[T](raw)
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.viewer.State())
}

func (s *Server) postState(w http.ResponseWriter, r *http.Request) {
	st := s.viewer.State()
	if err := decodeBody(w, r, &st); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.viewer.ApplyState(st); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.viewer.State())
}

func (s *Server) writeImage(w http.ResponseWriter, r *http.Request, img image.Image) {
	var err error
	if r.URL.Query().Get("format") == "qoi" {
		w.Header().Set("Content-Type", utils.MimeTypeQOI)
		err = qoi.Encode(w, img)
	} else {
		w.Header().Set("Content-Type", utils.MimeTypePNG)
		err = png.Encode(w, img)
	}
	if err != nil {
		s.logger.Debugw("writing frame", "error", err)
	}
}

func (s *Server) getFrame(w http.ResponseWriter, r *http.Request) {
	img, err := s.viewer.NextFrame()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeImage(w, r, img)
}

func (s *Server) getScreenshot(w http.ResponseWriter, r *http.Request) {
	img, err := s.viewer.Frame()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="screenshot.png"`)
	s.writeImage(w, r, img)
}

func (s *Server) postCameraMove(w http.ResponseWriter, r *http.Request) {
	var move viewer.CameraMove
	if err := decodeBody(w, r, &move); err != nil {
		s.writeError(w, err)
		return
	}
	s.viewer.MoveCamera(move)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postCameraReset(w http.ResponseWriter, r *http.Request) {
	s.viewer.ResetCamera()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getObjects(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.viewer.ObjectNames())
}

func (s *Server) getObjectPCD(w http.ResponseWriter, r *http.Request) {
	name := pat.Param(r, "name")
	obj, err := s.viewer.GetObjectByName(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	pc, ok := obj.(*pointcloud.PointCloud)
	if !ok {
		s.writeError(w, pkgerrors.Errorf("%q is not a point cloud", name))
		return
	}
	w.Header().Set("Content-Type", utils.MimeTypePCD)
	if err := pointcloud.ToPCD(pc, w, pointcloud.PCDBinary); err != nil {
		s.logger.Debugw("writing pcd", "name", name, "error", err)
	}
}

func (s *Server) deleteObject(w http.ResponseWriter, r *http.Request) {
	if err := s.viewer.RemoveObject(pat.Param(r, "name")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postPointCloud(w http.ResponseWriter, r *http.Request) {
	params, err := decodeParams[viewer.PointCloudParams](w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if params.DepthPath, err = s.resolvePath(params.DepthPath); err != nil {
		s.writeError(w, err)
		return
	}
	if params.ColorPath, err = s.resolvePath(params.ColorPath); err != nil {
		s.writeError(w, err)
		return
	}
	pc, err := s.viewer.DisplayPointCloud(r.Context(), params).Await(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"name": pc.Name(), "points": pc.Size()})
}

func (s *Server) postImage(w http.ResponseWriter, r *http.Request) {
	params, err := decodeParams[viewer.ImageParams](w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if params.Path, err = s.resolvePath(params.Path); err != nil {
		s.writeError(w, err)
		return
	}
	plane, err := s.viewer.DisplayImage(r.Context(), params).Await(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"name": plane.Name(), "width": plane.Width, "height": plane.Height,
	})
}

func (s *Server) postCameraPose(w http.ResponseWriter, r *http.Request) {
	params, err := decodeParams[viewer.CameraPoseParams](w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	inst, err := s.viewer.DisplayCameraPose(params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"name": inst.Name()})
}

// serveWebsocket sends the current state, then every change. Messages from the panel are
// states to apply.
func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debugw("websocket upgrade failed", "error", err)
		return
	}
	if err := s.hub.add(conn, s.viewer.State()); err != nil {
		s.logger.Debugw("panel connection failed", "error", err)
		//nolint:errcheck
		conn.Close()
		return
	}
	defer s.hub.remove(conn)

	for {
		var st viewer.State
		if err := conn.ReadJSON(&st); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debugw("panel disconnected", "error", err)
			}
			return
		}
		// rejected values are already reported, and the panel is resynced by the viewer
		if err := s.viewer.ApplyState(st); err != nil {
			s.logger.Debugw("panel state rejected", "error", err)
		}
	}
}
