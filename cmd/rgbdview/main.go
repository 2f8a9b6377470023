// Package main is the rgbdview command: it serves the viewer with its settings panel and
// offers offline tools for the files the viewer reads.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"go.viam.com/rgbdview/config"
	"go.viam.com/rgbdview/logging"
	"go.viam.com/rgbdview/pointcloud"
	"go.viam.com/rgbdview/rimage"
	"go.viam.com/rgbdview/rimage/transform"
	"go.viam.com/rgbdview/viewer"
	"go.viam.com/rgbdview/web"
)

const (
	flagDebug       = "debug"
	flagLogFile     = "log-file"
	flagScene       = "scene"
	flagAddr        = "addr"
	flagWidth       = "width"
	flagHeight      = "height"
	flagWatch       = "watch"
	flagRoot        = "root"
	flagAllowOrigin = "allow-origin"
	flagDepth       = "depth"
	flagColor       = "color"
	flagStrideX     = "stride-x"
	flagStrideY     = "stride-y"
	flagDepthFormat = "depth-format"
	flagPointSize   = "point-size"
	flagIntrinsics  = "intrinsics"
	flagBinary      = "binary"
)

var logger = logging.NewBlankLogger("rgbdview")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "rgbdview",
		Usage: "view RGB-D point clouds, images and camera poses",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated by size",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("rgbdview")
			} else {
				logger = logging.NewLogger("rgbdview")
			}
			if path := c.String(flagLogFile); path != "" {
				logger.AddAppender(logging.NewWriterAppender(&lumberjack.Logger{
					Filename:   path,
					MaxSize:    100,
					MaxBackups: 2,
					Compress:   true,
				}))
			}
			logging.ReplaceGlobal(logger)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the viewer and its settings panel",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagScene, Usage: "load the scene in `FILE`"},
					&cli.StringFlag{Name: flagAddr, Value: "localhost:8080", Usage: "listen on `ADDRESS`"},
					&cli.IntFlag{Name: flagWidth, Value: viewer.DefaultWidth, Usage: "frame width in pixels"},
					&cli.IntFlag{Name: flagHeight, Value: viewer.DefaultHeight, Usage: "frame height in pixels"},
					&cli.BoolFlag{Name: flagWatch, Usage: "reload the scene file when it changes"},
					&cli.StringFlag{
						Name:  flagRoot,
						Usage: "only load files under `DIR` for panel requests (default: the scene's directory, else the working directory)",
					},
					&cli.StringSliceFlag{Name: flagAllowOrigin, Usage: "let pages from `ORIGIN` call the API"},
				},
				Action: serveAction,
			},
			{
				Name:      "convert-depth",
				Usage:     "convert a raw 16-bit depth dump into a UInt16 depth PNG",
				ArgsUsage: "<input.raw> <output.png>",
				Action:    convertDepthAction,
			},
			{
				Name:      "export-pcd",
				Usage:     "build a point cloud from a depth and color image and write it as PCD",
				ArgsUsage: "<output.pcd>",
				Flags: append(cloudFlags(),
					&cli.BoolFlag{Name: flagBinary, Usage: "write binary instead of ascii data"},
				),
				Action: exportPCDAction,
			},
			{
				Name:      "inspect",
				Usage:     "describe a scene file, or a point cloud built from images",
				ArgsUsage: "[scene.json]",
				Flags:     cloudFlags(),
				Action:    inspectAction,
			},
		},
	}
}

func cloudFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagDepth, Usage: "depth image `FILE`"},
		&cli.StringFlag{Name: flagColor, Usage: "color image `FILE`"},
		&cli.IntFlag{Name: flagStrideX, Value: pointcloud.DefaultStride, Usage: "sample every Nth column"},
		&cli.IntFlag{Name: flagStrideY, Value: pointcloud.DefaultStride, Usage: "sample every Nth row"},
		&cli.StringFlag{Name: flagDepthFormat, Value: string(rimage.DepthFormatByte), Usage: "Byte or UInt16"},
		&cli.Float64Flag{Name: flagPointSize, Value: pointcloud.DefaultPointSize, Usage: "rendered point size"},
		&cli.StringFlag{Name: flagIntrinsics, Usage: "camera intrinsics JSON `FILE`"},
	}
}

func serveAction(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	v := viewer.New(logger.Sublogger("viewer"), viewer.WithSize(c.Int(flagWidth), c.Int(flagHeight)))
	root, err := servedRoot(c)
	if err != nil {
		return multierr.Combine(err, v.Close(ctx))
	}
	srv, err := web.NewServer(v, logger.Sublogger("web"),
		web.WithRoot(root), web.WithAllowedOrigins(c.StringSlice(flagAllowOrigin)...))
	if err != nil {
		return multierr.Combine(err, v.Close(ctx))
	}
	defer func() {
		goutils.UncheckedError(srv.Close())
		goutils.UncheckedError(v.Close(context.Background()))
	}()

	if path := c.String(flagScene); path != "" {
		scene, err := config.Read(ctx, path, logger)
		if err != nil {
			return err
		}
		if err := config.Apply(ctx, v, scene); err != nil {
			logger.Warnw("scene loaded with errors", "error", err)
		}
		if c.Bool(flagWatch) {
			current := scene
			watcher, err := config.Watch(path, config.DefaultWatchDelay, logger.Sublogger("watcher"),
				func(next *config.Scene, err error) {
					if err != nil {
						return
					}
					if err := config.Replace(ctx, v, current, next); err != nil {
						logger.Warnw("scene reloaded with errors", "error", err)
					}
					current = next
				})
			if err != nil {
				return err
			}
			defer goutils.UncheckedErrorFunc(watcher.Close)
		}
	}

	listener, err := net.Listen("tcp", c.String(flagAddr))
	if err != nil {
		return err
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := v.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "frame loop stopped")
		}
		return nil
	})
	group.Go(func() error {
		return srv.Serve(groupCtx, listener)
	})
	return group.Wait()
}

func servedRoot(c *cli.Context) (string, error) {
	if dir := c.String(flagRoot); dir != "" {
		return dir, nil
	}
	if path := c.String(flagScene); path != "" {
		return filepath.Dir(path), nil
	}
	return os.Getwd()
}

func convertDepthAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: convert-depth <input.raw> <output.png>")
	}
	//nolint:gosec
	in, err := os.Open(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(in.Close)

	depth, err := rimage.ReadRawDepth(in)
	if err != nil {
		return err
	}
	if err := rimage.WriteImageToFile(c.Args().Get(1), depth.ToNRGBA()); err != nil {
		return err
	}
	logger.Infow("depth converted", "width", depth.Width, "height", depth.Height, "output", c.Args().Get(1))
	return nil
}

func buildCloud(c *cli.Context) (*pointcloud.PointCloud, error) {
	if c.String(flagDepth) == "" || c.String(flagColor) == "" {
		return nil, errors.Errorf("--%s and --%s are required", flagDepth, flagColor)
	}
	intrinsics := transform.DefaultIntrinsics()
	if path := c.String(flagIntrinsics); path != "" {
		var err error
		if intrinsics, err = transform.NewPinholeCameraIntrinsicsFromJSONFile(path); err != nil {
			return nil, err
		}
	}
	cfg := pointcloud.BuildConfig{
		Name:        c.String(flagDepth),
		StrideX:     c.Int(flagStrideX),
		StrideY:     c.Int(flagStrideY),
		DepthFormat: rimage.ParseDepthFormat(c.String(flagDepthFormat)),
		PointSize:   c.Float64(flagPointSize),
	}
	return pointcloud.BuildFromFiles(c.Context, nil, c.String(flagDepth), c.String(flagColor), intrinsics, cfg).Await(c.Context)
}

func exportPCDAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: export-pcd [flags] <output.pcd>")
	}
	pc, err := buildCloud(c)
	if err != nil {
		return err
	}
	pcdType := pointcloud.PCDAscii
	if c.Bool(flagBinary) {
		pcdType = pointcloud.PCDBinary
	}
	if err := pointcloud.WriteToPCDFile(pc, c.Args().First(), pcdType); err != nil {
		return err
	}
	logger.Infow("point cloud exported", "points", pc.Size(), "output", c.Args().First())
	return nil
}

func inspectAction(c *cli.Context) error {
	if c.NArg() == 1 {
		scene, err := config.Read(c.Context, c.Args().First(), logger)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, scene.String())
		return nil
	}

	pc, err := buildCloud(c)
	if err != nil {
		return err
	}
	summary, err := pointcloud.Summarize(pc)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Axis", "Min", "Max", "Mean", "Std dev"})
	t.AppendRow(table.Row{"x", summary.Min.X, summary.Max.X, summary.Mean.X, summary.StdDev.X})
	t.AppendRow(table.Row{"y", summary.Min.Y, summary.Max.Y, summary.Mean.Y, summary.StdDev.Y})
	t.AppendRow(table.Row{"z", summary.Min.Z, summary.Max.Z, summary.Mean.Z, summary.StdDev.Z})
	t.AppendFooter(table.Row{"points", summary.Count})
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}
