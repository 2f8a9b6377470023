package config

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// String prints a table of every object the scene adds, with its kind, source and placement.
func (s *Scene) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Name", "Kind", "Source", "Placement"})
	row := 0
	for _, pc := range s.PointClouds {
		row++
		stride := fmt.Sprintf("stride %dx%d", max(pc.StrideX, 1), max(pc.StrideY, 1))
		t.AppendRow(table.Row{row, pc.Name, "point cloud", pc.DepthPath + " + " + pc.ColorPath, stride})
	}
	for _, img := range s.Images {
		row++
		t.AppendRow(table.Row{row, img.Name, "image", img.Path, placement(img.Translation)})
	}
	for _, pose := range s.CameraPoses {
		row++
		t.AppendRow(table.Row{row, pose.Name, "camera pose", "", placement(pose.Translation)})
	}
	return t.Render()
}

func placement(translation []float64) string {
	if len(translation) != 3 {
		return "origin"
	}
	return fmt.Sprintf("(%g, %g, %g)", translation[0], translation[1], translation[2])
}
