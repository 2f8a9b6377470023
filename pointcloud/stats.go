package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
)

// Summary describes the spatial extent of a cloud.
type Summary struct {
	Count  int       `json:"count"`
	Min    r3.Vector `json:"min"`
	Max    r3.Vector `json:"max"`
	Mean   r3.Vector `json:"mean"`
	StdDev r3.Vector `json:"std_dev"`
}

// Summarize computes per-axis statistics. An empty cloud has a zero Summary.
func Summarize(pc *PointCloud) (Summary, error) {
	summary := Summary{Count: pc.Size()}
	if pc.Size() == 0 {
		return summary, nil
	}

	axes := [3]stats.Float64Data{}
	for i := range axes {
		axes[i] = make(stats.Float64Data, 0, pc.Size())
	}
	for _, p := range pc.points {
		axes[0] = append(axes[0], p.X)
		axes[1] = append(axes[1], p.Y)
		axes[2] = append(axes[2], p.Z)
	}

	var mins, maxs, means, devs [3]float64
	for i, data := range axes {
		var err error
		if mins[i], err = data.Min(); err != nil {
			return Summary{}, err
		}
		if maxs[i], err = data.Max(); err != nil {
			return Summary{}, err
		}
		if means[i], err = data.Mean(); err != nil {
			return Summary{}, err
		}
		if devs[i], err = data.StandardDeviation(); err != nil {
			return Summary{}, err
		}
	}
	summary.Min = r3.Vector{X: mins[0], Y: mins[1], Z: mins[2]}
	summary.Max = r3.Vector{X: maxs[0], Y: maxs[1], Z: maxs[2]}
	summary.Mean = r3.Vector{X: means[0], Y: means[1], Z: means[2]}
	summary.StdDev = r3.Vector{X: devs[0], Y: devs[1], Z: devs[2]}
	return summary, nil
}
