package marker_nav

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrMalformedObservation marks an observation that cannot yield geometry.
var ErrMalformedObservation = errors.New("malformed marker observation")

// ComputeGeometry derives center, orientation and size metric from the corner quad.
//
// Orientation follows the corner[0]->corner[1] edge and the size metric is the
// corner[0]-corner[2] diagonal. Both conventions are relied on downstream.
func ComputeGeometry(obs MarkerObservation) (MarkerGeometry, error) {
	if len(obs.Corners) != 4 {
		return MarkerGeometry{}, fmt.Errorf("%w: marker %d has %d corners", ErrMalformedObservation, obs.ID, len(obs.Corners))
	}

	var corners [4]r2.Vec
	var sum r2.Vec
	for i, c := range obs.Corners {
		if !finite(c.X) || !finite(c.Y) {
			return MarkerGeometry{}, fmt.Errorf("%w: marker %d corner %d is not finite", ErrMalformedObservation, obs.ID, i)
		}
		corners[i] = r2.Vec{X: c.X, Y: c.Y}
		sum = r2.Add(sum, corners[i])
	}

	mean := r2.Scale(0.25, sum)
	edge := r2.Sub(corners[1], corners[0])
	angle := math.Atan2(edge.Y, edge.X) * 180 / math.Pi

	return MarkerGeometry{
		ID:                 obs.ID,
		Center:             PixelPoint{X: int(mean.X), Y: int(mean.Y)},
		OrientationDegrees: int(angle),
		SizeMetric:         r2.Norm(r2.Sub(corners[0], corners[2])),
	}, nil
}

// GeometryMap is the per-frame id -> geometry lookup.
type GeometryMap map[int]MarkerGeometry

// BuildGeometryMap computes geometry for every usable observation in a frame.
//
// Malformed observations and ids in reserved are skipped; the returned count is
// the number of malformed observations that were dropped.
func BuildGeometryMap(observations []MarkerObservation, reserved map[int]struct{}) (GeometryMap, int) {
	out := make(GeometryMap, len(observations))
	dropped := 0
	for _, obs := range observations {
		if _, skip := reserved[obs.ID]; skip {
			continue
		}
		g, err := ComputeGeometry(obs)
		if err != nil {
			dropped++
			continue
		}
		out[obs.ID] = g
	}
	return out, dropped
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
