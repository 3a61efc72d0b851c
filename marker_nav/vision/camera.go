// Package vision adapts an OpenCV camera and ArUco detector to the control loop.
package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"

	"marker-navigation/marker_nav"
)

// ErrFrameRead is returned when the capture device yields no frame.
var ErrFrameRead = errors.New("failed to grab frame")

var dictionaries = map[string]gocv.ArucoDictionaryCode{
	"4x4_50":   gocv.ArucoDict4x4_50,
	"4x4_100":  gocv.ArucoDict4x4_100,
	"4x4_250":  gocv.ArucoDict4x4_250,
	"4x4_1000": gocv.ArucoDict4x4_1000,
	"5x5_250":  gocv.ArucoDict5x5_250,
	"6x6_250":  gocv.ArucoDict6x6_250,
}

// Camera reads frames from a capture device and detects markers in them.
type Camera struct {
	capture  *gocv.VideoCapture
	detector gocv.ArucoDetector
	frame    gocv.Mat
	window   *gocv.Window
}

// OpenCamera opens cfg.Device (index or URL) with the configured dictionary.
func OpenCamera(cfg marker_nav.CameraConfig) (*Camera, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Dictionary))
	if name == "" {
		name = "4x4_250"
	}
	code, ok := dictionaries[name]
	if !ok {
		return nil, fmt.Errorf("unknown marker dictionary %q", cfg.Dictionary)
	}

	capture, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open video capture %q: %w", cfg.Device, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, fmt.Errorf("could not open video stream %q", cfg.Device)
	}

	c := &Camera{
		capture: capture,
		detector: gocv.NewArucoDetectorWithParams(
			gocv.GetPredefinedDictionary(code),
			gocv.NewArucoDetectorParameters(),
		),
		frame: gocv.NewMat(),
	}
	if cfg.Preview {
		c.window = gocv.NewWindow("marker navigation")
	}
	return c, nil
}

// Next grabs one frame and returns the markers detected in it. With the
// preview window open, 'q' or Escape in that window returns
// marker_nav.ErrExitRequested.
func (c *Camera) Next(ctx context.Context) (marker_nav.Detection, error) {
	if err := ctx.Err(); err != nil {
		return marker_nav.Detection{}, err
	}
	if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
		return marker_nav.Detection{}, ErrFrameRead
	}

	corners, ids, _ := c.detector.DetectMarkers(c.frame)
	det := marker_nav.Detection{
		Width:   c.frame.Cols(),
		Height:  c.frame.Rows(),
		Markers: toObservations(ids, corners),
	}

	if c.window != nil {
		c.window.IMShow(c.frame)
		if isExitKey(c.window.WaitKey(1)) {
			return det, marker_nav.ErrExitRequested
		}
	}
	return det, nil
}

// Close releases the capture device, detector and preview window.
func (c *Camera) Close() error {
	if c.window != nil {
		_ = c.window.Close()
	}
	c.detector.Close()
	_ = c.frame.Close()
	return c.capture.Close()
}

// isExitKey reports 'q' or Escape pressed while the preview window has focus.
func isExitKey(code int) bool {
	if code < 0 {
		return false
	}
	switch code & 0xff {
	case 'q', 'Q', 27:
		return true
	}
	return false
}

func toObservations(ids []int, corners [][]gocv.Point2f) []marker_nav.MarkerObservation {
	n := min(len(ids), len(corners))
	out := make([]marker_nav.MarkerObservation, 0, n)
	for i := 0; i < n; i++ {
		pts := make([]marker_nav.Point, len(corners[i]))
		for j, p := range corners[i] {
			pts[j] = marker_nav.Point{X: float64(p.X), Y: float64(p.Y)}
		}
		out = append(out, marker_nav.MarkerObservation{ID: ids[i], Corners: pts})
	}
	return out
}
