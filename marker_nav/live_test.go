package marker_nav

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, mode Mode, src MarkerSource, keys KeySource) (*Runner, *recordingTransport) {
	t.Helper()
	d, tr, _ := newTestDispatcher(t, testWatchdog)
	metrics, err := NewMetrics(nil)
	require.NoError(t, err)
	nav := NewNavigator(NavigatorConfig{TargetID: 72, SizeStopThreshold: 200, ReservedIDs: []int{24, 48}})
	return &Runner{
		Source:     src,
		Keys:       keys,
		Navigator:  nav,
		Arbiter:    NewArbiter(mode, d, zerolog.Nop(), metrics),
		Dispatcher: d,
		Metrics:    metrics,
		Log:        zerolog.Nop(),
	}, tr
}

func frame(markers ...MarkerObservation) Detection {
	return Detection{Width: 300, Height: 240, Markers: markers}
}

func drivingFrames() []Detection {
	return []Detection{
		frame(square(72, 40, 100, 20)),  // center x=50
		frame(square(72, 140, 100, 20)), // center x=150
		frame(square(72, 240, 100, 20)), // center x=250
		frame(square(72, 100, 40, 160)), // diagonal ~226
		frame(square(5, 140, 100, 20)),
		frame(square(24, 140, 100, 20)),
	}
}

func runWithTimeout(t *testing.T, ctx context.Context, r *Runner) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
		return nil
	}
}

func TestRunner_AutonomousDrivesTowardTarget(t *testing.T) {
	src := &scriptedSource{frames: drivingFrames(), err: io.ErrUnexpectedEOF}
	r, tr := newTestRunner(t, ModeAutonomous, src, nil)

	err := runWithTimeout(t, context.Background(), r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInputStream))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

	// Left, forward, right, close enough, lost, reserved only, then the final STOP.
	assert.Equal(t, "LFRSSSS", tr.Tokens())
	assert.True(t, tr.Closed())
}

func TestRunner_ManualModeIgnoresNavigator(t *testing.T) {
	src := &scriptedSource{frames: drivingFrames(), err: io.EOF}
	r, tr := newTestRunner(t, ModeManual, src, nil)

	err := runWithTimeout(t, context.Background(), r)
	assert.ErrorIs(t, err, ErrInputStream)
	assert.Equal(t, "S", tr.Tokens())
}

func TestRunner_ExitKeyStops(t *testing.T) {
	keys := scriptedKeys{events: []KeyEvent{press(KeyExit)}}
	r, tr := newTestRunner(t, ModeAutonomous, idleSource{}, keys)

	require.NoError(t, runWithTimeout(t, context.Background(), r))
	assert.Equal(t, "S", tr.Tokens())
}

func TestRunner_ManualArrowThenExit(t *testing.T) {
	keys := scriptedKeys{events: []KeyEvent{press(KeyUp), press(KeyExit)}}
	r, tr := newTestRunner(t, ModeManual, idleSource{}, keys)

	require.NoError(t, runWithTimeout(t, context.Background(), r))
	assert.Equal(t, "FS", tr.Tokens())
}

func TestRunner_ParentCancel(t *testing.T) {
	r, tr := newTestRunner(t, ModeAutonomous, idleSource{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	require.NoError(t, runWithTimeout(t, ctx, r))
	assert.Equal(t, "S", tr.Tokens())
}

func TestRunner_MissingComponent(t *testing.T) {
	r := &Runner{Source: idleSource{}}
	assert.Error(t, r.Run(context.Background()))
}

func TestRunner_SourceExitRequest(t *testing.T) {
	src := &scriptedSource{frames: drivingFrames()[:1], err: ErrExitRequested}
	r, tr := newTestRunner(t, ModeAutonomous, src, nil)

	require.NoError(t, runWithTimeout(t, context.Background(), r))
	assert.Equal(t, "LS", tr.Tokens())
}
