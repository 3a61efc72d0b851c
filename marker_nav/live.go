package marker_nav

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrInputStream wraps failures of the marker source. It ends the control loop.
var ErrInputStream = errors.New("marker input stream failed")

// ErrExitRequested ends the control loop cleanly. A marker source with its own
// key handling, such as a preview window, returns it on an exit key.
var ErrExitRequested = errors.New("exit requested")

// MarkerSource yields the detected markers of the next camera frame.
// Next blocks for at most one frame interval.
type MarkerSource interface {
	Next(ctx context.Context) (Detection, error)
}

// Runner wires the frame loop, the keyboard consumer and the dispatcher together.
type Runner struct {
	Source     MarkerSource
	Keys       KeySource // optional
	Navigator  *Navigator
	Arbiter    *Arbiter
	Dispatcher *Dispatcher
	Viz        *VizMetrics
	Metrics    *Metrics
	Log        zerolog.Logger
}

// Run drives the robot until ctx is cancelled, an exit key is pressed or the
// marker source fails. Run owns the dispatcher: it always closes it on the way
// out, which sends a final STOP and releases the transport.
func (r *Runner) Run(ctx context.Context) (err error) {
	if r.Source == nil || r.Navigator == nil || r.Arbiter == nil || r.Dispatcher == nil {
		return errors.New("runner is missing a component")
	}
	defer func() {
		if cerr := r.Dispatcher.Close(); cerr != nil {
			r.Log.Warn().Err(cerr).Msg("close transport")
		}
		r.Log.Info().Msg("control loop stopped, final STOP sent")
	}()

	g, gctx := errgroup.WithContext(ctx)
	events := make(chan KeyEvent, 32)

	if r.Keys != nil {
		g.Go(func() error {
			if err := r.Keys.Listen(gctx, events); err != nil {
				r.Log.Warn().Err(err).Msg("keyboard listener stopped")
			}
			return nil
		})
	}
	g.Go(func() error { return r.consumeKeys(gctx, events) })
	g.Go(func() error { return r.frameLoop(gctx) })

	err = g.Wait()
	switch {
	case errors.Is(err, ErrExitRequested):
		r.Log.Info().Msg("exit requested")
		return nil
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return nil
	}
	return err
}

// consumeKeys applies keyboard events in arrival order.
func (r *Runner) consumeKeys(ctx context.Context, events <-chan KeyEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			r.Log.Debug().Str("key", ev.Key.String()).Bool("release", ev.Action == KeyRelease).Msg("key event")
			if r.Arbiter.HandleKey(ev) {
				return ErrExitRequested
			}
		}
	}
}

func (r *Runner) frameLoop(ctx context.Context) error {
	reserved := r.Navigator.reservedSet()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		det, err := r.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrExitRequested) {
				return ErrExitRequested
			}
			r.Log.Error().Err(err).Msg("marker source failed")
			return fmt.Errorf("%w: %w", ErrInputStream, err)
		}
		r.processFrame(det, reserved)
	}
}

// processFrame runs one detection through geometry, navigator and arbiter.
func (r *Runner) processFrame(det Detection, reserved map[int]struct{}) {
	snapshots, dropped := BuildGeometryMap(det.Markers, reserved)
	decision := r.Navigator.Explain(snapshots, det.Width, det.Height)
	forwarded := r.Arbiter.Autonomous(decision.Command)

	r.Metrics.frame(dropped)
	r.Viz.Update(decision, r.Arbiter.Mode(), forwarded)

	if e := r.Log.Debug(); e.Enabled() {
		e = e.Int("markers", len(det.Markers)).Int("dropped", dropped).
			Str("decision", decision.Command.String()).Str("reason", string(decision.Reason)).
			Bool("forwarded", forwarded)
		if t := decision.Target; t != nil {
			e = e.Int("cx", t.Center.X).Int("cy", t.Center.Y).
				Float64("size", t.SizeMetric).Int("angle", t.OrientationDegrees)
		}
		e.Msg("frame")
	}
}
