package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"car-animator/internal/anim"
	"car-animator/internal/directions"
	"car-animator/internal/geo"
	mmetrics "car-animator/internal/metrics"
	"car-animator/internal/placemark"
	"car-animator/internal/publisher"
)

// PlacemarkSource yields the ordered placemark list: origin, waypoints, destination.
type PlacemarkSource interface {
	FetchPlacemarks(ctx context.Context) ([]placemark.Placemark, error)
}

// RouteSource returns the encoded polyline of a route through the placemarks.
type RouteSource interface {
	FetchRoute(ctx context.Context, pms []placemark.Placemark) (string, error)
}

// Publisher ships route geometry and marker steps to subscribers.
type Publisher interface {
	PublishStep(vehicle string, msg publisher.StepMessage) error
	PublishRoute(vehicle string, fc *geojson.FeatureCollection) error
}

// Options configure a Runner. Now defaults to time.Now.
type Options struct {
	Vehicle string
	Loop    bool
	Now     func() time.Time
}

type Runner struct {
	places   PlacemarkSource
	routes   RouteSource
	pub      Publisher
	animator *anim.Animator
	metrics  *mmetrics.Collector
	log      *zap.Logger
	vehicle  string
	loop     bool
	now      func() time.Time

	mu      sync.Mutex
	current *Run
}

// Run is one animation of the vehicle over a freshly fetched route.
type Run struct {
	ID        string
	StartedAt time.Time
	Path      geo.Path
	Route     *geojson.FeatureCollection
	handle    *anim.Handle
}

// Status is what the HTTP surface reports about the current run.
type Status struct {
	RunID     string     `json:"runId"`
	Vehicle   string     `json:"vehicle"`
	StartedAt time.Time  `json:"startedAt"`
	State     anim.State `json:"state"`
}

func NewRunner(places PlacemarkSource, routes RouteSource, pub Publisher, animator *anim.Animator, metrics *mmetrics.Collector, log *zap.Logger, opts Options) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Vehicle == "" {
		opts.Vehicle = "car-1"
	}
	return &Runner{
		places:   places,
		routes:   routes,
		pub:      pub,
		animator: animator,
		metrics:  metrics,
		log:      log,
		vehicle:  opts.Vehicle,
		loop:     opts.Loop,
		now:      opts.Now,
	}
}

// Run animates the vehicle until the destination is reached, or forever when
// looping, and returns ctx.Err() once ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	for {
		run, err := r.Start(ctx)
		if err != nil {
			return err
		}
		if err := r.Wait(ctx, run); err != nil {
			return err
		}
		if !r.loop {
			return nil
		}
	}
}

// Start fetches placemarks and the route, publishes the route geometry and
// starts the marker animation. It does not wait for the animation.
func (r *Runner) Start(ctx context.Context) (*Run, error) {
	pms, err := r.places.FetchPlacemarks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch placemarks: %w", err)
	}
	origin, _, err := placemark.Endpoints(pms)
	if err != nil {
		return nil, err
	}
	encoded, err := r.routes.FetchRoute(ctx, pms)
	if err != nil {
		return nil, fmt.Errorf("fetch route: %w", err)
	}
	path, err := directions.DecodePolyline(encoded)
	if err != nil {
		return nil, err
	}
	waypoints := placemark.Waypoints(pms)
	start, _ := origin.Coordinate()

	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: r.now(),
		Path:      path,
		Route:     RouteFeatures(path, pms),
	}
	log := r.log.With(zap.String("run", run.ID), zap.String("vehicle", r.vehicle))

	if err := r.pub.PublishRoute(r.vehicle, run.Route); err != nil {
		log.Error("publish route", zap.Error(err))
	}
	if r.metrics != nil {
		r.metrics.PendingWaypoints.Set(float64(len(waypoints)))
	}

	h, err := r.animator.Start(path, waypoints, start, r.stepHandler(run, log))
	if err != nil {
		log.Warn("route not animated", zap.Int("points", len(path)), zap.Error(err))
		if r.metrics != nil {
			r.metrics.PendingWaypoints.Set(0)
		}
		return nil, err
	}
	run.handle = h

	r.mu.Lock()
	r.current = run
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.AnimationsStarted.Inc()
		r.metrics.ActiveAnimations.Set(1)
	}
	log.Info("animation started",
		zap.Int("points", len(path)),
		zap.Int("waypoints", len(waypoints)),
		zap.Int("placemarks", len(pms)),
	)
	return run, nil
}

// Wait blocks until run ends. Cancelling ctx cancels the animation.
func (r *Runner) Wait(ctx context.Context, run *Run) error {
	select {
	case <-run.handle.Done():
	case <-ctx.Done():
		run.handle.Cancel()
	}
	cancelled := errors.Is(run.handle.Err(), anim.ErrCancelled)
	if r.metrics != nil {
		if cancelled {
			r.metrics.AnimationsCancelled.Inc()
		} else {
			r.metrics.AnimationsFinished.Inc()
		}
		r.metrics.ActiveAnimations.Set(0)
	}
	r.log.Info("animation ended",
		zap.String("run", run.ID),
		zap.Bool("cancelled", cancelled),
		zap.Int("cursor", run.handle.Snapshot().Cursor),
	)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (r *Runner) stepHandler(run *Run, log *zap.Logger) anim.StepFunc {
	cum := run.Path.CumDistances()
	total := 0.0
	if len(cum) > 0 {
		total = cum[len(cum)-1]
	}
	var prevDelay time.Duration
	return func(st anim.Step) {
		tickStart := time.Now()

		progress := 1.0
		if total > 0 {
			progress = cum[st.Cursor] / total
		}
		speed := 0.0
		if prevDelay > 0 {
			speed = geo.Distance(st.From, st.To) / prevDelay.Seconds()
		}
		prevDelay = st.Delay

		msg := publisher.StepMessage{
			RunID:     run.ID,
			Vehicle:   r.vehicle,
			Timestamp: r.now(),
			Cursor:    st.Cursor,
			FromLat:   st.From.Lat,
			FromLon:   st.From.Lon,
			Lat:       st.To.Lat,
			Lon:       st.To.Lon,
			Bearing:   st.Bearing,
			Dwell:     st.Dwell,
			DelayMs:   st.Delay.Milliseconds(),
			Progress:  progress,
			SpeedMps:  speed,
			Final:     st.Final,
		}
		if err := r.pub.PublishStep(r.vehicle, msg); err != nil {
			log.Error("publish step", zap.Int("cursor", st.Cursor), zap.Error(err))
		}
		if st.Dwell {
			log.Info("waypoint reached",
				zap.Int("cursor", st.Cursor),
				zap.Float64("lat", st.To.Lat),
				zap.Float64("lon", st.To.Lon),
				zap.Duration("dwell", st.Delay),
			)
		} else {
			log.Debug("step",
				zap.Int("cursor", st.Cursor),
				zap.Float64("bearing", st.Bearing),
				zap.Float64("progress", progress),
			)
		}
		if r.metrics != nil {
			r.metrics.Steps.Inc()
			if st.Dwell {
				r.metrics.Dwells.Inc()
				r.metrics.PendingWaypoints.Dec()
			}
			r.metrics.StepDuration.Observe(time.Since(tickStart).Seconds())
		}
	}
}

// Status reports the current or last run.
func (r *Runner) Status() (Status, bool) {
	r.mu.Lock()
	run := r.current
	r.mu.Unlock()
	if run == nil {
		return Status{}, false
	}
	return Status{
		RunID:     run.ID,
		Vehicle:   r.vehicle,
		StartedAt: run.StartedAt,
		State:     run.handle.Snapshot(),
	}, true
}

// Route returns the GeoJSON of the current or last run.
func (r *Runner) Route() (*geojson.FeatureCollection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil, false
	}
	return r.current.Route, true
}
