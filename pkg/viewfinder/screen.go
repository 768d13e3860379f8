// Package viewfinder ties the mode coordinator, the recognition pipeline,
// the overlay resolver and the camera settings into one screen whose render
// state is published as a Snapshot after every input change.
package viewfinder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-viewfinder/internal/log"
	"github.com/teslashibe/go-viewfinder/pkg/camera"
	"github.com/teslashibe/go-viewfinder/pkg/mode"
	"github.com/teslashibe/go-viewfinder/pkg/overlay"
	"github.com/teslashibe/go-viewfinder/pkg/recognition"
)

// Config wires a Screen. Only Pipeline is required.
type Config struct {
	Pipeline *recognition.Pipeline
	Modes    *mode.Coordinator
	Resolver *overlay.Resolver
	Camera   *camera.Manager
	Logger   *slog.Logger
}

// Screen is the viewfinder's state holder. Toggles and recognition run
// independently: a pending pick never blocks a toggle.
type Screen struct {
	modes    *mode.Coordinator
	pipeline *recognition.Pipeline
	resolver *overlay.Resolver
	camera   *camera.Manager
	logger   *slog.Logger

	mu          sync.RWMutex
	location    *overlay.GeoPoint
	destination *overlay.GeoPoint

	// publishMu orders snapshot delivery so subscribers see increasing Seq.
	publishMu sync.Mutex
	seq       atomic.Uint64

	subsMu  sync.RWMutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewScreen creates a screen and hooks it to its components' change events.
func NewScreen(cfg Config) *Screen {
	s := &Screen{
		modes:    cfg.Modes,
		pipeline: cfg.Pipeline,
		resolver: cfg.Resolver,
		camera:   cfg.Camera,
		logger:   cfg.Logger,
		subs:     make(map[int]func(Snapshot)),
	}
	if s.modes == nil {
		s.modes = mode.NewCoordinator()
	}
	if s.resolver == nil {
		s.resolver = overlay.NewResolver(overlay.DefaultConfig())
	}
	if s.camera == nil {
		s.camera = camera.NewManager()
	}
	if s.logger == nil {
		s.logger = log.For("viewfinder")
	}

	s.modes.OnChange(func(mode.Set) { s.publish("modes") })
	s.pipeline.OnStart(func(string) { s.publish("recognition_started") })
	s.pipeline.OnOutcome(func(recognition.Outcome) { s.publish("recognition_outcome") })

	prev := s.camera.OnConfigChange
	s.camera.OnConfigChange = func(c camera.Config) error {
		if prev != nil {
			if err := prev(c); err != nil {
				return err
			}
		}
		s.publish("camera")
		return nil
	}

	return s
}

// Modes returns the mode coordinator.
func (s *Screen) Modes() *mode.Coordinator { return s.modes }

// Pipeline returns the recognition pipeline.
func (s *Screen) Pipeline() *recognition.Pipeline { return s.pipeline }

// Camera returns the camera settings manager.
func (s *Screen) Camera() *camera.Manager { return s.camera }

// ToggleAR toggles AR.
func (s *Screen) ToggleAR() mode.Set { return s.modes.ToggleAR() }

// ToggleVR toggles VR.
func (s *Screen) ToggleVR() mode.Set { return s.modes.ToggleVR() }

// ToggleFilter toggles the filter overlay.
func (s *Screen) ToggleFilter() mode.Set { return s.modes.ToggleFilter() }

// ToggleNavigation toggles navigation.
func (s *Screen) ToggleNavigation() mode.Set { return s.modes.ToggleNavigation() }

// ToggleObjectRecognition toggles object recognition.
func (s *Screen) ToggleObjectRecognition() mode.Set { return s.modes.ToggleObjectRecognition() }

// Toggle toggles m by name.
func (s *Screen) Toggle(m mode.Mode) (mode.Set, error) { return s.modes.Toggle(m) }

// PickAndRecognize runs the pipeline and blocks until it ends.
func (s *Screen) PickAndRecognize(ctx context.Context) recognition.Outcome {
	return s.pipeline.PickAndRecognize(ctx)
}

// StartRecognition runs the pipeline in the background.
func (s *Screen) StartRecognition(ctx context.Context) (string, error) {
	return s.pipeline.Start(ctx)
}

// CancelRecognition aborts the pending pick, if any.
func (s *Screen) CancelRecognition() bool {
	return s.pipeline.Cancel()
}

// ClearResult drops the stored recognition result.
func (s *Screen) ClearResult() {
	s.pipeline.Clear()
	s.publish("result_cleared")
}

// SetLocation sets the current location. The point is copied.
func (s *Screen) SetLocation(p overlay.GeoPoint) {
	s.mu.Lock()
	s.location = &p
	s.mu.Unlock()
	s.publish("location")
}

// ClearLocation forgets the current location.
func (s *Screen) ClearLocation() {
	s.mu.Lock()
	s.location = nil
	s.mu.Unlock()
	s.publish("location")
}

// SetDestination sets the navigation destination. The point is copied.
func (s *Screen) SetDestination(p overlay.GeoPoint) {
	s.mu.Lock()
	s.destination = &p
	s.mu.Unlock()
	s.publish("destination")
}

// ClearDestination forgets the destination.
func (s *Screen) ClearDestination() {
	s.mu.Lock()
	s.destination = nil
	s.mu.Unlock()
	s.publish("destination")
}

// Snapshot computes the current render state. Seq is that of the last
// published snapshot.
func (s *Screen) Snapshot() Snapshot {
	return s.build(s.seq.Load())
}

// Subscribe registers fn for every published snapshot and returns a function
// that removes it. fn runs on the goroutine that changed the input and must
// not call back into the Screen's setters.
func (s *Screen) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Screen) publish(cause string) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	snap := s.build(s.seq.Add(1))

	s.subsMu.RLock()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.RUnlock()

	s.logger.Debug("snapshot", "seq", snap.Seq, "cause", cause, "modes", snap.Modes.String(), "anchors", len(snap.Anchors))

	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Screen) build(seq uint64) Snapshot {
	modes := s.modes.Current()

	s.mu.RLock()
	location := copyPoint(s.location)
	destination := copyPoint(s.destination)
	s.mu.RUnlock()

	result := s.pipeline.Result()

	snap := Snapshot{
		Seq:               seq,
		At:                time.Now(),
		Modes:             modes,
		Primary:           modes.Primary(),
		FilterVisible:     modes.FilterVisible(),
		NavigationVisible: modes.NavigationVisible(),
		ControlsVisible:   modes.Primary() == mode.Camera,
		Buttons:           mode.Buttons(modes),
		PickLabel:         PickButtonLabel,
		Anchors: s.resolver.Resolve(overlay.Inputs{
			Modes:       modes,
			Result:      result,
			Location:    location,
			Destination: destination,
		}),
		Location:    location,
		Destination: destination,
		Pending:     s.pipeline.Pending(),
		PendingID:   s.pipeline.PendingID(),
		Result:      result,
		Camera:      s.camera.GetConfig(),
	}
	if o, ok := s.pipeline.LastOutcome(); ok {
		snap.LastOutcome = &o
	}
	return snap
}

func copyPoint(p *overlay.GeoPoint) *overlay.GeoPoint {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
