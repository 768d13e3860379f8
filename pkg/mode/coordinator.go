package mode

import (
	"log/slog"
	"sync"

	"github.com/teslashibe/go-viewfinder/internal/log"
)

// Coordinator owns the current Set and applies toggles atomically.
// Readers never see a half-applied transition.
type Coordinator struct {
	mu      sync.RWMutex
	set     Set
	toggles map[Mode]uint64

	listenersMu sync.RWMutex
	listeners   []func(Set)

	logger *slog.Logger
}

// NewCoordinator creates a coordinator in the default camera view.
func NewCoordinator() *Coordinator {
	return NewCoordinatorWithLogger(log.For("mode"))
}

// NewCoordinatorWithLogger creates a coordinator that logs to logger.
func NewCoordinatorWithLogger(logger *slog.Logger) *Coordinator {
	return &Coordinator{
		set:     Default(),
		toggles: make(map[Mode]uint64),
		logger:  logger,
	}
}

// Current returns the active mode set.
func (c *Coordinator) Current() Set {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set
}

// ToggleAR toggles AR and returns the new set.
func (c *Coordinator) ToggleAR() Set {
	return c.apply(AR, Set.ToggleAR)
}

// ToggleVR toggles VR and returns the new set.
func (c *Coordinator) ToggleVR() Set {
	return c.apply(VR, Set.ToggleVR)
}

// ToggleFilter toggles the filter and returns the new set.
func (c *Coordinator) ToggleFilter() Set {
	return c.apply(Filter, Set.ToggleFilter)
}

// ToggleNavigation toggles navigation and returns the new set.
func (c *Coordinator) ToggleNavigation() Set {
	return c.apply(Navigation, Set.ToggleNavigation)
}

// ToggleObjectRecognition toggles object recognition and returns the new set.
func (c *Coordinator) ToggleObjectRecognition() Set {
	return c.apply(ObjectRecognition, Set.ToggleObjectRecognition)
}

// Toggle dispatches by mode. It fails for Camera and unknown modes,
// leaving the set unchanged.
func (c *Coordinator) Toggle(m Mode) (Set, error) {
	switch m {
	case AR:
		return c.ToggleAR(), nil
	case VR:
		return c.ToggleVR(), nil
	case Filter:
		return c.ToggleFilter(), nil
	case Navigation:
		return c.ToggleNavigation(), nil
	case ObjectRecognition:
		return c.ToggleObjectRecognition(), nil
	case Camera:
		return c.Current(), ErrNotTogglable
	}
	return c.Current(), &UnknownModeError{Name: string(m)}
}

// Reset returns to the default camera view.
func (c *Coordinator) Reset() Set {
	c.mu.Lock()
	c.set = Default()
	next := c.set
	c.mu.Unlock()

	c.notify(next)
	return next
}

// OnChange registers fn to be called with the new set after every transition.
// Listeners run on the toggling goroutine, outside the coordinator's lock.
func (c *Coordinator) OnChange(fn func(Set)) {
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenersMu.Unlock()
}

// ToggleCounts returns how many times each mode has been toggled.
func (c *Coordinator) ToggleCounts() map[Mode]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Mode]uint64, len(c.toggles))
	for m, n := range c.toggles {
		out[m] = n
	}
	return out
}

func (c *Coordinator) apply(m Mode, transition func(Set) Set) Set {
	c.mu.Lock()
	prev := c.set
	c.set = transition(prev)
	c.toggles[m]++
	next := c.set
	c.mu.Unlock()

	c.logger.Debug("mode toggled", "mode", m, "from", prev.String(), "to", next.String())
	c.notify(next)
	return next
}

func (c *Coordinator) notify(s Set) {
	c.listenersMu.RLock()
	listeners := make([]func(Set), len(c.listeners))
	copy(listeners, c.listeners)
	c.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(s)
	}
}
