package overlay

import (
	"github.com/teslashibe/go-viewfinder/pkg/detection"
	"github.com/teslashibe/go-viewfinder/pkg/mode"
)

// Config holds the placement and assets of anchors.
type Config struct {
	// LabelOffset is where the label floats relative to the viewer.
	LabelOffset GeoPoint

	ArrowModel string
	FlagModel  string

	// ModelScale is applied to both navigation models.
	ModelScale float64
}

// DefaultConfig places the label half a metre in front of the viewer and
// uses the bundled navigation models at 1/100 scale.
func DefaultConfig() Config {
	return Config{
		LabelOffset: GeoPoint{X: 0, Y: 0, Z: -0.5},
		ArrowModel:  "arrow.scnassets/arrow.scn",
		FlagModel:   "flag.scnassets/flag.scn",
		ModelScale:  0.01,
	}
}

// Inputs are everything the anchors depend on.
type Inputs struct {
	Modes       mode.Set
	Result      *detection.Result
	Location    *GeoPoint
	Destination *GeoPoint
}

// Resolver computes anchors with a fixed Config.
type Resolver struct {
	cfg Config
}

// NewResolver creates a resolver.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Config returns the resolver's configuration.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Resolve returns anchors in render order: Label, NavArrow, NavFlag.
// Nothing is emitted outside AR. Missing inputs omit their anchor.
func (r *Resolver) Resolve(in Inputs) []Anchor {
	if !in.Modes.Has(mode.AR) {
		return []Anchor{}
	}

	anchors := make([]Anchor, 0, 3)

	if !in.Result.Empty() {
		anchors = append(anchors, Anchor{
			Kind:     Label,
			Position: r.cfg.LabelOffset,
			Payload:  in.Result.Summary(),
		})
	}

	if in.Modes.Has(mode.Navigation) {
		if in.Location != nil {
			anchors = append(anchors, Anchor{
				Kind:     NavArrow,
				Position: *in.Location,
				Model:    r.cfg.ArrowModel,
				Scale:    r.cfg.ModelScale,
			})
		}
		if in.Destination != nil {
			anchors = append(anchors, Anchor{
				Kind:     NavFlag,
				Position: *in.Destination,
				Model:    r.cfg.FlagModel,
				Scale:    r.cfg.ModelScale,
			})
		}
	}

	return anchors
}

var defaultResolver = NewResolver(DefaultConfig())

// Resolve computes anchors with DefaultConfig.
func Resolve(in Inputs) []Anchor {
	return defaultResolver.Resolve(in)
}
