package detection

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-viewfinder/internal/log"
)

// Chain tries multiple detectors in order until one succeeds.
type Chain struct {
	detectors []Detector
	logger    *slog.Logger
}

// NewChain creates a detector chain. At least one detector is required.
func NewChain(detectors ...Detector) (*Chain, error) {
	return NewChainWithLogger(log.L(), detectors...)
}

// NewChainWithLogger creates a detector chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, detectors ...Detector) (*Chain, error) {
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}
	return &Chain{
		detectors: detectors,
		logger:    logger.With("component", "detection.chain"),
	}, nil
}

// Name implements Detector.
func (c *Chain) Name() string {
	return "chain"
}

// Detect tries each detector until one succeeds.
func (c *Chain) Detect(ctx context.Context, ref ContentRef) ([]Detection, error) {
	var errs []error

	for i, d := range c.detectors {
		dets, err := d.Detect(ctx, ref)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback detector succeeded",
					"detector", d.Name(),
					"detector_index", i,
				)
			}
			return dets, nil
		}

		errs = append(errs, WrapError(d.Name(), err))
		c.logger.Warn("detector failed, trying next",
			"detector", d.Name(),
			"error", err,
		)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &ChainError{Errors: errs}
}

// Close closes every detector and returns the first error.
func (c *Chain) Close() error {
	var first error
	for _, d := range c.detectors {
		if err := d.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Detector = (*Chain)(nil)
