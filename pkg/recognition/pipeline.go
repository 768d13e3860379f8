package recognition

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-viewfinder/internal/log"
	"github.com/teslashibe/go-viewfinder/pkg/detection"
)

// Config wires a Pipeline to its collaborators.
type Config struct {
	Permissions PermissionService
	Picker      ImagePicker
	Detector    detection.Detector

	// PickOptions defaults to DefaultPickOptions when nil. A non-nil
	// value is used as given, including its zero value.
	PickOptions *PickOptions

	// Logger defaults to log.For("recognition").
	Logger *slog.Logger
}

// Pipeline is the adapter between the screen and the permission, picker and
// detection services. At most one call is in flight; later calls are
// rejected with a Busy outcome until it ends.
//
// The stored result changes only on a successful detection. Every other
// outcome leaves it as it was.
type Pipeline struct {
	permissions PermissionService
	picker      ImagePicker
	detector    detection.Detector
	opts        PickOptions
	logger      *slog.Logger

	mu      sync.Mutex
	pending bool
	current string
	cancel  context.CancelFunc
	result  *detection.Result
	last    *Outcome
	counts  map[Kind]uint64

	listenersMu sync.RWMutex
	onOutcome   []func(Outcome)
	onStart     []func(id string)
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Permissions == nil || cfg.Picker == nil || cfg.Detector == nil {
		return nil, ErrMissingCollaborator
	}
	opts := DefaultPickOptions()
	if cfg.PickOptions != nil {
		opts = *cfg.PickOptions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.For("recognition")
	}
	return &Pipeline{
		permissions: cfg.Permissions,
		picker:      cfg.Picker,
		detector:    cfg.Detector,
		opts:        opts,
		logger:      logger,
		counts:      make(map[Kind]uint64),
	}, nil
}

// PickAndRecognize runs the whole sequence and blocks until it ends.
// It never panics and never returns an error; everything is in the Outcome.
func (p *Pipeline) PickAndRecognize(ctx context.Context) Outcome {
	runCtx, id, started, ok := p.begin(ctx)
	if !ok {
		return p.busy(id)
	}
	return p.run(runCtx, id, started)
}

// Start runs the sequence in the background and reports through OnOutcome.
// It returns the request ID, or ErrBusy if a call is already pending.
func (p *Pipeline) Start(ctx context.Context) (string, error) {
	runCtx, id, started, ok := p.begin(ctx)
	if !ok {
		p.busy(id)
		return "", ErrBusy
	}
	go p.run(runCtx, id, started)
	return id, nil
}

// Cancel aborts the pending call, if any. The call ends with UserCancelled
// once the collaborator it is waiting on observes the cancellation.
func (p *Pipeline) Cancel() bool {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Pending reports whether a call is in flight.
func (p *Pipeline) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// PendingID returns the request ID of the call in flight, or "".
func (p *Pipeline) PendingID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Result returns the stored recognition result, or nil if none.
func (p *Pipeline) Result() *detection.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// LastOutcome returns the most recent completed outcome. Busy rejections are
// not recorded.
func (p *Pipeline) LastOutcome() (Outcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Outcome{}, false
	}
	return *p.last, true
}

// Clear drops the stored result.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	p.result = nil
	p.mu.Unlock()
}

// Counts returns how many calls ended with each outcome kind.
func (p *Pipeline) Counts() map[Kind]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[Kind]uint64, len(p.counts))
	for k, n := range p.counts {
		out[k] = n
	}
	return out
}

// PickOptions returns the options passed to the picker.
func (p *Pipeline) PickOptions() PickOptions {
	return p.opts
}

// OnOutcome registers fn to be called after every completed call.
func (p *Pipeline) OnOutcome(fn func(Outcome)) {
	p.listenersMu.Lock()
	p.onOutcome = append(p.onOutcome, fn)
	p.listenersMu.Unlock()
}

// OnStart registers fn to be called when a call becomes pending.
func (p *Pipeline) OnStart(fn func(id string)) {
	p.listenersMu.Lock()
	p.onStart = append(p.onStart, fn)
	p.listenersMu.Unlock()
}

func (p *Pipeline) begin(ctx context.Context) (context.Context, string, time.Time, bool) {
	id := uuid.NewString()

	p.mu.Lock()
	if p.pending {
		p.mu.Unlock()
		return nil, id, time.Time{}, false
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.pending = true
	p.current = id
	p.cancel = cancel
	p.mu.Unlock()

	p.logger.Debug("pick started", "id", id)

	p.listenersMu.RLock()
	listeners := append([]func(string){}, p.onStart...)
	p.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(id)
	}
	return runCtx, id, time.Now(), true
}

func (p *Pipeline) busy(id string) Outcome {
	p.mu.Lock()
	p.counts[Busy]++
	p.mu.Unlock()

	p.logger.Debug("pick rejected, another is pending", "id", id)
	return Outcome{ID: id, Kind: Busy, Reason: ErrBusy.Error(), Err: ErrBusy}
}

func (p *Pipeline) run(ctx context.Context, id string, started time.Time) Outcome {
	var result *detection.Result
	o := p.steps(ctx, &result)
	o.ID = id
	o.Duration = time.Since(started)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.pending = false
	p.current = ""
	p.cancel = nil
	if o.Kind == Recognized {
		p.result = result
	}
	p.counts[o.Kind]++
	last := o
	p.last = &last
	p.mu.Unlock()

	if o.OK() {
		p.logger.Info("recognition complete", "id", id, "detections", o.Detections, "duration", o.Duration)
	} else {
		p.logger.Info("recognition ended", "id", id, "kind", o.Kind, "stage", o.Stage, "reason", o.Reason)
	}

	p.listenersMu.RLock()
	listeners := append([]func(Outcome){}, p.onOutcome...)
	p.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(o)
	}
	return o
}

// steps runs permission, pick and detect, stopping at the first non-success.
func (p *Pipeline) steps(ctx context.Context, out **detection.Result) Outcome {
	var perm Permission
	err := guard(StagePermission, func() (err error) {
		perm, err = p.permissions.RequestPhotoLibraryAccess(ctx)
		return err
	})
	switch {
	case cancelled(ctx, err):
		return failure(UserCancelled, StagePermission, ctx.Err())
	case isPanic(err):
		return failure(RecognitionFailed, StagePermission, err)
	case err != nil:
		return failure(PermissionDenied, StagePermission, err)
	case perm != Granted:
		return failure(PermissionDenied, StagePermission, ErrDenied)
	}

	var pick PickResult
	err = guard(StagePick, func() (err error) {
		pick, err = p.picker.PickImage(ctx, p.opts)
		return err
	})
	switch {
	case cancelled(ctx, err):
		return failure(UserCancelled, StagePick, ctx.Err())
	case err != nil:
		return failure(RecognitionFailed, StagePick, err)
	case pick.Cancelled:
		return Outcome{Kind: UserCancelled, Stage: StagePick}
	case pick.Content.IsZero():
		return failure(RecognitionFailed, StagePick, ErrNoContent)
	}

	var raw []detection.Detection
	err = guard(StageDetect, func() (err error) {
		raw, err = p.detector.Detect(ctx, pick.Content)
		return err
	})
	if cancelled(ctx, err) {
		return failure(UserCancelled, StageDetect, ctx.Err())
	}
	if err != nil {
		return failure(RecognitionFailed, StageDetect, err)
	}

	dets, err := detection.Normalize(raw)
	if err != nil {
		return failure(RecognitionFailed, StageDetect, err)
	}

	*out = detection.NewResult(dets)
	return Outcome{Kind: Recognized, Stage: StageDetect, Detections: len(dets)}
}

func failure(kind Kind, stage Stage, err error) Outcome {
	return Outcome{Kind: kind, Stage: stage, Reason: err.Error(), Err: err}
}

// guard converts a collaborator panic into a *PanicError.
func guard(stage Stage, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Stage: stage, Value: r}
		}
	}()
	return fn()
}

func isPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

// cancelled reports whether err follows a Cancel. Deadlines are failures.
func cancelled(ctx context.Context, err error) bool {
	return err != nil && errors.Is(ctx.Err(), context.Canceled) && !isPanic(err)
}
