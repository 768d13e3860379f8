package recognition

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-viewfinder/internal/log"
	"github.com/teslashibe/go-viewfinder/pkg/detection"
)

func newTestPipeline(t *testing.T, perm PermissionService, picker ImagePicker, det detection.Detector) *Pipeline {
	t.Helper()
	p, err := NewPipeline(Config{
		Permissions: perm,
		Picker:      picker,
		Detector:    det,
		Logger:      log.Discard(),
	})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return p
}

// recognizeOnce seeds the pipeline with a successful result.
func recognizeOnce(t *testing.T, p *Pipeline) *detection.Result {
	t.Helper()
	if o := p.PickAndRecognize(context.Background()); o.Kind != Recognized {
		t.Fatalf("seed outcome = %s, want recognized", o)
	}
	return p.Result()
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	if _, err := NewPipeline(Config{Permissions: GrantAll(), Picker: PickURI("x")}); !errors.Is(err, ErrMissingCollaborator) {
		t.Errorf("NewPipeline() error = %v, want ErrMissingCollaborator", err)
	}
}

func TestNewPipeline_PickOptions(t *testing.T) {
	tests := []struct {
		name string
		opts *PickOptions
		want PickOptions
	}{
		{"unset uses defaults", nil, DefaultPickOptions()},
		{"explicit zero kept", &PickOptions{}, PickOptions{}},
		{"no editing kept", &PickOptions{Aspect: Aspect{W: 16, H: 9}}, PickOptions{Aspect: Aspect{W: 16, H: 9}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			picker := PickURI("file:///photos/desk.jpg")
			p, err := NewPipeline(Config{
				Permissions: GrantAll(),
				Picker:      picker,
				Detector:    detection.NewMock("cup"),
				PickOptions: tc.opts,
				Logger:      log.Discard(),
			})
			if err != nil {
				t.Fatal(err)
			}
			if got := p.PickOptions(); got != tc.want {
				t.Errorf("PickOptions() = %+v, want %+v", got, tc.want)
			}

			p.PickAndRecognize(context.Background())
			if got, ok := picker.LastOptions(); !ok || got != tc.want {
				t.Errorf("picker got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestPickAndRecognize_Success(t *testing.T) {
	picker := PickURI("file:///photos/desk.jpg")
	det := detection.NewMock("cup", "phone")
	p := newTestPipeline(t, GrantAll(), picker, det)

	o := p.PickAndRecognize(context.Background())
	if o.Kind != Recognized || !o.OK() {
		t.Fatalf("outcome = %s, want recognized", o)
	}
	if o.Detections != 2 || o.ID == "" {
		t.Errorf("outcome = %+v", o)
	}
	if got := p.Result().Summary(); got != "cup, phone" {
		t.Errorf("Result().Summary() = %q, want %q", got, "cup, phone")
	}
	if calls := det.Calls(); len(calls) != 1 || calls[0].URI != "file:///photos/desk.jpg" {
		t.Errorf("detector calls = %+v", calls)
	}
	if p.Pending() {
		t.Error("Pending() = true after completion")
	}

	opts, ok := picker.LastOptions()
	if !ok || opts != DefaultPickOptions() {
		t.Errorf("picker options = %+v, want allow editing with 4:3 crop", opts)
	}
}

func TestPickAndRecognize_ReplacesResult(t *testing.T) {
	labels := []string{"cup"}
	det := &detection.Mock{DetectFunc: func(ctx context.Context, ref detection.ContentRef) ([]detection.Detection, error) {
		out := make([]detection.Detection, len(labels))
		for i, l := range labels {
			out[i] = detection.Detection{Label: l, Confidence: 0.8}
		}
		return out, nil
	}}
	p := newTestPipeline(t, GrantAll(), PickURI("a.jpg"), det)

	first := recognizeOnce(t, p)
	labels = []string{"book", "lamp"}
	second := recognizeOnce(t, p)

	if first.ID() == second.ID() {
		t.Error("second success did not produce a new result")
	}
	if second.Summary() != "book, lamp" {
		t.Errorf("Summary() = %q", second.Summary())
	}
	if first.Summary() != "cup" {
		t.Errorf("earlier result was mutated: %q", first.Summary())
	}
}

func TestPickAndRecognize_NonSuccessPreservesResult(t *testing.T) {
	tests := []struct {
		name      string
		perm      *MockPermissions
		picker    *MockPicker
		detectErr error
		wantKind  Kind
		wantStage Stage
		wantPick  int
		wantDet   int
	}{
		{
			name:      "permission denied",
			perm:      DenyAll(),
			picker:    PickURI("b.jpg"),
			wantKind:  PermissionDenied,
			wantStage: StagePermission,
		},
		{
			name: "permission service error",
			perm: &MockPermissions{RequestFunc: func(ctx context.Context) (Permission, error) {
				return "", errors.New("settings unavailable")
			}},
			picker:    PickURI("b.jpg"),
			wantKind:  PermissionDenied,
			wantStage: StagePermission,
		},
		{
			name:      "user cancels picker",
			perm:      GrantAll(),
			picker:    CancelPick(),
			wantKind:  UserCancelled,
			wantStage: StagePick,
			wantPick:  1,
		},
		{
			name: "picker error",
			perm: GrantAll(),
			picker: &MockPicker{PickFunc: func(ctx context.Context, opts PickOptions) (PickResult, error) {
				return PickResult{}, errors.New("camera roll unavailable")
			}},
			wantKind:  RecognitionFailed,
			wantStage: StagePick,
			wantPick:  1,
		},
		{
			name: "picker returns nothing",
			perm: GrantAll(),
			picker: &MockPicker{PickFunc: func(ctx context.Context, opts PickOptions) (PickResult, error) {
				return PickResult{}, nil
			}},
			wantKind:  RecognitionFailed,
			wantStage: StagePick,
			wantPick:  1,
		},
		{
			name:      "detector failure",
			perm:      GrantAll(),
			picker:    PickURI("b.jpg"),
			detectErr: errors.New("service unavailable"),
			wantKind:  RecognitionFailed,
			wantStage: StageDetect,
			wantPick:  1,
			wantDet:   1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fail := false
			det := &detection.Mock{DetectFunc: func(ctx context.Context, ref detection.ContentRef) ([]detection.Detection, error) {
				if fail && tc.detectErr != nil {
					return nil, tc.detectErr
				}
				return []detection.Detection{{Label: "cup", Confidence: 0.9}}, nil
			}}

			seedPicker := PickURI("a.jpg")
			p := newTestPipeline(t, GrantAll(), seedPicker, det)
			prior := recognizeOnce(t, p)

			// Swap in the collaborators under test.
			p.permissions = tc.perm
			p.picker = tc.picker
			fail = true
			detBefore := det.CallCount()

			o := p.PickAndRecognize(context.Background())
			if o.Kind != tc.wantKind || o.Stage != tc.wantStage {
				t.Fatalf("outcome = %s/%s, want %s/%s", o.Kind, o.Stage, tc.wantKind, tc.wantStage)
			}
			if o.Kind != UserCancelled && o.Reason == "" {
				t.Error("non-success outcome has no reason")
			}
			if p.Result() != prior {
				t.Error("stored result changed on a non-success outcome")
			}
			if got := tc.picker.CallCount(); got != tc.wantPick {
				t.Errorf("picker calls = %d, want %d", got, tc.wantPick)
			}
			if got := det.CallCount() - detBefore; got != tc.wantDet {
				t.Errorf("detector calls = %d, want %d", got, tc.wantDet)
			}
		})
	}
}

func TestPickAndRecognize_DeniedWithoutPriorResult(t *testing.T) {
	det := detection.NewMock("cup")
	p := newTestPipeline(t, DenyAll(), PickURI("a.jpg"), det)

	o := p.PickAndRecognize(context.Background())
	if o.Kind != PermissionDenied {
		t.Fatalf("outcome = %s, want permission_denied", o)
	}
	if p.Result() != nil {
		t.Error("Result() should stay nil")
	}
	if !errors.Is(o.Err, ErrDenied) {
		t.Errorf("outcome error = %v, want ErrDenied", o.Err)
	}
	if det.CallCount() != 0 {
		t.Error("detector called after denial")
	}
}

func TestPickAndRecognize_MalformedDetections(t *testing.T) {
	det := &detection.Mock{DetectFunc: func(ctx context.Context, ref detection.ContentRef) ([]detection.Detection, error) {
		return []detection.Detection{{Label: "cup", Confidence: 0.9}, {Label: "", Confidence: 0.5}}, nil
	}}
	p := newTestPipeline(t, GrantAll(), PickURI("a.jpg"), det)

	o := p.PickAndRecognize(context.Background())
	if o.Kind != RecognitionFailed || !errors.Is(o.Err, detection.ErrMalformed) {
		t.Fatalf("outcome = %s (%v), want malformed failure", o, o.Err)
	}
	if p.Result() != nil {
		t.Error("malformed response stored a result")
	}
}

func TestPickAndRecognize_EmptySuccessReplacesResult(t *testing.T) {
	empty := false
	det := &detection.Mock{DetectFunc: func(ctx context.Context, ref detection.ContentRef) ([]detection.Detection, error) {
		if empty {
			return nil, nil
		}
		return []detection.Detection{{Label: "cup", Confidence: 0.9}}, nil
	}}
	p := newTestPipeline(t, GrantAll(), PickURI("a.jpg"), det)
	recognizeOnce(t, p)

	empty = true
	o := p.PickAndRecognize(context.Background())
	if o.Kind != Recognized || o.Detections != 0 {
		t.Fatalf("outcome = %+v", o)
	}
	if r := p.Result(); r == nil || !r.Empty() {
		t.Errorf("Result() = %v, want empty result", r)
	}
}

func TestPickAndRecognize_PanicsAreRecovered(t *testing.T) {
	tests := []struct {
		name   string
		perm   PermissionService
		picker ImagePicker
		det    detection.Detector
		stage  Stage
	}{
		{
			name:   "permission",
			perm:   &MockPermissions{RequestFunc: func(ctx context.Context) (Permission, error) { panic("boom") }},
			picker: PickURI("a.jpg"),
			det:    detection.NewMock("cup"),
			stage:  StagePermission,
		},
		{
			name: "picker",
			perm: GrantAll(),
			picker: &MockPicker{PickFunc: func(ctx context.Context, opts PickOptions) (PickResult, error) {
				panic("boom")
			}},
			det:   detection.NewMock("cup"),
			stage: StagePick,
		},
		{
			name:   "detector",
			perm:   GrantAll(),
			picker: PickURI("a.jpg"),
			det: &detection.Mock{DetectFunc: func(ctx context.Context, ref detection.ContentRef) ([]detection.Detection, error) {
				panic("boom")
			}},
			stage: StageDetect,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPipeline(t, tc.perm, tc.picker, tc.det)

			o := p.PickAndRecognize(context.Background())
			if o.Kind != RecognitionFailed || o.Stage != tc.stage {
				t.Fatalf("outcome = %s, want recognition_failed at %s", o, tc.stage)
			}
			var pe *PanicError
			if !errors.As(o.Err, &pe) || !strings.Contains(o.Reason, "boom") {
				t.Errorf("outcome error = %v, want PanicError", o.Err)
			}
			if p.Pending() {
				t.Error("pipeline left pending after panic")
			}
		})
	}
}

func TestPickAndRecognize_RejectsWhilePending(t *testing.T) {
	release := make(chan struct{})
	picker := Blocking(release, "a.jpg")
	det := detection.NewMock("cup")
	p := newTestPipeline(t, GrantAll(), picker, det)

	started := make(chan string, 1)
	p.OnStart(func(id string) { started <- id })

	done := make(chan Outcome, 1)
	go func() { done <- p.PickAndRecognize(context.Background()) }()

	id := <-started
	if !p.Pending() || p.PendingID() != id {
		t.Fatalf("Pending() = %v, PendingID() = %q, want %q", p.Pending(), p.PendingID(), id)
	}

	second := p.PickAndRecognize(context.Background())
	if second.Kind != Busy || !errors.Is(second.Err, ErrBusy) {
		t.Fatalf("second outcome = %s, want busy", second)
	}
	if _, err := p.Start(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Start() while pending error = %v, want ErrBusy", err)
	}

	close(release)
	first := <-done
	if first.Kind != Recognized || first.ID != id {
		t.Fatalf("first outcome = %+v", first)
	}
	if det.CallCount() != 1 || picker.CallCount() != 1 {
		t.Errorf("collaborators called %d/%d times, want 1/1", picker.CallCount(), det.CallCount())
	}
	if last, _ := p.LastOutcome(); last.Kind != Recognized {
		t.Errorf("LastOutcome() = %s, busy rejections must not be recorded", last.Kind)
	}
	if counts := p.Counts(); counts[Busy] != 2 || counts[Recognized] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
}

func TestCancel(t *testing.T) {
	p := newTestPipeline(t, GrantAll(), Blocking(make(chan struct{}), "a.jpg"), detection.NewMock("cup"))

	if p.Cancel() {
		t.Error("Cancel() with nothing pending returned true")
	}

	outcomes := make(chan Outcome, 1)
	p.OnOutcome(func(o Outcome) { outcomes <- o })

	id, err := p.Start(context.Background())
	if err != nil || id == "" {
		t.Fatalf("Start() = %q, %v", id, err)
	}
	if !p.Cancel() {
		t.Error("Cancel() with a pending call returned false")
	}

	select {
	case o := <-outcomes:
		if o.Kind != UserCancelled || o.Stage != StagePick || o.ID != id {
			t.Errorf("outcome = %+v", o)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled call never completed")
	}
	if p.Pending() {
		t.Error("Pending() = true after cancel")
	}
}

func TestDeadlineIsAFailure(t *testing.T) {
	det := &detection.Mock{DetectFunc: func(ctx context.Context, ref detection.ContentRef) ([]detection.Detection, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	p := newTestPipeline(t, GrantAll(), PickURI("a.jpg"), det)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	o := p.PickAndRecognize(ctx)
	if o.Kind != RecognitionFailed || !errors.Is(o.Err, context.DeadlineExceeded) {
		t.Errorf("outcome = %s (%v), want deadline failure", o, o.Err)
	}
}

func TestNeverResolvingCallStaysPending(t *testing.T) {
	p := newTestPipeline(t, GrantAll(), Blocking(make(chan struct{}), "a.jpg"), detection.NewMock("cup"))
	t.Cleanup(func() { p.Cancel() })

	if _, err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if !p.Pending() {
		t.Error("Pending() = false while the picker never answers")
	}
}

func TestOnOutcomeListeners(t *testing.T) {
	p := newTestPipeline(t, DenyAll(), PickURI("a.jpg"), detection.NewMock("cup"))

	var mu sync.Mutex
	var got []Kind
	for i := 0; i < 2; i++ {
		p.OnOutcome(func(o Outcome) {
			mu.Lock()
			got = append(got, o.Kind)
			mu.Unlock()
		})
	}

	p.PickAndRecognize(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != PermissionDenied {
		t.Errorf("listeners saw %v", got)
	}
}

func TestClear(t *testing.T) {
	p := newTestPipeline(t, GrantAll(), PickURI("a.jpg"), detection.NewMock("cup"))
	recognizeOnce(t, p)

	p.Clear()
	if p.Result() != nil {
		t.Error("Result() not nil after Clear")
	}
}
