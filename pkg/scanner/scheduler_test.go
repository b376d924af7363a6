package scanner

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"
)

// fakeSource hands out queued frames and blocks once drained, like a camera
// with nothing new to deliver.
type fakeSource struct {
	mu        sync.Mutex
	queue     []image.Image
	nextCalls int
	started   bool
	stopped   bool
	startErr  error
}

func (f *fakeSource) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) Next(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	f.nextCalls++
	if len(f.queue) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	img := f.queue[0]
	f.queue = f.queue[1:]
	f.mu.Unlock()
	return img, nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextCalls
}

func (f *fakeSource) push(imgs ...image.Image) {
	f.mu.Lock()
	f.queue = append(f.queue, imgs...)
	f.mu.Unlock()
}

// fakeRecognizer returns a fixed text and counts invocations, so the tests
// can tell exactly when OCR cost was paid.
type fakeRecognizer struct {
	mu       sync.Mutex
	text     string
	err      error
	recCalls int
	closed   bool
}

func (f *fakeRecognizer) Recognize(img image.Image) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recCalls++
	if f.err != nil {
		return Result{}, f.err
	}
	return Result{Text: f.text, Confidence: 90}, nil
}

func (f *fakeRecognizer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRecognizer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recCalls
}

func shelfLabel() *image.NRGBA {
	return stripedImage(128, 128, 4)
}

func blankWall() *image.NRGBA {
	return uniformImage(128, 128, color.NRGBA{210, 210, 210, 255})
}

func TestSchedulerWaitsForStableFramesBeforeOCR(t *testing.T) {
	src := &fakeSource{}
	src.push(shelfLabel(), shelfLabel())
	rec := &fakeRecognizer{text: "ARROZ TIO JOAO 5KG\nVAREJO R$ 21,50"}
	sched := NewScheduler(DefaultConfig(), src, rec, Callbacks{})
	defer sched.Session().Close()
	ctx := context.Background()

	sched.runPass(ctx)
	if rec.calls() != 0 {
		t.Fatalf("a single frame must not trigger recognition")
	}

	sched.runPass(ctx)
	if rec.calls() != 1 {
		t.Fatalf("a repeated frame should trigger recognition, got %d calls", rec.calls())
	}
	if !sched.Session().HasPending() {
		t.Fatalf("expected a pending detection")
	}
	if sched.Session().Status() != StatusDetected {
		t.Fatalf("expected detected status, got %s", sched.Session().Status())
	}
}

func TestSchedulerSkipsWhilePendingAndInsideGap(t *testing.T) {
	src := &fakeSource{}
	src.push(shelfLabel(), shelfLabel(), shelfLabel())
	rec := &fakeRecognizer{text: "CAFE PILAO 500G\nR$ 18,90"}
	sched := NewScheduler(DefaultConfig(), src, rec, Callbacks{})
	defer sched.Session().Close()
	ctx := context.Background()

	sched.runPass(ctx)
	sched.runPass(ctx)
	if !sched.Session().HasPending() {
		t.Fatalf("expected a pending detection after two stable frames")
	}

	// Inside the inter-detection gap not even the source is polled.
	before := src.calls()
	sched.runPass(ctx)
	if src.calls() != before {
		t.Fatalf("pass inside the detection gap should not capture")
	}

	// Outside the gap the pending detection alone blocks capture.
	sched.mu.Lock()
	sched.lastDetection = time.Time{}
	sched.mu.Unlock()
	sched.runPass(ctx)
	if src.calls() != before {
		t.Fatalf("pass with a pending detection should not capture")
	}
}

func TestSchedulerBackoffOnEmptyFrames(t *testing.T) {
	cfg := DefaultConfig()
	src := &fakeSource{}
	rec := &fakeRecognizer{text: "irrelevant"}
	sched := NewScheduler(cfg, src, rec, Callbacks{})
	ctx := context.Background()

	if got := sched.nextDelay(); got != cfg.BaseInterval {
		t.Fatalf("initial delay should be the base interval, got %v", got)
	}

	src.push(blankWall())
	sched.runPass(ctx)
	if got := sched.nextDelay(); got != cfg.BaseInterval+cfg.BackoffStep {
		t.Fatalf("one empty frame should add one step, got %v", got)
	}

	for i := 0; i < 12; i++ {
		src.push(blankWall())
		sched.runPass(ctx)
	}
	if got := sched.nextDelay(); got != cfg.MaxInterval {
		t.Fatalf("backoff should cap at the max interval, got %v", got)
	}

	src.push(shelfLabel())
	sched.runPass(ctx)
	if got := sched.nextDelay(); got != cfg.BaseInterval {
		t.Fatalf("content should snap the delay back to base, got %v", got)
	}
}

func TestSchedulerSuppressesDuplicateDetections(t *testing.T) {
	src := &fakeSource{}
	src.push(shelfLabel(), shelfLabel(), shelfLabel(), shelfLabel())
	rec := &fakeRecognizer{text: "LEITE INTEGRAL 1L\nR$ 5,49"}
	sched := NewScheduler(DefaultConfig(), src, rec, Callbacks{})
	defer sched.Session().Close()
	ctx := context.Background()

	sched.runPass(ctx)
	sched.runPass(ctx)
	if err := sched.Session().Confirm(0); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	sched.mu.Lock()
	sched.lastDetection = time.Time{}
	sched.lastText = ""
	sched.mu.Unlock()

	sched.runPass(ctx)
	sched.runPass(ctx)
	if sched.Session().HasPending() {
		t.Fatalf("an already confirmed label must not be re-detected")
	}
}

func TestSchedulerRecognizerFailureKeepsScanning(t *testing.T) {
	src := &fakeSource{}
	src.push(shelfLabel(), shelfLabel(), shelfLabel())
	rec := &fakeRecognizer{err: errors.New("engine hiccup")}
	sched := NewScheduler(DefaultConfig(), src, rec, Callbacks{})
	defer sched.Session().Close()
	ctx := context.Background()

	sched.runPass(ctx)
	sched.runPass(ctx)
	if sched.Session().Status() != StatusScanning {
		t.Fatalf("an engine failure should fall back to scanning, got %s", sched.Session().Status())
	}

	rec.mu.Lock()
	rec.err = nil
	rec.text = "ACUCAR CRISTAL 1KG\nR$ 4,29"
	rec.mu.Unlock()
	sched.runPass(ctx)
	if !sched.Session().HasPending() {
		t.Fatalf("the loop should keep working after a transient engine failure")
	}
}

func TestSchedulerStartFailureEntersErrorState(t *testing.T) {
	camErr := &CameraError{Reason: CameraNotFound, Err: errors.New("no device")}
	src := &fakeSource{startErr: camErr}
	rec := &fakeRecognizer{}
	sched := NewScheduler(DefaultConfig(), src, rec, Callbacks{})

	if err := sched.Start(context.Background()); err == nil {
		t.Fatalf("start should surface the acquisition failure")
	}
	snap := sched.Session().Snapshot()
	if snap.Status != StatusError {
		t.Fatalf("expected error status, got %s", snap.Status)
	}
	if snap.Error != camErr.Message() {
		t.Fatalf("expected user-facing camera message, got %q", snap.Error)
	}
}

func TestSchedulerStartStopLifecycle(t *testing.T) {
	src := &fakeSource{}
	rec := &fakeRecognizer{}
	sched := NewScheduler(DefaultConfig(), src, rec, Callbacks{})

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got := sched.Session().Status(); got != StatusReady {
		t.Fatalf("expected ready after start, got %s", got)
	}
	if err := sched.Start(context.Background()); err == nil {
		t.Fatalf("a second start must be rejected while running")
	}

	sched.Stop()
	src.mu.Lock()
	stopped := src.stopped
	src.mu.Unlock()
	if !stopped {
		t.Fatalf("stop must release the frame source")
	}
	rec.mu.Lock()
	closed := rec.closed
	rec.mu.Unlock()
	if !closed {
		t.Fatalf("stop must release the recognizer")
	}

	sched.Stop() // idempotent
}
