// Package scanner implements the on-device frame-capture-and-recognition
// pipeline: it polls a live frame source, conditions frames for OCR, parses
// recognized text into price candidates, debounces repeat detections and
// exposes a small state machine for the surrounding shell.
package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler drives the capture → preprocess → recognize loop against a live
// frame source. It owns the source and the recognizer exclusively; both are
// released on Stop regardless of how the loop exits.
type Scheduler struct {
	cfg     Config
	source  FrameSource
	rec     Recognizer
	pre     *Preprocessor
	ext     *Extractor
	dedup   *DedupWindow
	session *Session
	log     *logrus.Entry

	mu            sync.Mutex
	running       bool
	busy          bool
	cancel        context.CancelFunc
	done          chan struct{}
	lastHash      string
	stableCount   int
	emptyStreak   int
	lastDetection time.Time
	lastText      string
}

// NewScheduler wires a pipeline around the given source and recognizer. The
// callbacks belong to the UI shell.
func NewScheduler(cfg Config, source FrameSource, rec Recognizer, cb Callbacks) *Scheduler {
	dedup := NewDedupWindow(cfg)
	return &Scheduler{
		cfg:     cfg,
		source:  source,
		rec:     rec,
		pre:     NewPreprocessor(cfg),
		ext:     NewExtractor(cfg),
		dedup:   dedup,
		session: NewSession(cfg, dedup, cb),
		log:     logrus.WithField("component", "scheduler"),
	}
}

// Session exposes the observable state machine to the shell.
func (s *Scheduler) Session() *Session { return s.session }

// Start acquires the frame source and begins polling. Acquisition failures
// put the session into the error state and are terminal until an explicit
// retry calls Start again.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.mu.Unlock()

	if err := s.source.Start(ctx); err != nil {
		var camErr *CameraError
		if errors.As(err, &camErr) {
			s.session.Fail(camErr.Message())
		} else {
			s.session.Fail(err.Error())
		}
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.session.Ready()
	go s.loop(loopCtx)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.runPass(ctx)
			timer.Reset(s.nextDelay())
		}
	}
}

// nextDelay grows with consecutive empty frames up to the ceiling and snaps
// back to the base as soon as content resumes.
func (s *Scheduler) nextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.cfg.BaseInterval + time.Duration(s.emptyStreak)*s.cfg.BackoffStep
	if d > s.cfg.MaxInterval {
		d = s.cfg.MaxInterval
	}
	return d
}

// runPass performs at most one capture → recognize → extract cycle. Passes
// are skipped, never queued: while one is in flight, while a detection is
// pending, and inside the minimum inter-detection gap.
func (s *Scheduler) runPass(ctx context.Context) {
	s.mu.Lock()
	if s.busy || time.Since(s.lastDetection) < s.cfg.DetectionGap {
		s.mu.Unlock()
		return
	}
	s.busy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	if s.session.HasPending() {
		return
	}

	frame, err := s.source.Next(ctx)
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, ErrSourceStopped) {
			s.log.WithError(err).Warn("frame capture failed")
		}
		return
	}
	s.session.setIdleStatus(StatusScanning)

	roi := s.pre.CropROI(frame)
	if !s.pre.HasVisibleContent(roi) {
		s.mu.Lock()
		s.emptyStreak++
		s.stableCount = 0
		s.lastHash = ""
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.emptyStreak = 0
	hash := s.pre.FrameHash(roi)
	if hash == s.lastHash {
		s.stableCount++
	} else {
		s.stableCount = 1
		s.lastHash = hash
	}
	stable := s.stableCount >= s.cfg.StableFrames
	s.mu.Unlock()
	// The user is still moving the camera; recognizing now would only pay
	// OCR cost on a motion-blurred frame.
	if !stable {
		return
	}

	s.session.setIdleStatus(StatusAnalyzing)
	result, err := s.rec.Recognize(s.pre.Binarize(roi))
	if err != nil {
		// Transient engine failures never kill the loop.
		s.log.WithError(err).Warn("recognition failed")
		s.session.setIdleStatus(StatusScanning)
		return
	}
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	unchanged := result.Text == s.lastText
	if !unchanged {
		s.lastText = result.Text
	}
	s.mu.Unlock()
	if unchanged {
		s.session.setIdleStatus(StatusScanning)
		return
	}

	product, err := s.ext.Extract(result.Text)
	if err != nil {
		if !errors.Is(err, ErrNoExtraction) {
			s.log.WithError(err).Warn("extraction failed")
		}
		s.session.setIdleStatus(StatusScanning)
		return
	}
	if s.dedup.IsDuplicate(product) {
		s.session.setIdleStatus(StatusScanning)
		return
	}

	s.mu.Lock()
	s.lastDetection = time.Now()
	s.mu.Unlock()
	if !s.session.Detect(*product) {
		s.session.setIdleStatus(StatusScanning)
	}
}

// Stop tears the pipeline down: it flips the liveness flag, cancels the
// scheduled timer, waits for any in-flight pass, clears pending dedup
// removals and releases the frame source and the OCR engine. Safe to call
// more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.session.Close()
	s.dedup.Reset()
	if err := s.source.Stop(); err != nil {
		s.log.WithError(err).Warn("frame source shutdown")
	}
	if err := s.rec.Close(); err != nil {
		s.log.WithError(err).Warn("recognizer shutdown")
	}
}
