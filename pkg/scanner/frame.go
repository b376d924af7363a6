package scanner

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// FrameSource is the live capture stream the scheduler polls. A source is
// owned by exactly one scheduler instance; Start acquires the underlying
// device and Stop releases it on every exit path.
type FrameSource interface {
	Start(ctx context.Context) error
	// Next blocks until a frame is available or the context is cancelled.
	// The returned frame is owned by the caller for one pipeline pass only.
	Next(ctx context.Context) (image.Image, error)
	Stop() error
}

// ErrSourceStopped is returned by Next after the source shut down.
var ErrSourceStopped = errors.New("frame source stopped")

// SpoolSource watches a spool directory where the capture client drops
// frames (the HTTP shell writes uploaded frames there). Frames are decoded,
// handed over latest-wins, and deleted; nothing is retained across passes.
type SpoolSource struct {
	dir string
	log *logrus.Entry

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	frames  chan image.Image
	done    chan struct{}
	started bool
}

func NewSpoolSource(dir string) *SpoolSource {
	return &SpoolSource{
		dir: dir,
		log: logrus.WithField("component", "spool"),
	}
}

func (s *SpoolSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("spool source already started")
	}

	info, err := os.Stat(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &CameraError{Reason: CameraNotFound, Err: err}
		}
		if os.IsPermission(err) {
			return &CameraError{Reason: CameraPermissionDenied, Err: err}
		}
		return &CameraError{Reason: CameraUnsupported, Err: err}
	}
	if !info.IsDir() {
		return &CameraError{Reason: CameraUnsupported, Err: errors.New("spool path is not a directory")}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &CameraError{Reason: CameraUnsupported, Err: err}
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		if os.IsPermission(err) {
			return &CameraError{Reason: CameraPermissionDenied, Err: err}
		}
		return &CameraError{Reason: CameraUnsupported, Err: err}
	}

	s.watcher = watcher
	s.frames = make(chan image.Image, 1)
	s.done = make(chan struct{})
	s.started = true
	go s.watch()
	return nil
}

func (s *SpoolSource) watch() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isFrameFile(ev.Name) {
				continue
			}
			img, err := imaging.Open(ev.Name)
			// A Create event may race the writer; the Write event for the
			// same file will pick the frame up.
			if err != nil {
				continue
			}
			if err := os.Remove(ev.Name); err != nil {
				s.log.WithError(err).Debug("remove consumed frame")
			}
			s.push(img)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.WithError(err).Warn("spool watch error")
		}
	}
}

// push replaces any undelivered frame; the scheduler only ever wants the
// newest one.
func (s *SpoolSource) push(img image.Image) {
	for {
		select {
		case s.frames <- img:
			return
		default:
			select {
			case <-s.frames:
			default:
			}
		}
	}
}

func (s *SpoolSource) Next(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	frames, done, started := s.frames, s.done, s.started
	s.mu.Unlock()
	if !started {
		return nil, ErrSourceStopped
	}
	select {
	case img := <-frames:
		return img, nil
	case <-done:
		return nil, ErrSourceStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *SpoolSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	close(s.done)
	return s.watcher.Close()
}

func isFrameFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
