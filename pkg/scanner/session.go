package scanner

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is the observable scan state rendered by the UI shell.
type Status string

const (
	StatusStarting  Status = "starting"
	StatusReady     Status = "ready"
	StatusScanning  Status = "scanning"
	StatusAnalyzing Status = "analyzing"
	StatusDetected  Status = "detected"
	StatusAdded     Status = "added"
	StatusError     Status = "error"
)

// Callbacks are provided by the UI shell. They are invoked outside the
// session lock and may call back into the session.
type Callbacks struct {
	OnProductDetected func(Product)
	OnProductAdded    func(Product)
	OnError           func(string)
}

// Pending is the detection awaiting user confirmation.
type Pending struct {
	Product       Product `json:"product"`
	Countdown     int     `json:"countdown"`
	SelectedPrice int64   `json:"selected_price"`
}

// Snapshot is a copy of the session state safe to hand to the UI shell.
type Snapshot struct {
	Status  Status    `json:"status"`
	Error   string    `json:"error,omitempty"`
	Pending *Pending  `json:"pending,omitempty"`
	Added   []Product `json:"added"`
	Total   int64     `json:"total"` // centavos across added products
}

// Session holds the mutable state of one camera session: current status,
// the pending detection with its countdown, and the confirmed products.
// It is created when the capture shell opens and closed when it closes.
type Session struct {
	cfg   Config
	cb    Callbacks
	dedup *DedupWindow
	log   *logrus.Entry

	mu             sync.Mutex
	status         Status
	errMsg         string
	pending        *Pending
	added          []Product
	countdownTimer *time.Timer
	readyTimer     *time.Timer
	closed         bool
}

func NewSession(cfg Config, dedup *DedupWindow, cb Callbacks) *Session {
	return &Session{
		cfg:    cfg,
		cb:     cb,
		dedup:  dedup,
		log:    logrus.WithField("component", "session"),
		status: StatusStarting,
	}
}

// Status returns the current observable state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// HasPending reports whether a detection is awaiting resolution.
func (s *Session) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Snapshot copies the state for rendering.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Status: s.status, Error: s.errMsg}
	if s.pending != nil {
		p := *s.pending
		snap.Pending = &p
	}
	snap.Added = append([]Product(nil), s.added...)
	for _, p := range s.added {
		snap.Total += p.MainPrice
	}
	return snap
}

// Ready re-enters the ready state after a successful startup, clearing any
// previous camera error (the explicit retry path).
func (s *Session) Ready() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pending != nil {
		return
	}
	s.status = StatusReady
	s.errMsg = ""
}

// setIdleStatus moves between the non-holding states (ready, scanning,
// analyzing). It never stomps detected, added or error, which are owned by
// their own transitions.
func (s *Session) setIdleStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pending != nil {
		return
	}
	switch s.status {
	case StatusReady, StatusScanning, StatusAnalyzing, StatusStarting:
		s.status = status
	}
}

// Fail enters the absorbing error state and surfaces the cause to the shell.
// It is recoverable only via an explicit restart of the scheduler.
func (s *Session) Fail(msg string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.status = StatusError
	s.errMsg = msg
	s.stopTimersLocked()
	s.pending = nil
	cb := s.cb.OnError
	s.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
}

// Detect holds a freshly extracted product for confirmation and starts the
// countdown. It reports false when another detection is already pending or
// the session is closed.
func (s *Session) Detect(p Product) bool {
	s.mu.Lock()
	if s.closed || s.pending != nil || s.status == StatusError {
		s.mu.Unlock()
		return false
	}
	s.pending = &Pending{
		Product:       p,
		Countdown:     s.cfg.CountdownTicks,
		SelectedPrice: p.MainPrice,
	}
	s.status = StatusDetected
	s.armCountdownLocked()
	cb := s.cb.OnProductDetected
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"name": p.Name, "price": p.MainPrice}).Info("product detected")
	if cb != nil {
		cb(p)
	}
	return true
}

func (s *Session) armCountdownLocked() {
	if s.countdownTimer != nil {
		s.countdownTimer.Stop()
	}
	s.countdownTimer = time.AfterFunc(s.cfg.CountdownTick, s.tick)
}

// tick decrements the countdown; at zero the currently selected price is
// auto-confirmed.
func (s *Session) tick() {
	s.mu.Lock()
	if s.closed || s.pending == nil {
		s.mu.Unlock()
		return
	}
	s.pending.Countdown--
	if s.pending.Countdown > 0 {
		s.armCountdownLocked()
		s.mu.Unlock()
		return
	}
	price := s.pending.SelectedPrice
	s.mu.Unlock()
	if err := s.Confirm(price); err != nil {
		s.log.WithError(err).Warn("auto-confirm rejected")
		_ = s.Cancel()
	}
}

// SelectPrice picks one of the pending product's candidates as the price to
// confirm with.
func (s *Session) SelectPrice(amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return ErrNoPending
	}
	for _, c := range s.pending.Product.Prices {
		if c.Amount == amount {
			s.pending.SelectedPrice = amount
			return nil
		}
	}
	return fmt.Errorf("price %d is not one of the detected candidates", amount)
}

// Confirm finalizes the pending detection with the given price (0 means the
// currently selected one), registers its dedup signature, emits it to the
// shell and holds the added state briefly before returning to ready.
// Validation failures leave all state untouched.
func (s *Session) Confirm(price int64) error {
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return ErrNoPending
	}
	if price == 0 {
		price = s.pending.SelectedPrice
	}
	product := s.pending.Product
	if strings.TrimSpace(product.Name) == "" {
		s.mu.Unlock()
		return fmt.Errorf("cannot confirm a product without a name")
	}
	if price <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("cannot confirm a non-positive price")
	}
	product.MainPrice = price

	if s.countdownTimer != nil {
		s.countdownTimer.Stop()
		s.countdownTimer = nil
	}
	s.pending = nil
	s.added = append(s.added, product)
	s.status = StatusAdded
	if s.readyTimer != nil {
		s.readyTimer.Stop()
	}
	s.readyTimer = time.AfterFunc(s.cfg.AddedDisplay, s.backToReady)
	cb := s.cb.OnProductAdded
	s.mu.Unlock()

	s.dedup.Register(&product)
	s.log.WithFields(logrus.Fields{"name": product.Name, "price": product.MainPrice}).Info("product added")
	if cb != nil {
		cb(product)
	}
	return nil
}

func (s *Session) backToReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.status != StatusAdded {
		return
	}
	s.status = StatusReady
}

// Cancel discards the pending product and returns directly to ready. No
// dedup signature is registered, so the same label may be re-detected
// immediately; that is intentional.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return ErrNoPending
	}
	if s.countdownTimer != nil {
		s.countdownTimer.Stop()
		s.countdownTimer = nil
	}
	s.pending = nil
	s.status = StatusReady
	return nil
}

func (s *Session) stopTimersLocked() {
	if s.countdownTimer != nil {
		s.countdownTimer.Stop()
		s.countdownTimer = nil
	}
	if s.readyTimer != nil {
		s.readyTimer.Stop()
		s.readyTimer = nil
	}
}

// Close stops all timers and freezes the session. Further transitions are
// no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimersLocked()
	s.pending = nil
}
