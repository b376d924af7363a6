package scanner

import (
	"strings"
	"sync"
	"time"

	"github.com/arbovm/levenshtein"
)

// signature is the compact key that recognizes "the same physical label".
type signature struct {
	nameKey string
	amount  int64 // centavos
}

// DedupWindow is the short-term memory of recently confirmed detections.
// Every registration schedules exactly one removal; Reset cancels them all,
// so a torn-down session leaks no timers.
type DedupWindow struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries map[signature]time.Time // signature -> expiry
	timers  map[signature]*time.Timer
	last    *signature
	lastAt  time.Time
}

func NewDedupWindow(cfg Config) *DedupWindow {
	return &DedupWindow{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[signature]time.Time),
		timers:  make(map[signature]*time.Timer),
	}
}

func (w *DedupWindow) signatureFor(p *Product) signature {
	name := strings.ToLower(truncateRunes(strings.TrimSpace(p.Name), w.cfg.NamePrefixLen))
	return signature{nameKey: name, amount: p.MainPrice}
}

// IsDuplicate reports whether the candidate matches the immediately
// preceding registered signature within the short window, or any signature
// still inside its TTL.
func (w *DedupWindow) IsDuplicate(p *Product) bool {
	sig := w.signatureFor(p)
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	if w.last != nil && now.Sub(w.lastAt) < w.cfg.RecentTTL && w.matches(*w.last, sig) {
		return true
	}
	for s, expiry := range w.entries {
		if now.Before(expiry) && w.matches(s, sig) {
			return true
		}
	}
	return false
}

// matches tolerates sub-10-centavo drift and small OCR noise in the name,
// since the same label rarely recognizes twice to the byte.
func (w *DedupWindow) matches(a, b signature) bool {
	diff := a.amount - b.amount
	if diff < 0 {
		diff = -diff
	}
	if diff >= 10 {
		return false
	}
	if a.nameKey == b.nameKey {
		return true
	}
	return levenshtein.Distance(a.nameKey, b.nameKey) <= w.cfg.NameMaxDistance
}

// Register remembers a confirmed candidate for DedupTTL.
func (w *DedupWindow) Register(p *Product) {
	sig := w.signatureFor(p)
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.entries[sig] = now.Add(w.cfg.DedupTTL)
	w.last = &sig
	w.lastAt = now
	if t, ok := w.timers[sig]; ok {
		t.Stop()
	}
	w.timers[sig] = time.AfterFunc(w.cfg.DedupTTL, func() { w.expire(sig) })
}

func (w *DedupWindow) expire(sig signature) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, sig)
	delete(w.timers, sig)
}

// Reset drops all signatures and cancels their pending removals.
func (w *DedupWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for sig, t := range w.timers {
		t.Stop()
		delete(w.timers, sig)
	}
	w.entries = make(map[signature]time.Time)
	w.last = nil
}
