package scanner

import "time"

// Config collects the tunable knobs of the capture pipeline. All of the
// thresholds are empirical; DefaultConfig holds the values that worked on
// real supermarket shelf labels. Nothing in the package hard-codes them.
type Config struct {
	// Language is the Tesseract model used for recognition.
	Language string

	// Capture loop timing.
	BaseInterval time.Duration // delay between passes while content is present
	MaxInterval  time.Duration // ceiling for the empty-frame backoff
	BackoffStep  time.Duration // added per consecutive empty frame
	DetectionGap time.Duration // minimum time between two successful detections

	// Region of interest, as fractions of the source frame. Recognition only
	// ever sees this centered crop.
	ROIWidthFrac  float64
	ROIHeightFrac float64

	// Preprocessing.
	ContrastFactor    float64 // multiplier applied around mid-gray before thresholding
	BinarizeThreshold uint8   // adjusted luma above this becomes white, below black
	BoxBlur           bool    // 3x3 mean filter before contrast/threshold
	EdgeStride        int     // sample grid stride for the content-presence check
	EdgeDelta         int     // luma delta that counts a sampled pair as an edge
	MinEdgeFraction   float64 // below this fraction of edge pairs a frame is empty
	StableFrames      int     // consecutive equal frame hashes before OCR fires

	// Recognized-text gates.
	MinTextLen int
	MaxTextLen int

	// Dedup window.
	DedupTTL        time.Duration // how long a confirmed signature suppresses repeats
	RecentTTL       time.Duration // short window matched against the last signature only
	NamePrefixLen   int           // signature name prefix length
	NameMaxDistance int           // levenshtein tolerance between name prefixes

	// Confirmation flow.
	CountdownTicks int           // ticks before a pending detection auto-confirms
	CountdownTick  time.Duration // tick duration
	AddedDisplay   time.Duration // how long the added state is held before ready
}

// DefaultConfig returns the tuned defaults for Brazilian price tags.
func DefaultConfig() Config {
	return Config{
		Language: "por",

		BaseInterval: 1200 * time.Millisecond,
		MaxInterval:  3000 * time.Millisecond,
		BackoffStep:  300 * time.Millisecond,
		DetectionGap: 2200 * time.Millisecond,

		ROIWidthFrac:  0.75,
		ROIHeightFrac: 0.55,

		ContrastFactor:    1.5,
		BinarizeThreshold: 135,
		BoxBlur:           true,
		EdgeStride:        8,
		EdgeDelta:         40,
		MinEdgeFraction:   0.05,
		StableFrames:      2,

		MinTextLen: 5,
		MaxTextLen: 1500,

		DedupTTL:        10 * time.Second,
		RecentTTL:       5 * time.Second,
		NamePrefixLen:   10,
		NameMaxDistance: 2,

		CountdownTicks: 3,
		CountdownTick:  time.Second,
		AddedDisplay:   2 * time.Second,
	}
}
