package scanner

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Result is one OCR invocation's output. Immutable once created.
type Result struct {
	Text       string
	Confidence float64
}

// Recognizer converts a preprocessed raster into text. Implementations own
// their engine instance exclusively; Close releases it.
type Recognizer interface {
	Recognize(img image.Image) (Result, error)
	Close() error
}

// TesseractRecognizer runs gosseract with a language-specific model. The
// client is created once at startup and reused for every pass; the scheduler
// guarantees there is never more than one recognition in flight.
type TesseractRecognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func NewTesseractRecognizer(language string) (*TesseractRecognizer, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set language %q: %w", language, err)
	}
	return &TesseractRecognizer{client: client}, nil
}

func (r *TesseractRecognizer) Recognize(img image.Image) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return Result{}, errors.New("recognizer closed")
	}

	tmpFile, err := os.CreateTemp("", "scan-*.png")
	if err != nil {
		return Result{}, fmt.Errorf("temp frame: %w", err)
	}
	tmp := tmpFile.Name()
	_ = tmpFile.Close()
	defer os.Remove(tmp)
	if err := imaging.Save(img, tmp); err != nil {
		return Result{}, fmt.Errorf("save frame: %w", err)
	}

	if err := r.client.SetImage(tmp); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize: %w", err)
	}

	conf := 0.0
	if boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil && len(boxes) > 0 {
		for _, b := range boxes {
			conf += b.Confidence
		}
		conf /= float64(len(boxes))
	}
	return Result{Text: text, Confidence: conf}, nil
}

func (r *TesseractRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}
