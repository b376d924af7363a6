package scanner

import (
	"errors"
	"fmt"
)

// ErrNoExtraction is returned when recognized text yields no plausible price.
// It is a normal "keep scanning" outcome, not a failure.
var ErrNoExtraction = errors.New("no price extracted")

// ErrNoPending is returned by confirm/cancel/select when nothing is pending.
var ErrNoPending = errors.New("no pending detection")

// CameraReason classifies why a frame source could not be acquired.
type CameraReason string

const (
	CameraPermissionDenied CameraReason = "permission_denied"
	CameraNotFound         CameraReason = "not_found"
	CameraUnsupported      CameraReason = "unsupported"
)

// CameraError is terminal until an explicit retry re-enters startup.
type CameraError struct {
	Reason CameraReason
	Err    error
}

func (e *CameraError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("camera %s", e.Reason)
}

func (e *CameraError) Unwrap() error { return e.Err }

// Message returns the human-readable cause surfaced to the UI shell.
func (e *CameraError) Message() string {
	switch e.Reason {
	case CameraPermissionDenied:
		return "Permissão de câmera negada. Permita o acesso à câmera e tente novamente."
	case CameraNotFound:
		return "Nenhuma câmera encontrada no dispositivo."
	case CameraUnsupported:
		return "Este ambiente não suporta acesso à câmera."
	}
	return "Erro ao acessar câmera."
}
