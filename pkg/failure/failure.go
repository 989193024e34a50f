// Package failure holds the error taxonomy shared by the geometry stages.
//
// Every construction error wraps exactly one of the sentinels below so that
// callers can classify it with errors.Is, while the message still names the
// stage and the offending material, solid or volume.
package failure

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration covers unknown material or element names, mass
	// fractions that do not sum to one and degenerate solid dimensions.
	ErrConfiguration = errors.New("configuration error")

	// ErrComposition indicates a reference to something not built yet, such
	// as a boolean operand or a volume that does not exist. It always means
	// the description was assembled in the wrong order.
	ErrComposition = errors.New("composition error")
)

// Error carries the stage and subject of a construction failure.
type Error struct {
	Kind    error  // ErrConfiguration or ErrComposition
	Stage   string // e.g. "materials", "booleans"
	Subject string // name of the offending item, may be empty
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Stage != "" && e.Subject != "":
		return fmt.Sprintf("%s: %s %q: %s", e.Kind, e.Stage, e.Subject, e.Message)
	case e.Subject != "":
		return fmt.Sprintf("%s: %q: %s", e.Kind, e.Subject, e.Message)
	case e.Stage != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Stage, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Configuration builds an ErrConfiguration failure.
func Configuration(stage, subject, format string, args ...any) *Error {
	return &Error{Kind: ErrConfiguration, Stage: stage, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// Composition builds an ErrComposition failure.
func Composition(stage, subject, format string, args ...any) *Error {
	return &Error{Kind: ErrComposition, Stage: stage, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// WithStage returns err with its stage set when it is a *Error lacking one.
// Other errors are returned unchanged.
func WithStage(err error, stage string) error {
	var fe *Error
	if errors.As(err, &fe) && fe.Stage == "" {
		cp := *fe
		cp.Stage = stage
		return &cp
	}
	return err
}
