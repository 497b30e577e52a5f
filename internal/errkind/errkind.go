// Package errkind classifies llimpl failures into the four categories the
// CLI reports on: malformed declarations, bad configuration, backend
// failures, and generated output that did not validate.
package errkind

import (
	"github.com/cockroachdb/errors"
)

// Kind is the category of a fatal error.
type Kind int

const (
	Unknown Kind = iota
	Parse
	Config
	Backend
	Validation
)

// Reference errors used as marks. Match with errors.Is.
var (
	ErrParse      = errors.New("parse error")
	ErrConfig     = errors.New("configuration error")
	ErrBackend    = errors.New("backend error")
	ErrValidation = errors.New("validation error")
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "parse"
	case Config:
		return "config"
	case Backend:
		return "backend"
	case Validation:
		return "validation"
	default:
		return "unknown"
	}
}

func (k Kind) reference() error {
	switch k {
	case Parse:
		return ErrParse
	case Config:
		return ErrConfig
	case Backend:
		return ErrBackend
	case Validation:
		return ErrValidation
	default:
		return nil
	}
}

// Mark tags err with kind k. The message of err is unchanged.
func Mark(err error, k Kind) error {
	if err == nil {
		return nil
	}
	ref := k.reference()
	if ref == nil {
		return err
	}
	return errors.Mark(err, ref)
}

// Of reports the kind err was marked with, or Unknown.
func Of(err error) Kind {
	switch {
	case err == nil:
		return Unknown
	case errors.Is(err, ErrParse):
		return Parse
	case errors.Is(err, ErrConfig):
		return Config
	case errors.Is(err, ErrBackend):
		return Backend
	case errors.Is(err, ErrValidation):
		return Validation
	default:
		return Unknown
	}
}

// Parsef returns a new parse error.
func Parsef(format string, args ...interface{}) error {
	return Mark(errors.Newf(format, args...), Parse)
}

// Configf returns a new configuration error.
func Configf(format string, args ...interface{}) error {
	return Mark(errors.Newf(format, args...), Config)
}
