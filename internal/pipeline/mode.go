package pipeline

import (
	"github.com/cockroachdb/errors"

	"github.com/olehluchkiv/llimpl/internal/config"
	"github.com/olehluchkiv/llimpl/internal/errkind"
)

// ErrNoCachedGeneration is returned when offline mode meets a cache miss.
var ErrNoCachedGeneration = errors.New("no cached generation available in offline mode")

// Mode is the network mode for one invocation.
type Mode struct {
	Offline bool
	reason  string
}

// ResolveMode reports offline when the configuration asks for it or the
// binary was built with the llimpl_nonet tag.
func ResolveMode(cfg config.Config) Mode {
	return resolveMode(cfg.Offline, networkDisabled)
}

func resolveMode(offline, nonet bool) Mode {
	switch {
	case nonet:
		return Mode{Offline: true, reason: "built with -tags llimpl_nonet"}
	case offline:
		return Mode{Offline: true, reason: "LLIMPL_OFFLINE is set"}
	default:
		return Mode{}
	}
}

// Reason says what made the mode offline, or "online".
func (m Mode) Reason() string {
	if !m.Offline {
		return "online"
	}
	return m.reason
}

func (m Mode) String() string {
	if m.Offline {
		return "offline"
	}
	return "online"
}

func (m Mode) missError(name, key string) error {
	err := errors.Wrapf(ErrNoCachedGeneration, "%s (key %s)", name, key)
	err = errors.WithHint(err, "offline mode is on ("+m.reason+"); unset LLIMPL_OFFLINE or build without the llimpl_nonet tag and run once with network access to populate the cache")
	return errkind.Mark(err, errkind.Config)
}
