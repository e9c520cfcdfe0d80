package forksafe

import (
	"os"
	"strings"
	"sync"
)

// Environment variables consulted by Default and InitFromEnv.
const (
	EnvForkSafe    = "RDMAV_FORK_SAFE"
	EnvForkSafeIBV = "IBV_FORK_SAFE"
)

var (
	defaultOnce    sync.Once
	defaultTracker *Tracker
)

// Default returns the process-wide tracker, creating it on first use with the
// enablement reported by EnvEnabled.
func Default() *Tracker {
	defaultOnce.Do(func() {
		defaultTracker = New(Options{Enabled: EnvEnabled()})
	})
	return defaultTracker
}

// InitFromEnv re-reads the environment and applies it to the process-wide
// tracker. It fails with ErrInUse if the environment turns fork safety off
// while ranges are registered.
func InitFromEnv() error {
	return Default().SetEnabled(EnvEnabled())
}

// EnvEnabled reports whether fork safety is requested by the environment.
// Unset variables mean enabled; "0", "false", "no" and "off" disable it.
func EnvEnabled() bool {
	for _, name := range []string{EnvForkSafe, EnvForkSafeIBV} {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "0", "false", "no", "off":
			return false
		}
	}
	return true
}
