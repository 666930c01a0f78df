// Package launch owns how the HTTP app is brought onto the network: port
// resolution from the hosting environment, a direct single-process mode,
// and a supervised mode where a master process manages a pool of worker
// processes sharing one inherited listener.
package launch

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Mode selects how the service process tree is arranged.
type Mode string

const (
	// ModeDirect serves HTTP from the current process.
	ModeDirect Mode = "direct"
	// ModeSupervised forks a worker pool under a supervising master.
	ModeSupervised Mode = "supervised"
)

const (
	DefaultHost              = "0.0.0.0"
	DefaultWorkers           = 3
	DefaultGraceTimeout      = 30 * time.Second
	DefaultRequestTimeout    = 120 * time.Second
	DefaultMaxRequests       = 1000
	DefaultMaxRequestsJitter = 50
)

// Config carries everything the launch layer needs to bind and serve.
// Zero fields are filled by Normalize; Validate rejects what remains
// unusable after that.
type Config struct {
	Mode Mode
	Host string
	Port int

	// Supervised-mode pool shape.
	Workers int

	// GraceTimeout bounds draining on shutdown, RequestTimeout bounds a
	// single request before the whole worker is replaced.
	GraceTimeout   time.Duration
	RequestTimeout time.Duration

	// A worker retires itself after MaxRequests plus a random jitter so
	// pool members do not all recycle at the same instant. Zero disables
	// recycling.
	MaxRequests       int
	MaxRequestsJitter int
}

// Normalize fills unset fields with their defaults.
func (c *Config) Normalize() {
	if c.Mode == "" {
		c.Mode = ModeDirect
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.GraceTimeout == 0 {
		c.GraceTimeout = DefaultGraceTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.MaxRequestsJitter == 0 {
		c.MaxRequestsJitter = DefaultMaxRequestsJitter
	}
}

// Validate reports the first problem that would make the config unserveable.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeDirect, ModeSupervised:
	default:
		return fmt.Errorf("unknown launch mode %q (want %q or %q)", c.Mode, ModeDirect, ModeSupervised)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Mode == ModeSupervised && c.Workers < 1 {
		return fmt.Errorf("supervised mode needs at least one worker, got %d", c.Workers)
	}
	if c.GraceTimeout < 0 || c.RequestTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// Addr is the host:port the listener binds.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ResolvePort picks the port to serve on. The platform-assigned PORT
// environment value wins; a configured fallback covers local runs. With
// neither present this is a fatal configuration error, surfaced before
// any listener is opened.
func ResolvePort(portEnv string, fallback int) (int, error) {
	if portEnv != "" {
		p, err := strconv.Atoi(portEnv)
		if err != nil {
			return 0, fmt.Errorf("PORT %q is not an integer", portEnv)
		}
		if p < 1 || p > 65535 {
			return 0, fmt.Errorf("PORT %d out of range", p)
		}
		return p, nil
	}
	if fallback > 0 {
		return fallback, nil
	}
	return 0, errors.New("no port configured: set PORT or a fallback port")
}
