package wlink

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Defaults per spec.md §4.1/§4.4/§4.3.
const (
	defaultUSBTimeout   = 5 * time.Second
	defaultDmiRetries   = 100
	defaultDmiPollEvery = 10 * time.Millisecond
	defaultAttachTries  = 3
	defaultAttachBackoff = 100 * time.Millisecond
)

// config holds the tunable knobs a Probe/Session carries. There is no
// config *file* — spec.md §6 "Persisted state: None" — these are plain
// functional options set at OpenNth time (a Session inherits its Probe's
// config), mirroring the teacher's
// plain-struct-literal configuration (no env/flag parsing in the core).
type config struct {
	usbTimeout    time.Duration
	dmiRetries    int
	dmiPollEvery  time.Duration
	attachTries   int
	attachBackoff time.Duration
	logger        logrus.FieldLogger
}

func defaultConfig() config {
	return config{
		usbTimeout:    defaultUSBTimeout,
		dmiRetries:    defaultDmiRetries,
		dmiPollEvery:  defaultDmiPollEvery,
		attachTries:   defaultAttachTries,
		attachBackoff: defaultAttachBackoff,
		logger:        logrus.StandardLogger(),
	}
}

// Option configures a Probe returned by OpenNth.
type Option func(*config)

// WithUSBTimeout overrides the default 5s bulk transfer timeout.
func WithUSBTimeout(d time.Duration) Option {
	return func(c *config) { c.usbTimeout = d }
}

// WithDmiRetryBudget overrides the default 100-iteration DMI busy-poll cap.
func WithDmiRetryBudget(n int) Option {
	return func(c *config) { c.dmiRetries = n }
}

// WithDmiPollInterval overrides the default 10ms DMI busy-poll interval.
func WithDmiPollInterval(d time.Duration) Option {
	return func(c *config) { c.dmiPollEvery = d }
}

// WithAttachRetries overrides the default 3-attempt attach retry bound.
func WithAttachRetries(n int) Option {
	return func(c *config) { c.attachTries = n }
}

// WithLogger redirects all logging to the given logrus.FieldLogger; the
// default is logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) { c.logger = l }
}
