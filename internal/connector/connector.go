// Package connector serves the data-connector operations (query, explain,
// schema, capabilities and health) on top of the planner, an execution
// backend and the result transformer. The schema descriptor and executor are
// installed as a single snapshot; each request uses the snapshot that was
// current when it started.
package connector

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"

	"graph-query-connector/internal/execution"
	"graph-query-connector/internal/logging"
	"graph-query-connector/internal/observability"
	"graph-query-connector/internal/planner"
	"graph-query-connector/internal/schema"
)

// ErrConfigurationMissing is returned by every operation until a descriptor
// has been installed.
var ErrConfigurationMissing = errors.New("config is not configured")

var tracer = otel.Tracer("graph-query-connector/connector")

type state struct {
	desc        *schema.Descriptor
	exec        execution.Executor
	fingerprint string
}

// Connector answers data-connector requests. It is safe for concurrent use.
type Connector struct {
	current atomic.Pointer[state]

	logger       *logging.Logger
	metrics      *observability.ConnectorMetrics
	limits       *planner.PlanLimits
	defaultLimit int
	strict       bool
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Connector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request metrics. A nil value disables them.
func WithMetrics(metrics *observability.ConnectorMetrics) Option {
	return func(c *Connector) {
		c.metrics = metrics
	}
}

// WithPlanLimits rejects requests whose estimated cost exceeds limits.
func WithPlanLimits(limits planner.PlanLimits) Option {
	return func(c *Connector) {
		c.limits = &limits
	}
}

// WithDefaultLimit caps the root collection of requests without a limit.
func WithDefaultLimit(n int) Option {
	return func(c *Connector) {
		c.defaultLimit = n
	}
}

// WithStrictOperators rejects operators the compared scalar does not define.
func WithStrictOperators(strict bool) Option {
	return func(c *Connector) {
		c.strict = strict
	}
}

// New creates a Connector with no descriptor installed.
func New(opts ...Option) *Connector {
	c := &Connector{
		logger: &logging.Logger{Logger: slog.Default()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle is the owner's reference to an installed snapshot.
type Handle struct {
	c        *Connector
	s        *state
	released atomic.Bool
}

// Install makes desc and exec the snapshot used by new requests, replacing
// any previous one. Requests already running keep their snapshot.
func (c *Connector) Install(desc *schema.Descriptor, exec execution.Executor, fingerprint string) (*Handle, error) {
	if desc == nil {
		return nil, errors.New("schema descriptor is required")
	}
	if exec == nil {
		return nil, errors.New("executor is required")
	}
	s := &state{desc: desc, exec: exec, fingerprint: fingerprint}
	c.current.Store(s)
	c.logger.Info("schema descriptor installed",
		slog.Int("collections", len(desc.Collections())),
		slog.String("fingerprint", fingerprint),
	)
	return &Handle{c: c, s: s}, nil
}

// Release uninstalls the handle's snapshot if it is still current. Releasing
// a superseded handle, or releasing twice, does nothing.
func (h *Handle) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	h.c.current.CompareAndSwap(h.s, nil)
}

// Fingerprint identifies the descriptor source the handle was installed from.
func (h *Handle) Fingerprint() string {
	if h == nil {
		return ""
	}
	return h.s.fingerprint
}

// Descriptor returns the handle's descriptor.
func (h *Handle) Descriptor() *schema.Descriptor {
	if h == nil {
		return nil
	}
	return h.s.desc
}

// Descriptor returns the installed descriptor, or nil.
func (c *Connector) Descriptor() *schema.Descriptor {
	if s := c.current.Load(); s != nil {
		return s.desc
	}
	return nil
}

// Fingerprint returns the installed descriptor's fingerprint, or "".
func (c *Connector) Fingerprint() string {
	if s := c.current.Load(); s != nil {
		return s.fingerprint
	}
	return ""
}

func (c *Connector) snapshot() (*state, error) {
	s := c.current.Load()
	if s == nil {
		return nil, ErrConfigurationMissing
	}
	return s, nil
}

func (c *Connector) planOptions() []planner.PlanOption {
	var opts []planner.PlanOption
	if c.limits != nil {
		opts = append(opts, planner.WithLimits(*c.limits))
	}
	if c.defaultLimit > 0 {
		opts = append(opts, planner.WithDefaultLimit(c.defaultLimit))
	}
	if c.strict {
		opts = append(opts, planner.WithStrictOperators())
	}
	return opts
}

// Health reports whether a descriptor is installed and the executor's
// backend answers.
func (c *Connector) Health(ctx context.Context) error {
	s, err := c.snapshot()
	if err != nil {
		return err
	}
	if checker, ok := s.exec.(execution.HealthChecker); ok {
		return checker.Ping(ctx)
	}
	return nil
}
