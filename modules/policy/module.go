package policy

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/dmitrymomot/quotakit/pkg/enforce"
	"github.com/dmitrymomot/quotakit/pkg/quota"
	"github.com/dmitrymomot/quotakit/pkg/trial"
)

// SubjectResolver extracts the quota subject from a request.
type SubjectResolver func(r *http.Request) (quota.Subject, error)

// Module wires the engine's operations to HTTP handlers.
type Module struct {
	gate    *enforce.Gate
	trials  *trial.Service
	resolve SubjectResolver
	health  map[string]func(context.Context) error
	log     *slog.Logger
}

// ModuleOption configures a Module.
type ModuleOption func(*Module)

// WithSubjectResolver replaces the default header-based resolver.
func WithSubjectResolver(resolve SubjectResolver) ModuleOption {
	return func(m *Module) {
		if resolve != nil {
			m.resolve = resolve
		}
	}
}

// WithHealthcheck registers a named readiness probe for GET /health.
func WithHealthcheck(name string, probe func(context.Context) error) ModuleOption {
	return func(m *Module) {
		if name != "" && probe != nil {
			m.health[name] = probe
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) ModuleOption {
	return func(m *Module) {
		if log != nil {
			m.log = log
		}
	}
}

// NewModule creates the HTTP module over the given gate and trial
// service.
func NewModule(gate *enforce.Gate, trials *trial.Service, opts ...ModuleOption) *Module {
	if gate == nil {
		panic("policy: gate cannot be nil")
	}
	if trials == nil {
		panic("policy: trial service cannot be nil")
	}
	m := &Module{
		gate:    gate,
		trials:  trials,
		resolve: HeaderSubjectResolver,
		health:  make(map[string]func(context.Context) error),
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HeaderSubjectResolver reads the subject from gateway-set headers.
// A missing key falls back to an anonymous identity derived from the
// caller's network origin; missing tier and role fall back to free/user.
func HeaderSubjectResolver(r *http.Request) (quota.Subject, error) {
	key := r.Header.Get("X-Subject-Key")
	if key == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		key = "anon:" + host
	}

	tier := quota.TierFree
	if raw := r.Header.Get("X-Subject-Tier"); raw != "" {
		var err error
		if tier, err = quota.ParseTier(raw); err != nil {
			return quota.Subject{}, err
		}
	}

	role := quota.RoleUser
	if raw := r.Header.Get("X-Subject-Role"); raw != "" {
		var err error
		if role, err = quota.ParseRole(raw); err != nil {
			return quota.Subject{}, err
		}
	}

	return quota.Subject{Key: key, Tier: tier, Role: role}, nil
}
