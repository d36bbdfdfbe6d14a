package quota

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

// TierLimits holds the billable operation limits for one tier, per period.
// A zero limit means the tier may not perform the operation at all.
type TierLimits struct {
	Daily   int64 `yaml:"daily" json:"daily"`
	Monthly int64 `yaml:"monthly" json:"monthly"`
}

// SystemPolicy is the process-wide quota and trial configuration. It is
// loaded once at startup and treated as an immutable snapshot thereafter:
// evaluators receive it explicitly instead of reading ambient global state.
type SystemPolicy struct {
	// Limits maps each tier to its daily/monthly operation limits.
	Limits map[Tier]TierLimits `yaml:"limits" json:"limits"`

	// WarnThresholdPercent is the usage percentage at which a soft warning
	// is raised. Must be in (0, 100].
	WarnThresholdPercent int `yaml:"warn_threshold_percent" json:"warn_threshold_percent"`

	// MaxTrialsPerUserLifetime caps the total number of trials a user may
	// ever receive, across all programs and sources. This is a system-wide
	// value; no per-program override exists.
	MaxTrialsPerUserLifetime int `yaml:"max_trials_per_user_lifetime" json:"max_trials_per_user_lifetime"`
}

// DefaultSystemPolicy returns the built-in policy used when no file or
// custom source is configured.
func DefaultSystemPolicy() SystemPolicy {
	return SystemPolicy{
		Limits: map[Tier]TierLimits{
			TierFree:    {Daily: 5, Monthly: 50},
			TierStarter: {Daily: 25, Monthly: 300},
			TierPro:     {Daily: 100, Monthly: 1500},
			TierTeam:    {Daily: 250, Monthly: 5000},
		},
		WarnThresholdPercent:     80,
		MaxTrialsPerUserLifetime: 3,
	}
}

// Validate checks the policy for configuration mistakes. Negative limits
// and out-of-range thresholds prevent startup rather than surface as odd
// runtime decisions.
func (p SystemPolicy) Validate() error {
	if len(p.Limits) == 0 {
		return errors.Join(ErrInvalidPolicy, errors.New("no tier limits configured"))
	}
	for tier, limits := range p.Limits {
		if !tier.Valid() {
			return errors.Join(ErrInvalidPolicy, fmt.Errorf("unknown tier %q", tier))
		}
		if limits.Daily < 0 || limits.Monthly < 0 {
			return errors.Join(ErrInvalidPolicy, fmt.Errorf("tier %q has negative limits", tier))
		}
	}
	if p.WarnThresholdPercent <= 0 || p.WarnThresholdPercent > 100 {
		return errors.Join(ErrInvalidPolicy, fmt.Errorf("warn threshold %d out of range (0,100]", p.WarnThresholdPercent))
	}
	if p.MaxTrialsPerUserLifetime <= 0 {
		return errors.Join(ErrInvalidPolicy, errors.New("lifetime trial cap must be positive"))
	}
	return nil
}

// LimitsFor returns the limits configured for the given tier.
func (p SystemPolicy) LimitsFor(tier Tier) (TierLimits, error) {
	limits, ok := p.Limits[tier]
	if !ok {
		return TierLimits{}, errors.Join(ErrTierLimitsNotDefined, fmt.Errorf("tier %q", tier))
	}
	return limits, nil
}

// Source defines how a SystemPolicy is loaded at startup.
type Source interface {
	Load(ctx context.Context) (SystemPolicy, error)
}

type inMemSource struct {
	policy SystemPolicy
}

// NewInMemSource returns a Source backed by a copy of the given policy.
func NewInMemSource(policy SystemPolicy) Source {
	policy.Limits = maps.Clone(policy.Limits)
	return &inMemSource{policy: policy}
}

func (s *inMemSource) Load(ctx context.Context) (SystemPolicy, error) {
	p := s.policy
	p.Limits = maps.Clone(p.Limits)
	return p, nil
}

type fileSource struct {
	path string
}

// NewFileSource returns a Source that reads the policy from a YAML file.
// Fields missing from the file fall back to DefaultSystemPolicy values.
func NewFileSource(path string) Source {
	return &fileSource{path: path}
}

func (s *fileSource) Load(ctx context.Context) (SystemPolicy, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return SystemPolicy{}, errors.Join(ErrPolicyFileNotFound, err)
		}
		return SystemPolicy{}, errors.Join(ErrFailedToLoadPolicy, err)
	}

	policy := DefaultSystemPolicy()
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return SystemPolicy{}, errors.Join(ErrFailedToLoadPolicy, err)
	}
	return policy, nil
}

// LoadPolicy loads and validates a policy from the given source. A nil
// source yields the default policy.
func LoadPolicy(ctx context.Context, src Source) (SystemPolicy, error) {
	if src == nil {
		return DefaultSystemPolicy(), nil
	}
	policy, err := src.Load(ctx)
	if err != nil {
		return SystemPolicy{}, err
	}
	if err := policy.Validate(); err != nil {
		return SystemPolicy{}, err
	}
	return policy, nil
}
