package config

import (
	"strings"
	"time"

	"git.home.luguber.info/inful/shadowjar/internal/flavor"
	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
)

// Validate checks a defaulted configuration.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	checks := []func() error{
		cv.validateTargets,
		cv.validateDurations,
		cv.validateRetry,
		cv.validateTools,
		cv.validateAPI,
		cv.validateMonitoring,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (cv *configurationValidator) validateTargets() error {
	for i, t := range cv.config.Build.Targets {
		if _, err := flavor.Parse(t.Flavor); err != nil {
			return errors.ConfigError("build target has unsupported flavor").
				WithContext("index", i).
				WithContext("flavor", t.Flavor).Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateDurations() error {
	b := cv.config.Build
	fields := []struct {
		name     string
		value    string
		positive bool
	}{
		{"build.interval", b.Interval, true},
		{"build.initial_delay", b.InitialDelay, false},
		{"build.self_check_timeout", b.SelfCheckTimeout, true},
	}
	for _, f := range fields {
		if f.value == "" && !f.positive {
			continue
		}
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid duration").
				WithContext("field", f.name).
				WithContext("value", f.value).Fatal().UserAction().Build()
		}
		if d < 0 || (f.positive && d == 0) {
			return errors.ConfigError("duration out of range").
				WithContext("field", f.name).
				WithContext("value", f.value).Build()
		}
	}
	if b.MinToolSize < 0 {
		return errors.ConfigError("build.min_tool_size cannot be negative").
			WithContext("value", b.MinToolSize).Build()
	}
	return nil
}

func (cv *configurationValidator) validateRetry() error {
	r := cv.config.Build.CatalogRetry
	switch r.Backoff {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
	default:
		return errors.ConfigError("invalid catalog_retry.backoff (allowed: fixed|linear|exponential)").
			WithContext("value", string(r.Backoff)).Build()
	}
	initial, err := time.ParseDuration(r.InitialDelay)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid catalog_retry.initial_delay").
			WithContext("value", r.InitialDelay).Fatal().Build()
	}
	maxDelay, err := time.ParseDuration(r.MaxDelay)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid catalog_retry.max_delay").
			WithContext("value", r.MaxDelay).Fatal().Build()
	}
	if maxDelay < initial {
		return errors.ConfigError("catalog_retry.max_delay must be >= initial_delay").
			WithContext("initial_delay", r.InitialDelay).
			WithContext("max_delay", r.MaxDelay).Build()
	}
	return nil
}

func (cv *configurationValidator) validateTools() error {
	for name := range cv.config.Tools {
		if _, err := flavor.Parse(name); err != nil {
			return errors.ConfigError("tools entry names an unsupported flavor").
				WithContext("flavor", name).Build()
		}
		if name != strings.ToLower(name) {
			return errors.ConfigError("tools entries must use lower-case flavor names").
				WithContext("flavor", name).Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateAPI() error {
	if p := cv.config.API.Port; p < 1 || p > 65535 {
		return errors.ConfigError("api.port out of range").WithContext("port", p).Build()
	}
	return nil
}

func (cv *configurationValidator) validateMonitoring() error {
	if p := cv.config.Monitoring.Metrics.Path; !strings.HasPrefix(p, "/") {
		return errors.ConfigError("monitoring.metrics.path must start with /").
			WithContext("path", p).Build()
	}
	return nil
}
