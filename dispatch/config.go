package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/amp-labs/amp-dispatch/envutil"
	"gopkg.in/yaml.v3"
)

// Config is the file or environment form of a machine's options.
type Config struct {
	Name          string        `json:"name"          yaml:"name"`
	Policy        Policy        `json:"policy"        yaml:"policy"`
	ResetOnFinish *bool         `json:"resetOnFinish" yaml:"reset_on_finish"`
	PhaseTimeout  time.Duration `json:"phaseTimeout"  yaml:"phase_timeout"`
}

// UnmarshalYAML accepts a policy name.
func (p *Policy) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return fmt.Errorf("%w: policy must be a string: %w", ErrInvalidConfig, err)
	}

	return p.UnmarshalText([]byte(name))
}

// MarshalYAML writes the policy name.
func (p Policy) MarshalYAML() (any, error) {
	text, err := p.MarshalText()
	if err != nil {
		return nil, err
	}

	return string(text), nil
}

// ParseConfig decodes a YAML configuration. Unknown keys are rejected.
// Empty input yields the zero Config.
func ParseConfig(data []byte) (*Config, error) {
	var config Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse dispatch config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read dispatch config %s: %w", path, err)
	}

	return ParseConfig(data)
}

// ConfigFromEnv reads <prefix>_NAME, <prefix>_POLICY,
// <prefix>_RESET_ON_FINISH and <prefix>_PHASE_TIMEOUT.
// Unset variables keep their defaults.
func ConfigFromEnv(ctx context.Context, prefix string) (*Config, error) {
	key := func(name string) string {
		if prefix == "" {
			return name
		}

		return prefix + "_" + name
	}

	name, err := envutil.String(ctx, key("NAME"), envutil.Default("")).Value()
	if err != nil {
		return nil, err
	}

	policy, err := envutil.Map(
		envutil.String(ctx, key("POLICY"), envutil.Default(PolicyReject.String())),
		ParsePolicy,
	).Value()
	if err != nil {
		return nil, err
	}

	timeout, err := envutil.Duration(ctx, key("PHASE_TIMEOUT"), envutil.Default(time.Duration(0))).Value()
	if err != nil {
		return nil, err
	}

	config := &Config{
		Name:         name,
		Policy:       policy,
		PhaseTimeout: timeout,
	}

	reset := envutil.Bool(ctx, key("RESET_ON_FINISH"))
	if reset.Error() != nil {
		_, err := reset.Value()

		return nil, err
	}

	if reset.HasValue() {
		value, _ := reset.Value()
		config.ResetOnFinish = &value
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that the configuration can be applied.
func (c *Config) Validate() error {
	if c.PhaseTimeout < 0 {
		return fmt.Errorf("%w: negative phase timeout %s", ErrInvalidConfig, c.PhaseTimeout)
	}

	if c.Policy != PolicyReject && c.Policy != PolicyQueue {
		return fmt.Errorf("%w: %w: %d", ErrInvalidConfig, ErrUnknownPolicy, int(c.Policy))
	}

	return nil
}

// Options converts the configuration into machine options.
func (c *Config) Options() []Option {
	opts := []Option{
		WithName(c.Name),
		WithPolicy(c.Policy),
		WithPhaseTimeout(c.PhaseTimeout),
	}

	if c.ResetOnFinish != nil {
		opts = append(opts, WithResetOnFinish(*c.ResetOnFinish))
	}

	return opts
}
