// Package config loads and validates node startup configuration
// (SPEC_FULL.md §4.7): listen/dial addresses, timeouts, and backoff
// policy, sourced from YAML the way the teacher resolves spec
// documents in sio.ResolveSpecSource.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/nodecrew/actorkernel/errs"
)

// Scheme is a ServerAddress's transport scheme (SPEC_FULL.md §6,
// unchanged from spec.md).
type Scheme string

const (
	SchemeInsecure Scheme = "insecure"
	SchemeSecure   Scheme = "secure"
)

// ServerAddress names a listen or dial target. Only SchemeInsecure is
// accepted for listen; SchemeSecure is accepted for dial and passed
// through to the transport (an external reverse proxy is assumed to
// terminate TLS on the listen side).
type ServerAddress struct {
	Scheme Scheme `yaml:"scheme"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
}

func (a ServerAddress) String() string {
	return fmt.Sprintf("%s://%s:%d", a.Scheme, a.Host, a.Port)
}

// BackoffConfig drives ClientManager's ResilientTask reconnect
// backoff: exponential with jitter, capped at Max.
type BackoffConfig struct {
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
	Factor  float64       `yaml:"factor"`
	Jitter  float64       `yaml:"jitter"`
}

// SweepConfig drives the directory sweeper (SPEC_FULL.md §4.9).
type SweepConfig struct {
	Schedule   string        `yaml:"schedule"`
	MaxCallAge time.Duration `yaml:"maxCallAge"`
}

// DiagnosticsConfig drives the diagnostics store and optional status
// page (SPEC_FULL.md §4.8/§4.10). Both are disabled when their
// respective field is empty.
type DiagnosticsConfig struct {
	Path     string `yaml:"path"`
	HTTPAddr string `yaml:"httpAddr"`
}

// NodeConfig is the top-level configuration document.
type NodeConfig struct {
	Listen            *ServerAddress     `yaml:"listen,omitempty"`
	Dial              []ServerAddress    `yaml:"dial,omitempty"`
	ConnectionTimeout time.Duration      `yaml:"connectionTimeout"`
	Backoff           BackoffConfig      `yaml:"backoff"`
	Diagnostics       *DiagnosticsConfig `yaml:"diagnostics,omitempty"`
	Sweep             SweepConfig        `yaml:"sweep"`
}

// DefaultNodeConfig supplies the constants spec.md left
// implementation-defined: a 5s connection timeout, and a
// 200ms-initial/30s-max/2x/20%-jitter backoff.
func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		ConnectionTimeout: 5 * time.Second,
		Backoff: BackoffConfig{
			Initial: 200 * time.Millisecond,
			Max:     30 * time.Second,
			Factor:  2.0,
			Jitter:  0.2,
		},
		Sweep: SweepConfig{
			Schedule:   "*/1 * * * * *",
			MaxCallAge: 5 * time.Minute,
		},
	}
}

// LoadNodeConfig reads and validates a YAML NodeConfig document from
// path, starting from DefaultNodeConfig and overlaying whatever the
// document specifies.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := DefaultNodeConfig()
	if err := yaml.Unmarshal(bs, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the runtime refuses to start with,
// surfacing secureServerNotSupported at load time rather than at bind
// time (SPEC_FULL.md §4.7).
func (c *NodeConfig) Validate() error {
	if c.Listen != nil && c.Listen.Scheme == SchemeSecure {
		return &errs.SecureServerNotSupported{}
	}
	if c.ConnectionTimeout <= 0 {
		return &errs.InvalidNodeConfig{Reason: "connectionTimeout must be positive"}
	}
	if c.Backoff.Initial <= 0 || c.Backoff.Max <= 0 {
		return &errs.InvalidNodeConfig{Reason: "backoff.initial and backoff.max must be positive"}
	}
	if c.Backoff.Factor < 1 {
		return &errs.InvalidNodeConfig{Reason: "backoff.factor must be >= 1"}
	}
	if c.Backoff.Max < c.Backoff.Initial {
		return &errs.InvalidNodeConfig{Reason: "backoff.max must be >= backoff.initial"}
	}
	return nil
}
