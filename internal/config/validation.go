package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap/zapcore"

	schnorrkel "github.com/aa-schnorr/schnorrkel"
)

// Configuration validation limits
const (
	MinSessionTimeout = time.Second
	MaxSessionTimeout = time.Hour
	MinRedisTTL       = 30 * time.Second
)

// ConfigurationValidator checks a Config before anything is started
type ConfigurationValidator struct {
	supportedCurves   map[string]bool
	supportedBackends map[string]bool
}

// NewDefaultConfigurationValidator creates a validator with secure defaults
func NewDefaultConfigurationValidator() *ConfigurationValidator {
	return &ConfigurationValidator{
		supportedCurves: map[string]bool{
			"secp256k1": true,
			"ed25519":   true,
		},
		supportedBackends: map[string]bool{
			"memory": true,
			"redis":  true,
		},
	}
}

func newResult() *schnorrkel.ValidationResult {
	return &schnorrkel.ValidationResult{
		Valid:           true,
		SecurityLevel:   schnorrkel.SecurityLevelMedium,
		Warnings:        []string{},
		Errors:          []string{},
		Recommendations: []string{},
	}
}

func fail(r *schnorrkel.ValidationResult, format string, args ...interface{}) {
	r.Valid = false
	r.SecurityLevel = schnorrkel.SecurityLevelLow
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// ValidateCurve checks the curve name
func (cv *ConfigurationValidator) ValidateCurve(name string) *schnorrkel.ValidationResult {
	result := newResult()
	if !cv.supportedCurves[name] {
		fail(result, "unsupported curve: %q", name)
		result.Recommendations = append(result.Recommendations, "use secp256k1 or ed25519")
		return result
	}

	switch name {
	case "secp256k1":
		result.SecurityLevel = schnorrkel.SecurityLevelHigh
	case "ed25519":
		result.SecurityLevel = schnorrkel.SecurityLevelHigh
		result.Warnings = append(result.Warnings, "ed25519 signatures cannot be verified by the on-chain validation module")
	}
	return result
}

// ValidateMailbox checks the backend selection and its parameters
func (cv *ConfigurationValidator) ValidateMailbox(mc MailboxConfig, sc SessionConfig) *schnorrkel.ValidationResult {
	result := newResult()
	if !cv.supportedBackends[mc.Backend] {
		fail(result, "unsupported mailbox backend: %q", mc.Backend)
		return result
	}

	if sc.Timeout < MinSessionTimeout || sc.Timeout > MaxSessionTimeout {
		fail(result, "session timeout %s outside [%s, %s]", sc.Timeout, MinSessionTimeout, MaxSessionTimeout)
	}

	if mc.Backend == "redis" {
		if mc.Redis.Addr == "" {
			fail(result, "redis backend requires an address")
		}
		if mc.Redis.TTL < MinRedisTTL {
			fail(result, "redis ttl %s is below %s", mc.Redis.TTL, MinRedisTTL)
		}
		if mc.Redis.TTL > 0 && mc.Redis.TTL < sc.Timeout {
			result.Warnings = append(result.Warnings, "redis ttl is shorter than the session timeout; sessions may expire mid-flight")
		}
		if mc.Redis.Password == "" {
			result.Recommendations = append(result.Recommendations, "set a redis password when the mailbox is shared across hosts")
		}
	}
	return result
}

// ValidateModule checks that every configured module address is well formed
func (cv *ConfigurationValidator) ValidateModule(m ModuleConfig) *schnorrkel.ValidationResult {
	result := newResult()
	if m.DefaultAddress != "" && !common.IsHexAddress(m.DefaultAddress) {
		fail(result, "invalid default module address %q", m.DefaultAddress)
	}
	for version, addr := range m.Versions {
		if !common.IsHexAddress(addr) {
			fail(result, "invalid module address %q for version %s", addr, version)
		}
	}
	if m.DefaultAddress == "" {
		if _, ok := m.Versions[m.DefaultVersion]; !ok {
			result.Warnings = append(result.Warnings, "no default module address; only explicit addresses or registered versions will resolve")
		}
	}
	return result
}

// ValidateLog checks the log level
func (cv *ConfigurationValidator) ValidateLog(l LogConfig) *schnorrkel.ValidationResult {
	result := newResult()
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		fail(result, "invalid log level %q", l.Level)
	}
	if l.File != "" && l.MaxSizeMB <= 0 {
		fail(result, "log rotation needs a positive max_size_mb")
	}
	return result
}

// ValidateCompleteConfiguration runs every check and merges the results
func (cv *ConfigurationValidator) ValidateCompleteConfiguration(c *Config) *schnorrkel.ValidationResult {
	overall := newResult()
	overall.SecurityLevel = schnorrkel.SecurityLevelHigh

	for _, r := range []*schnorrkel.ValidationResult{
		cv.ValidateCurve(c.Curve),
		cv.ValidateMailbox(c.Mailbox, c.Session),
		cv.ValidateModule(c.Module),
		cv.ValidateLog(c.Log),
	} {
		if !r.Valid {
			overall.Valid = false
		}
		overall.Errors = append(overall.Errors, r.Errors...)
		overall.Warnings = append(overall.Warnings, r.Warnings...)
		overall.Recommendations = append(overall.Recommendations, r.Recommendations...)
		overall.SecurityLevel = minLevel(overall.SecurityLevel, r.SecurityLevel)
	}
	if c.Store.Dir == "" {
		fail(overall, "store directory cannot be empty")
	}
	return overall
}

// Validate returns ErrInvalidConfiguration describing the first problem
func (c *Config) Validate() error {
	return NewDefaultConfigurationValidator().ValidateCompleteConfiguration(c).Err(schnorrkel.ErrInvalidConfiguration)
}

func minLevel(a, b schnorrkel.SecurityLevel) schnorrkel.SecurityLevel {
	rank := map[schnorrkel.SecurityLevel]int{
		schnorrkel.SecurityLevelLow:    1,
		schnorrkel.SecurityLevelMedium: 2,
		schnorrkel.SecurityLevelHigh:   3,
	}
	if rank[a] <= rank[b] {
		return a
	}
	return b
}
