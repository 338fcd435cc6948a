package schnorrkel

import (
	"fmt"
)

// SecurityLevel represents the security level of a signer set
type SecurityLevel string

const (
	SecurityLevelLow    SecurityLevel = "low"
	SecurityLevelMedium SecurityLevel = "medium"
	SecurityLevelHigh   SecurityLevel = "high"
)

// ValidationResult contains the result of parameter validation
type ValidationResult struct {
	Valid           bool          `json:"valid"`
	SecurityLevel   SecurityLevel `json:"security_level"`
	Warnings        []string      `json:"warnings,omitempty"`
	Errors          []string      `json:"errors,omitempty"`
	Recommendations []string      `json:"recommendations,omitempty"`
}

func newValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:           true,
		SecurityLevel:   SecurityLevelMedium,
		Warnings:        []string{},
		Errors:          []string{},
		Recommendations: []string{},
	}
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.SecurityLevel = SecurityLevelLow
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// merge folds other into r, keeping the lower security level.
func (r *ValidationResult) merge(other *ValidationResult) {
	if !other.Valid {
		r.Valid = false
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Recommendations = append(r.Recommendations, other.Recommendations...)
	r.SecurityLevel = minSecurityLevel(r.SecurityLevel, other.SecurityLevel)
}

// ValidateSignerSet checks an ordered signer set before key aggregation:
// non-empty, every key on the curve and not the identity, no duplicates.
func ValidateSignerSet(curve Curve, publicKeys []Point) *ValidationResult {
	result := newValidationResult()

	if curve == nil {
		result.fail("curve cannot be nil")
		return result
	}
	if len(publicKeys) == 0 {
		result.fail("signer set cannot be empty")
		return result
	}

	seen := make(map[string]int, len(publicKeys))
	for i, p := range publicKeys {
		if p == nil {
			result.fail("public key %d is nil", i)
			continue
		}
		if p.IsIdentity() || !p.IsOnCurve() {
			result.fail("public key %d is not a valid curve point", i)
			continue
		}
		key := p.String()
		if j, dup := seen[key]; dup {
			result.fail("public key %d duplicates public key %d", i, j)
			continue
		}
		seen[key] = i
	}
	if !result.Valid {
		return result
	}

	switch n := len(publicKeys); {
	case n == 1:
		result.SecurityLevel = SecurityLevelLow
		result.Warnings = append(result.Warnings, "a single signer gives no multi-party protection")
	case n == 2:
		result.SecurityLevel = SecurityLevelMedium
	default:
		result.SecurityLevel = SecurityLevelHigh
	}
	if len(publicKeys) > 1 {
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("every one of the %d signers must be online to authorize", len(publicKeys)))
	}
	return result
}

// ValidateSigningInputs checks the values a signer receives before signing.
func ValidateSigningInputs(curve Curve, msgHash []byte, publicKeys []Point, publicNonces []*PublicNonces) *ValidationResult {
	result := newValidationResult()

	if len(msgHash) != 32 {
		result.fail("message hash must be 32 bytes, got %d", len(msgHash))
	}
	if len(publicKeys) != len(publicNonces) {
		result.fail("got %d public keys but %d nonce commitments", len(publicKeys), len(publicNonces))
	}
	result.merge(ValidateSignerSet(curve, publicKeys))

	seen := make(map[string]int, len(publicNonces))
	for i, n := range publicNonces {
		if n == nil || n.K1 == nil || n.K2 == nil {
			result.fail("nonce commitment %d is missing", i)
			continue
		}
		if n.K1.IsIdentity() || n.K2.IsIdentity() {
			result.fail("nonce commitment %d contains the identity", i)
			continue
		}
		fp := n.Fingerprint()
		if j, dup := seen[fp]; dup {
			result.fail("nonce commitment %d duplicates commitment %d", i, j)
			continue
		}
		seen[fp] = i
	}
	return result
}

// Err converts a failed result into the matching structured error.
func (r *ValidationResult) Err(base *SchnorrError) error {
	if r.Valid {
		return nil
	}
	return base.WithContext("errors", r.Errors).WithDetails("%s", r.Errors[0])
}

// minSecurityLevel returns the minimum security level between two SecurityLevel values
func minSecurityLevel(level1, level2 SecurityLevel) SecurityLevel {
	levelRanking := map[SecurityLevel]int{
		SecurityLevelLow:    1,
		SecurityLevelMedium: 2,
		SecurityLevelHigh:   3,
	}

	rank1, exists1 := levelRanking[level1]
	if !exists1 {
		rank1 = 2 // Default to medium if unknown
	}

	rank2, exists2 := levelRanking[level2]
	if !exists2 {
		rank2 = 2
	}

	if rank1 <= rank2 {
		return level1
	}
	return level2
}
