// Package semver checks a metadata document's spec_version against the
// TUF specification versions this engine understands, using
// Masterminds/semver/v3 for the actual range comparison.
package semver

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SupportedRange is the set of TUF spec_version values this engine can
// read and write. Metadata declaring a spec_version outside this range is
// rejected as malformed rather than silently misinterpreted.
const SupportedRange = "~1.0"

var constraint = mustConstraint(SupportedRange)

func mustConstraint(c string) *semver.Constraints {
	parsed, err := semver.NewConstraint(c)
	if err != nil {
		panic(fmt.Sprintf("semver: invalid built-in constraint %q: %v", c, err))
	}
	return parsed
}

// CheckSpecVersion reports whether specVersion (e.g. "1.0.31") is
// compatible with the versions of the TUF specification this engine
// implements.
func CheckSpecVersion(specVersion string) error {
	v, err := semver.NewVersion(specVersion)
	if err != nil {
		return fmt.Errorf("semver: invalid spec_version %q: %w", specVersion, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("semver: spec_version %q is not compatible with supported range %q", specVersion, SupportedRange)
	}
	return nil
}

// Compare orders two spec_version strings using semver precedence rather
// than lexical string comparison (so "1.0.9" < "1.0.10").
func Compare(a, b string) (int, error) {
	va, err := semver.NewVersion(a)
	if err != nil {
		return 0, fmt.Errorf("semver: invalid version %q: %w", a, err)
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return 0, fmt.Errorf("semver: invalid version %q: %w", b, err)
	}
	return va.Compare(vb), nil
}
