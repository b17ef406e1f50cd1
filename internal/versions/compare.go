package versions

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Normalize trims whitespace and the "v" or "=" prefixes npm tolerates in
// front of a version, so "v2.0.0" and "=2.0.0" compare equal to "2.0.0".
func Normalize(version string) string {
	return strings.TrimLeft(strings.TrimSpace(version), "v=")
}

// AtLeast reports whether version is greater than or equal to minimum.
// Either side failing to parse as semver reports false.
func AtLeast(version, minimum string) bool {
	v, err := semver.NewVersion(Normalize(version))
	if err != nil {
		return false
	}
	m, err := semver.NewVersion(Normalize(minimum))
	if err != nil {
		return false
	}
	return !v.LessThan(m)
}

// SameMajor reports whether both versions parse and share a major version
func SameMajor(a, b string) bool {
	va, err := semver.NewVersion(Normalize(a))
	if err != nil {
		return false
	}
	vb, err := semver.NewVersion(Normalize(b))
	if err != nil {
		return false
	}
	return va.Major() == vb.Major()
}
