package dockhand

import (
	"fmt"
	"strconv"
	"strings"
)

// APIVersion represents the daemon API version used to determine
// compatibility between a client and a server. Minor and patch are -1
// when the parsed string omitted them.
type APIVersion struct {
	Major int
	Minor int
	Patch int
}

// ParseAPIVersion parses a version string such as "1", "1.41" or
// "1.41.2".
func ParseAPIVersion(s string) (APIVersion, error) {
	const op = "parse api version"

	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return APIVersion{}, newError(KindInvalidEndpoint, op, fmt.Errorf("version %q has too many components", s))
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return APIVersion{}, newError(KindInvalidEndpoint, op, fmt.Errorf("version %q has a malformed major component: %w", s, err))
	}

	version := APIVersion{Major: major, Minor: -1, Patch: -1}
	if len(parts) > 1 {
		if version.Minor, err = strconv.Atoi(parts[1]); err != nil {
			return APIVersion{}, newError(KindInvalidEndpoint, op, fmt.Errorf("version %q has a malformed minor component: %w", s, err))
		}
	}
	if len(parts) > 2 {
		if version.Patch, err = strconv.Atoi(parts[2]); err != nil {
			return APIVersion{}, newError(KindInvalidEndpoint, op, fmt.Errorf("version %q has a malformed patch component: %w", s, err))
		}
	}

	return version, nil
}

// String renders the version with only the components it carries.
func (v APIVersion) String() string {
	s := strconv.Itoa(v.Major)
	if v.Minor >= 0 {
		s += "." + strconv.Itoa(v.Minor)
	}
	if v.Patch >= 0 {
		s += "." + strconv.Itoa(v.Patch)
	}
	return s
}

// IsZero reports whether the version is the zero value, meaning no API
// version was configured.
func (v APIVersion) IsZero() bool {
	return v == APIVersion{}
}

// Compare returns -1, 0 or 1 as v is lower than, equal to, or higher
// than other. Absent components compare as zero, so "1.41" and
// "1.41.0" are equal.
func (v APIVersion) Compare(other APIVersion) int {
	for _, pair := range [][2]int{
		{v.Major, other.Major},
		{max(v.Minor, 0), max(other.Minor, 0)},
		{max(v.Patch, 0), max(other.Patch, 0)},
	} {
		if pair[0] < pair[1] {
			return -1
		}
		if pair[0] > pair[1] {
			return 1
		}
	}
	return 0
}

// Path prefixes an endpoint path with the version, producing e.g.
// "/v1.41/containers/json".
func (v APIVersion) Path(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return "/v" + v.String() + endpoint
}
