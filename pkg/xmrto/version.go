package xmrto

import (
	"fmt"

	"github.com/veiloq/xmrto-client/pkg/connection"
)

// Version identifies a remote API schema version. The two versions differ
// in field names and in which entities and fields exist at all; the mapping
// tables in mapping.go capture the differences.
type Version string

const (
	// V2 is the legacy schema: floating-point amounts, integrated
	// addresses and payment IDs, no lightning support.
	V2 Version = "v2"

	// V3 is the current schema: decimal-string amounts, subaddress-only
	// payments, lightning orders and routes.
	V3 Version = "v3"
)

// DefaultVersion is used when the caller does not pick one.
const DefaultVersion = V3

// ParseVersion validates a version string from configuration or flags.
func ParseVersion(s string) (Version, *connection.Error) {
	switch Version(s) {
	case V2:
		return V2, nil
	case V3:
		return V3, nil
	}
	return "", connection.NewError(
		connection.KindUnsupportedAPIVersion,
		fmt.Sprintf("API version %q is not supported", s),
	)
}

// Valid reports whether v is a supported version.
func (v Version) Valid() bool {
	return v == V2 || v == V3
}

// String implements fmt.Stringer.
func (v Version) String() string {
	return string(v)
}
