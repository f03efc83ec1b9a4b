package certificate

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"regexp"
	"strings"
)

// Location is the `{country}/{authority-fragment}` token parsed from a UVCI.
// It keys revocation-index lookups.
type Location struct {
	Country  string
	Fragment string
}

func (l Location) String() string {
	return l.Country + "/" + l.Fragment
}

// Real-world UVCIs carry leading version digits or other garbage before the
// country code, and trailing segments after the authority fragment. The
// fragment must be terminated by a further slash; a bare "XX/fragment" with
// nothing after it does not qualify.
var uvciLocationPattern = regexp.MustCompile(`[A-Z]{2}/[0-9A-Za-z]+/`)

// ParseUVCILocation extracts the location token from a UVCI string. It is
// total: malformed input yields ok == false, never a panic.
func ParseUVCILocation(uvci string) (Location, bool) {
	match := uvciLocationPattern.FindString(uvci)
	if match == "" {
		return Location{}, false
	}
	match = strings.TrimSuffix(match, "/")
	country, fragment, _ := strings.Cut(match, "/")
	return Location{Country: country, Fragment: fragment}, true
}

// RevocationHash is the lookup key for UVCI-only revocation entries. It must
// stay bit-stable across runs and releases: the same digest is computed by
// the backend that distributes revocation indices.
func RevocationHash(uvci string) string {
	sum := sha256.Sum256([]byte(uvci))
	return hex.EncodeToString(sum[:])
}

// RevocationCountryHash keys country-scoped revocation entries.
func RevocationCountryHash(uvci, country string) string {
	sum := sha256.Sum256([]byte(uvci + country))
	return hex.EncodeToString(sum[:])
}

// LocationHash digests the parsed UVCI location for the per-authority
// revocation partitions. Returns empty when the UVCI has no location.
func LocationHash(uvci string) string {
	loc, ok := ParseUVCILocation(uvci)
	if !ok {
		return ""
	}
	sum := sha512.Sum512([]byte(loc.String()))
	return hex.EncodeToString(sum[:])
}
