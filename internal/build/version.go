package build

import "regexp"

// PlaceholderVersion is reported when an artifact name carries no version token.
const PlaceholderVersion = "latest"

var versionToken = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// ExtractVersion returns the first dotted numeric version in name. ok is false
// when none is present and PlaceholderVersion is returned instead.
func ExtractVersion(name string) (version string, ok bool) {
	if v := versionToken.FindString(name); v != "" {
		return v, true
	}
	return PlaceholderVersion, false
}
