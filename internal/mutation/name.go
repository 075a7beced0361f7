package mutation

import (
	"fmt"
	"regexp"

	"golang.org/x/text/unicode/norm"
)

var catalogNamePattern = regexp.MustCompile(`^\p{L}[\p{L}\p{N}_-]{0,63}$`)

// NormalizeCatalogName converts name to Unicode NFC so that visually equal
// names map to the same conflict key and the same directory.
func NormalizeCatalogName(name string) string {
	return norm.NFC.String(name)
}

// ValidateCatalogName checks that name is NFC-normalized and well formed.
func ValidateCatalogName(name string) error {
	if !norm.NFC.IsNormalString(name) {
		return fmt.Errorf("%w: %q is not NFC normalized", ErrInvalidCatalogName, name)
	}
	if !catalogNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCatalogName, name)
	}
	return nil
}
