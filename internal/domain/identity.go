package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeIdentity canonicalizes an identity label so visually equal names
// map to one gallery entry and one dataset folder.
// Parameters:
//   - name: raw label as typed by an operator.
//
// Returns:
//   - string: NFC-normalized label with collapsed whitespace.
//   - error: ErrInvalidIdentity if the label is empty or contains path elements.
func NormalizeIdentity(name string) (string, error) {
	normalized := strings.Join(strings.Fields(norm.NFC.String(name)), " ")
	if normalized == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidIdentity)
	}
	if normalized == "." || normalized == ".." || strings.ContainsAny(normalized, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentity, name)
	}
	return normalized, nil
}
