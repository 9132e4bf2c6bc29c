package ghutil

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// NormalizePrivateKey returns the PEM encoded private key of a GitHub App.
// raw can be the PEM block itself, the PEM block with escaped "\n" newline
// sequences (common in CI secrets) or the base64 encoded PEM block.
func NormalizePrivateKey(raw string) ([]byte, error) {
	material := raw

	if !strings.Contains(raw, "BEGIN") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("private key is neither PEM nor base64 encoded: %w", err)
		}

		material = string(decoded)
	}

	return []byte(strings.ReplaceAll(material, `\n`, "\n")), nil
}
