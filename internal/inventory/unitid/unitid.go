// Package unitid derives human-readable unit identifiers and the opaque
// scan payloads printed on physical unit tags.
package unitid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/stockflow/stockflow-backend/pkg/errors"
)

const (
	// nameSlugLen is the maximum number of characters taken from the
	// product name.
	nameSlugLen = 3

	// productIDLen is the maximum number of characters taken from the
	// product id.
	productIDLen = 4

	// seqDigits is the minimum width of the zero-padded sequence segment.
	// Sequences above 9999 simply grow wider.
	seqDigits = 4

	// entropyBytes yields 16 hex characters per scan payload suffix.
	entropyBytes = 8
)

// Generator produces unit identifiers and scan payloads. The randomness
// source is injected so tests can substitute a deterministic reader.
type Generator struct {
	entropy io.Reader
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom randomness
// source. Intended for tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// UnitID derives the human-readable identifier for a single unit.
// Format: <NAMESLUG>-<PRODIDSHORT>-<SEQ>, e.g. "WID-f47a-0001".
//
// The slug takes up to 3 alphanumeric characters from the uppercased
// product name and the id segment takes the first 4 characters of the
// product id. Shorter inputs produce shorter segments; no padding is
// added. The sequence is 1-based and zero-padded to at least 4 digits.
func UnitID(productName, productID string, sequence int) (string, error) {
	if strings.TrimSpace(productName) == "" {
		return "", errors.InvalidArgument("product name must not be empty")
	}
	if productID == "" {
		return "", errors.InvalidArgument("product id must not be empty")
	}
	if sequence < 1 {
		return "", errors.InvalidArgument(fmt.Sprintf("sequence must be positive, got %d", sequence))
	}

	slug := nameSlug(productName)
	idShort := productID
	if len(idShort) > productIDLen {
		idShort = idShort[:productIDLen]
	}

	return fmt.Sprintf("%s-%s-%0*d", slug, idShort, seqDigits, sequence), nil
}

// QRPayload derives the scan payload for a unit: the unit identifier plus
// a random hex suffix. Two calls for the same unit id never collide, and
// the payload cannot be guessed from the unit id alone.
func (g *Generator) QRPayload(unitID string) (string, error) {
	if unitID == "" {
		return "", errors.InvalidArgument("unit id must not be empty")
	}

	buf := make([]byte, entropyBytes)
	if _, err := io.ReadFull(g.entropy, buf); err != nil {
		return "", errors.Wrap(err, "INTERNAL_ERROR", "failed to read randomness for scan payload", http.StatusInternalServerError)
	}

	return unitID + "-" + hex.EncodeToString(buf), nil
}

// nameSlug extracts up to nameSlugLen alphanumeric characters from the
// uppercased product name. A name with fewer usable characters yields a
// shorter slug.
func nameSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() >= nameSlugLen {
				break
			}
		}
	}
	return b.String()
}
