package id

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

// Kind is the tag prefix of an import ID.
type Kind string

const (
	KindFITID Kind = "fitid"
	KindHash  Kind = "hash"
)

// hashLen is the number of hex characters kept from the digest.
const hashLen = 32

// ForTransaction returns the import ID of a parsed transaction:
// "fitid:<externalId>" when the source supplied one, otherwise the hash form.
func ForTransaction(t model.Transaction) string {
	if t.ExternalID != "" {
		return string(KindFITID) + ":" + t.ExternalID
	}
	return Hash(t.Date, t.Description, t.Amount)
}

// Hash returns "hash:" plus the first 32 hex characters of
// sha256(date|lower(trim(description))|amount).
func Hash(date, description, amount string) string {
	key := date + "|" + strings.ToLower(strings.TrimSpace(description)) + "|" + amount
	sum := sha256.Sum256([]byte(key))
	return string(KindHash) + ":" + hex.EncodeToString(sum[:])[:hashLen]
}

// Parse splits an import ID into its kind and value.
func Parse(importID string) (Kind, string, error) {
	tag, value, ok := strings.Cut(importID, ":")
	if !ok || value == "" {
		return "", "", fmt.Errorf("invalid import ID format: %q", importID)
	}

	switch Kind(tag) {
	case KindFITID:
		return KindFITID, value, nil
	case KindHash:
		if len(value) != hashLen {
			return "", "", fmt.Errorf("invalid hash length in import ID %q", importID)
		}
		if _, err := hex.DecodeString(value); err != nil {
			return "", "", fmt.Errorf("invalid hash in import ID %q: %w", importID, err)
		}
		return KindHash, value, nil
	default:
		return "", "", fmt.Errorf("unknown import ID kind %q", tag)
	}
}

// Valid reports whether importID parses.
func Valid(importID string) bool {
	_, _, err := Parse(importID)
	return err == nil
}
