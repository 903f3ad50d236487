package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for changing the hashed payload.
const (
	DomainUnit   = "atomicfu/unit/v1"
	DomainSource = "atomicfu/source/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// UnitHash computes the content hash of a translation unit.
//
// The payload is the unit's rendered source, which includes every
// declaration, type and expression, so two units hash equal exactly when
// they render equal. Running the pass on an already rewritten unit must
// therefore leave its hash unchanged.
func UnitHash(f *File) (string, error) {
	obj := IRObject{
		"name":    IRString(f.Name),
		"package": IRString(f.Package),
		"source":  IRString(Render(f)),
		"ir":      IRString(IRVersion),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("UnitHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainUnit, canonical), nil
}

// MustUnitHash is like UnitHash but panics on error.
// Use only in tests or when the unit is known to be valid.
func MustUnitHash(f *File) string {
	h, err := UnitHash(f)
	if err != nil {
		panic(err)
	}
	return h
}

// SourceHash computes the content hash of a unit document as read from disk.
func SourceHash(data []byte) string {
	return hashWithDomain(DomainSource, data)
}
