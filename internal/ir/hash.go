package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCompileResult = "pipec/compile-result/v1"
	DomainContext       = "pipec/context/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the domain-separated SHA-256 of v's canonical JSON.
func ContentHash(domain string, v any) (string, error) {
	generic, err := ToCanonicalValue(v)
	if err != nil {
		return "", fmt.Errorf("ContentHash: %w", err)
	}
	canonical, err := MarshalCanonical(generic)
	if err != nil {
		return "", fmt.Errorf("ContentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// ContextHash identifies a pipeline context. Two compiles of the same text
// with equal context hashes must produce the same result.
func ContextHash(ctx PipelineContext) (string, error) {
	return ContentHash(DomainContext, ctx)
}
