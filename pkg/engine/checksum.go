package engine

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/opencontainers/go-digest"
)

var bundleCodePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// Canonicalize returns the RFC 8785 canonical JSON of v. Formatting, key
// order and number spelling do not affect the result.
func Canonicalize(v interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal representation: %w", err)
	}
	return CanonicalizeJSON(raw)
}

// CanonicalizeJSON canonicalizes already-serialized JSON.
func CanonicalizeJSON(raw []byte) (json.RawMessage, error) {
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize representation: %w", err)
	}
	return canonical, nil
}

// Checksum returns the checksum of the canonical serialization of v.
func Checksum(v interface{}) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return ChecksumBytes(canonical), nil
}

// ChecksumBytes digests canonical bytes.
func ChecksumBytes(canonical []byte) string {
	return digest.FromBytes(canonical).String()
}

// BundleDigest summarizes the full declared content of a bundle version.
// It is independent of operation order.
func BundleDigest(version string, installables []Installable) string {
	entries := make([]string, 0, len(installables))
	for _, inst := range installables {
		entries = append(entries, fmt.Sprintf("%s@%s", KeyOf(inst), inst.Checksum()))
	}
	sort.Strings(entries)

	var b strings.Builder
	b.WriteString(version)
	for _, e := range entries {
		b.WriteByte('\n')
		b.WriteString(e)
	}
	return digest.FromString(b.String()).String()
}

// BundleIDFromURL derives the bundle id: the first 8 hex characters of the
// sha256 digest of the repository URL.
func BundleIDFromURL(repoURL string) string {
	return digest.FromString(repoURL).Encoded()[:8]
}

// ValidateBundleCode checks the bundle code format.
func ValidateBundleCode(code string) error {
	if !bundleCodePattern.MatchString(code) {
		return NewValidationError("invalid bundle code").WithResource(code)
	}
	return nil
}

// ValidateRepoURL checks that a repository URL is absolute.
func ValidateRepoURL(repoURL string) error {
	u, err := url.Parse(repoURL)
	if err == nil && u.Scheme == "file" && u.Path != "" {
		return nil
	}
	if err != nil || u.Scheme == "" || u.Host == "" {
		return NewValidationError("invalid bundle repository url").WithResource(repoURL)
	}
	return nil
}
