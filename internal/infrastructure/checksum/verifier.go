// Package checksum verifies downloaded bytes against expected digests.
//
// Digests are written "algo:hex". Supported algorithms are sha1 (Mojang
// server jars), sha256 (PaperMC builds), sha512 (Modrinth files) and
// blake3. A bare hex string is accepted and its algorithm inferred from
// its length.
package checksum

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"

	"anvil.dev/cli/internal/core/domain"
)

// Algorithm names a digest function.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
	BLAKE3 Algorithm = "blake3"
)

// Checksum is a parsed expected digest.
type Checksum struct {
	Algorithm Algorithm
	Digest    []byte
}

// Parse parses "algo:hex" or a bare hex digest.
func Parse(s string) (Checksum, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Checksum{}, fmt.Errorf("empty checksum")
	}

	algo, digest, found := strings.Cut(s, ":")
	if !found {
		digest = algo
		switch len(digest) {
		case 40:
			algo = string(SHA1)
		case 64:
			algo = string(SHA256)
		case 128:
			algo = string(SHA512)
		default:
			return Checksum{}, fmt.Errorf("cannot infer algorithm of %d-character digest", len(digest))
		}
	}

	c := Checksum{Algorithm: Algorithm(strings.ToLower(algo))}
	h, err := c.newHash()
	if err != nil {
		return Checksum{}, err
	}
	decoded, err := hex.DecodeString(strings.ToLower(digest))
	if err != nil {
		return Checksum{}, fmt.Errorf("invalid %s digest: %w", c.Algorithm, err)
	}
	if len(decoded) != h.Size() {
		return Checksum{}, fmt.Errorf("%s digest is %d bytes, want %d", c.Algorithm, len(decoded), h.Size())
	}
	c.Digest = decoded
	return c, nil
}

func (c Checksum) String() string {
	return string(c.Algorithm) + ":" + hex.EncodeToString(c.Digest)
}

func (c Checksum) newHash() (hash.Hash, error) {
	switch c.Algorithm {
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case BLAKE3:
		return blake3.New(), nil
	}
	return nil, fmt.Errorf("unsupported checksum algorithm %q", c.Algorithm)
}

// Verifier hashes a byte stream as it is written and compares the result
// with the expected digest once the stream is complete.
type Verifier struct {
	expected Checksum
	hasher   hash.Hash
	written  int64
}

// NewVerifier creates a verifier for the expected checksum.
func NewVerifier(expected string) (*Verifier, error) {
	c, err := Parse(expected)
	if err != nil {
		return nil, err
	}
	h, err := c.newHash()
	if err != nil {
		return nil, err
	}
	return &Verifier{expected: c, hasher: h}, nil
}

// Write feeds bytes into the hash. It never fails.
func (v *Verifier) Write(p []byte) (int, error) {
	v.written += int64(len(p))
	return v.hasher.Write(p)
}

// Written returns the number of bytes hashed so far.
func (v *Verifier) Written() int64 { return v.written }

// Actual returns the digest of the bytes written so far.
func (v *Verifier) Actual() Checksum {
	return Checksum{Algorithm: v.expected.Algorithm, Digest: v.hasher.Sum(nil)}
}

// Verify compares the digest of everything written with the expectation.
func (v *Verifier) Verify() error {
	actual := v.Actual()
	if !bytes.Equal(actual.Digest, v.expected.Digest) {
		return domain.NewError(domain.ErrChecksumMismatch, "verify", "",
			fmt.Errorf("expected %s, got %s (%d bytes)", v.expected, actual, v.written))
	}
	return nil
}

// VerifyFile reports whether the file at path matches expected. A missing
// file is not an error; it simply does not match.
func VerifyFile(path, expected string) (bool, error) {
	v, err := NewVerifier(expected)
	if err != nil {
		return false, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("opening %s for verification: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(v, f); err != nil {
		return false, fmt.Errorf("hashing %s: %w", path, err)
	}
	return v.Verify() == nil, nil
}

// Compute returns the "algo:hex" digest of r.
func Compute(algo Algorithm, r io.Reader) (string, error) {
	h, err := Checksum{Algorithm: algo}.newHash()
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return Checksum{Algorithm: algo, Digest: h.Sum(nil)}.String(), nil
}
