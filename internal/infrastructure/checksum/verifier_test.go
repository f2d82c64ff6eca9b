package checksum

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"anvil.dev/cli/internal/core/domain"
)

func TestParse(t *testing.T) {
	sum := sha256.Sum256([]byte("jar"))
	hexSum := hex.EncodeToString(sum[:])

	c, err := Parse("sha256:" + hexSum)
	require.NoError(t, err)
	assert.Equal(t, SHA256, c.Algorithm)
	assert.Equal(t, "sha256:"+hexSum, c.String())

	c, err = Parse(strings.ToUpper(hexSum))
	require.NoError(t, err)
	assert.Equal(t, SHA256, c.Algorithm, "bare 64-hex digest infers sha256")

	sha1Sum := sha1.Sum([]byte("jar"))
	c, err = Parse(hex.EncodeToString(sha1Sum[:]))
	require.NoError(t, err)
	assert.Equal(t, SHA1, c.Algorithm)

	for _, bad := range []string{"", "md5:abcd", "sha256:zz", "sha256:abcd", "abc"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestVerifier(t *testing.T) {
	data := []byte("server jar bytes")
	good, err := Compute(SHA512, strings.NewReader(string(data)))
	require.NoError(t, err)

	v, err := NewVerifier(good)
	require.NoError(t, err)
	_, _ = v.Write(data[:5])
	_, _ = v.Write(data[5:])
	assert.NoError(t, v.Verify())
	assert.Equal(t, int64(len(data)), v.Written())

	v, err = NewVerifier(good)
	require.NoError(t, err)
	_, _ = v.Write([]byte("tampered"))
	err = v.Verify()
	assert.ErrorIs(t, err, domain.ErrChecksumMismatch)

	// last byte differs
	parsed, err := Parse(good)
	require.NoError(t, err)
	parsed.Digest[len(parsed.Digest)-1] ^= 0xff
	v, err = NewVerifier(parsed.String())
	require.NoError(t, err)
	_, _ = v.Write(data)
	assert.ErrorIs(t, v.Verify(), domain.ErrChecksumMismatch)
}

func TestVerifier_Blake3(t *testing.T) {
	data := []byte("plugin")
	h := blake3.New()
	_, _ = h.Write(data)
	expected := "blake3:" + hex.EncodeToString(h.Sum(nil))

	v, err := NewVerifier(expected)
	require.NoError(t, err)
	_, _ = v.Write(data)
	assert.NoError(t, v.Verify())
}

func TestVerifyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jar")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))
	sum := sha256.Sum256([]byte("abc"))

	ok, err := VerifyFile(path, "sha256:"+hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	assert.True(t, ok)

	other := sha256.Sum256([]byte("abd"))
	ok, err = VerifyFile(path, "sha256:"+hex.EncodeToString(other[:]))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifyFile(filepath.Join(dir, "missing.jar"), "sha256:"+hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	assert.False(t, ok)
}
