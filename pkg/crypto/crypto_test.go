package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptDecrypt(t *testing.T) {
	cipher, err := NewCipher(testKey)
	require.NoError(t, err)

	ciphertext, err := cipher.Encrypt("secret token")
	require.NoError(t, err)
	assert.NotEqual(t, "secret token", ciphertext)

	plaintext, err := cipher.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "secret token", plaintext)
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	cipher, err := NewCipher(testKey)
	require.NoError(t, err)

	first, err := cipher.Encrypt("same value")
	require.NoError(t, err)
	second, err := cipher.Encrypt("same value")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "nonce must randomize the ciphertext")
}

func TestEmptyStringPassesThrough(t *testing.T) {
	cipher, err := NewCipher(testKey)
	require.NoError(t, err)

	ciphertext, err := cipher.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, ciphertext)

	plaintext, err := cipher.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plaintext)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	cipher, err := NewCipher(testKey)
	require.NoError(t, err)

	_, err = cipher.Decrypt("not base64 at all!!!")
	assert.Error(t, err)

	_, err = cipher.Decrypt("dG9vc2hvcnQ=")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewCipherRejectsBadKeys(t *testing.T) {
	_, err := NewCipher("")
	assert.Error(t, err)

	_, err = NewCipher("short")
	assert.Error(t, err)
}
