// Package security seals publishing credentials at rest and derives the
// lookup hashes used to authenticate API callers.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"autopost/internal/types"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

// CredentialCipher seals access tokens with AES-256-GCM.
type CredentialCipher struct {
	aead cipher.AEAD
}

// NewCredentialCipher builds a cipher from a base64-encoded 32-byte key.
func NewCredentialCipher(key types.SecretString) (*CredentialCipher, error) {
	raw, err := base64.StdEncoding.DecodeString(key.Unmask())
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalCredentialCrypt, "encryption key is not valid base64", err)
	}
	if len(raw) != keySize {
		return nil, types.NewAppError(types.ErrCodeInternalCredentialCrypt,
			fmt.Sprintf("encryption key must be %d bytes, got %d", keySize, len(raw)), nil)
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalCredentialCrypt, "failed to create block cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalCredentialCrypt, "failed to create GCM", err)
	}
	return &CredentialCipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *CredentialCipher) Encrypt(plaintext string) (types.EncryptedToken, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return types.EncryptedToken{}, types.NewAppError(types.ErrCodeInternalCredentialCrypt, "failed to generate nonce", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return types.EncryptedToken{
		Value: base64.StdEncoding.EncodeToString(ct),
		IV:    base64.StdEncoding.EncodeToString(nonce),
		Tag:   base64.StdEncoding.EncodeToString(tag),
	}, nil
}

// Decrypt opens a token sealed by Encrypt. Tampering with any part fails.
func (c *CredentialCipher) Decrypt(tok types.EncryptedToken) (string, error) {
	ct, err1 := base64.StdEncoding.DecodeString(tok.Value)
	nonce, err2 := base64.StdEncoding.DecodeString(tok.IV)
	tag, err3 := base64.StdEncoding.DecodeString(tok.Tag)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", types.NewAppError(types.ErrCodeInternalCredentialCrypt, "stored credential is not valid base64", nil)
	}
	if len(nonce) != nonceSize || len(tag) != tagSize {
		return "", types.NewAppError(types.ErrCodeInternalCredentialCrypt, "stored credential has invalid nonce or tag size", nil)
	}

	plain, err := c.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalCredentialCrypt, "failed to decrypt credential", err)
	}
	return string(plain), nil
}

// TokenHash returns the hex SHA-256 of an access token, the form stored in
// credentials.token_hash.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
