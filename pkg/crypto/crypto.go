package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"sync"
)

const cipherPrefix = "enc:v1:"

var (
	mu            sync.RWMutex
	encryptionKey []byte
)

// SetEncryptionKey derives the AES-256 key used for stored platform tokens.
// An empty secret disables encryption.
func SetEncryptionKey(secret string) {
	mu.Lock()
	defer mu.Unlock()
	if secret == "" {
		encryptionKey = nil
		return
	}
	sum := sha256.Sum256([]byte(secret))
	encryptionKey = sum[:]
}

func currentKey() []byte {
	mu.RLock()
	defer mu.RUnlock()
	return encryptionKey
}

// Encrypt seals plainText with AES-GCM. Without a key the value is stored as is.
func Encrypt(plainText string) (string, error) {
	key := currentKey()
	if len(key) == 0 || plainText == "" {
		return plainText, nil
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plainText), nil)
	return cipherPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Values without the cipher prefix are
// returned unchanged.
func Decrypt(value string) (string, error) {
	if len(value) < len(cipherPrefix) || value[:len(cipherPrefix)] != cipherPrefix {
		return value, nil
	}
	key := currentKey()
	if len(key) == 0 {
		return "", errors.New("value is encrypted but no secret key is configured")
	}

	data, err := base64.StdEncoding.DecodeString(value[len(cipherPrefix):])
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
