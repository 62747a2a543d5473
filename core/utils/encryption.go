package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// Encryptor unwraps transport-encrypted login secrets. Clients encrypt the
// credential secret with the shared key; the gateway decrypts it immediately
// before submitting it to an identity backend and never stores the plaintext.
type Encryptor struct {
	aead cipher.AEAD
}

func NewEncryptorFromString(key string) (*Encryptor, error) {
	k, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	if len(k) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(k))
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Encryptor{aead: aead}, nil
}

func decodeKey(k string) ([]byte, error) {
	if len(k) == 32 {
		return []byte(k), nil
	}
	if len(k) == 64 {
		if b, err := hex.DecodeString(k); err == nil {
			return b, nil
		}
	}
	if b, err := base64.StdEncoding.DecodeString(k); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(k); err == nil {
		return b, nil
	}
	return nil, errors.New("invalid encryption key format")
}

func (e *Encryptor) EncryptToBlob(plaintext []byte) ([]byte, error) {
	nonce, err := RandBytes(e.aead.NonceSize())
	if err != nil {
		return nil, err
	}
	ct := e.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ct...), nil
}

func (e *Encryptor) DecryptBlob(data []byte) ([]byte, error) {
	ns := e.aead.NonceSize()
	if len(data) < ns {
		return nil, errors.New("ciphertext too short")
	}
	return e.aead.Open(nil, data[:ns], data[ns:], nil)
}

// EncryptString wraps EncryptToBlob with base64 for JSON transport.
func (e *Encryptor) EncryptString(plaintext string) (string, error) {
	blob, err := e.EncryptToBlob([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

func (e *Encryptor) DecryptString(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	pt, err := e.DecryptBlob(blob)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
