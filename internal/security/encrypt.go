package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"github.com/fernet/fernet-go"
)

// Encryptor provides symmetric encryption for message content at rest.
// New content is sealed with AES-256-GCM under a key derived from the
// configured secret. Content written by older deployments as Fernet tokens
// stays readable when its key is the secret itself or one of the legacy keys.
type Encryptor struct {
	aead       cipher.AEAD
	fernetKeys []*fernet.Key
}

func NewEncryptor(key []byte, legacyKeys ...string) (*Encryptor, error) {
	if len(key) == 0 {
		return nil, errors.New("encryption key must not be empty")
	}
	sum := sha256.Sum256(key)
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	fernetKeys := make([]*fernet.Key, 0, len(legacyKeys)+1)
	if fk := parseFernetKey(string(key)); fk != nil {
		fernetKeys = append(fernetKeys, fk)
	}
	for _, raw := range legacyKeys {
		if fk := parseFernetKey(raw); fk != nil {
			fernetKeys = append(fernetKeys, fk)
		}
	}
	return &Encryptor{aead: aead, fernetKeys: fernetKeys}, nil
}

// parseFernetKey returns nil for anything that is not a base64 32-byte key.
func parseFernetKey(raw string) *fernet.Key {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	k, err := fernet.DecodeKey(trimmed)
	if err != nil {
		return nil
	}
	return k
}

// Encrypt seals plain. The empty string stays empty so redacted messages
// need no key to read.
func (e *Encryptor) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := e.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (e *Encryptor) Decrypt(enc string) (string, error) {
	if enc == "" {
		return "", nil
	}
	if raw, err := base64.StdEncoding.DecodeString(enc); err == nil && len(raw) >= e.aead.NonceSize() {
		nonce := raw[:e.aead.NonceSize()]
		if plain, err := e.aead.Open(nil, nonce, raw[e.aead.NonceSize():], nil); err == nil {
			return string(plain), nil
		}
	}
	if len(e.fernetKeys) > 0 {
		// ttl 0 disables the age check; stored messages never expire here.
		if plain := fernet.VerifyAndDecrypt([]byte(enc), 0, e.fernetKeys); plain != nil {
			return string(plain), nil
		}
	}
	return "", errors.New("failed to decrypt message payload")
}
