package codec

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// LoadOrGenerateKey decodes a hex key. An empty string yields a random key and
// generated=true; worker and starter must then be given the same key explicitly.
func LoadOrGenerateKey(hexKey string) (key []byte, generated bool, err error) {
	if hexKey != "" {
		key, err = hex.DecodeString(hexKey)
		if err != nil {
			return nil, false, fmt.Errorf("failed to decode encryption key: %w", err)
		}
		return key, false, nil
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return key, true, nil
}
