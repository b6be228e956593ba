// Package codec encrypts Temporal payloads so land details, client secrets and
// payment method ids are never stored in plain text in workflow history.
package codec

import (
	"crypto/rand"
	"fmt"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
	"golang.org/x/crypto/chacha20poly1305"
	"google.golang.org/protobuf/proto"
)

const (
	// MetadataEncodingEncrypted marks payloads produced by this codec
	MetadataEncodingEncrypted = "binary/encrypted-xchacha20poly1305"
	// MetadataEncryptionKeyID records which key sealed the payload
	MetadataEncryptionKeyID = "encryption-key-id"
)

// EncryptionCodec implements converter.PayloadCodec with XChaCha20-Poly1305.
type EncryptionCodec struct {
	keyID string
	key   []byte
}

// NewEncryptionCodec creates a codec for a 32 byte key.
func NewEncryptionCodec(keyID string, key []byte) (*EncryptionCodec, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &EncryptionCodec{keyID: keyID, key: key}, nil
}

// NewEncryptionDataConverter wraps the default data converter with payload encryption.
func NewEncryptionDataConverter(key []byte) (converter.DataConverter, error) {
	c, err := NewEncryptionCodec("land-assessment", key)
	if err != nil {
		return nil, err
	}
	return converter.NewCodecDataConverter(converter.GetDefaultDataConverter(), c), nil
}

// Encode seals every payload.
func (c *EncryptionCodec) Encode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	result := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		plain, err := proto.Marshal(p)
		if err != nil {
			return payloads, fmt.Errorf("failed to marshal payload: %w", err)
		}

		sealed, err := c.seal(plain)
		if err != nil {
			return payloads, err
		}

		result[i] = &commonpb.Payload{
			Metadata: map[string][]byte{
				converter.MetadataEncoding: []byte(MetadataEncodingEncrypted),
				MetadataEncryptionKeyID:    []byte(c.keyID),
			},
			Data: sealed,
		}
	}
	return result, nil
}

// Decode opens payloads sealed by Encode and passes others through untouched.
func (c *EncryptionCodec) Decode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	result := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		if string(p.GetMetadata()[converter.MetadataEncoding]) != MetadataEncodingEncrypted {
			result[i] = p
			continue
		}
		if keyID := string(p.GetMetadata()[MetadataEncryptionKeyID]); keyID != c.keyID {
			return payloads, fmt.Errorf("payload sealed with unknown key %q", keyID)
		}

		plain, err := c.open(p.GetData())
		if err != nil {
			return payloads, err
		}

		decoded := &commonpb.Payload{}
		if err := proto.Unmarshal(plain, decoded); err != nil {
			return payloads, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		result[i] = decoded
	}
	return result, nil
}

func (c *EncryptionCodec) seal(plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

func (c *EncryptionCodec) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("encrypted payload too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload: %w", err)
	}
	return plain, nil
}
