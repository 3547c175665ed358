package utils

// blob.go implements the at-rest codec for PDF payloads and cover
// photos: gzip compression followed by optional AES-256-GCM
// encryption. An empty key disables encryption and stores blobs
// compressed only, mirroring how the rest of the configuration
// degrades when optional pieces are absent.

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// ErrBlobTooShort is returned when an encrypted blob is shorter than
// its nonce, i.e. truncated or not produced by SealBlob.
var ErrBlobTooShort = errors.New("encrypted blob too short")

// BlobCodec compresses and optionally encrypts binary columns. The
// key must be empty or exactly 32 bytes (enforced at config load).
type BlobCodec struct {
	key []byte
}

// NewBlobCodec builds a codec from the configured key string.
func NewBlobCodec(key string) *BlobCodec {
	if key == "" {
		return &BlobCodec{}
	}
	return &BlobCodec{key: []byte(key)}
}

// Seal compresses data and, when a key is configured, encrypts the
// result with a random nonce prepended to the ciphertext.
func (c *BlobCodec) Seal(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	compressed := buf.Bytes()
	if len(c.key) == 0 {
		return compressed, nil
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, compressed, nil), nil
}

// Open reverses Seal: decrypts when a key is configured, then
// decompresses.
func (c *BlobCodec) Open(data []byte) ([]byte, error) {
	if len(c.key) > 0 {
		block, err := aes.NewCipher(c.key)
		if err != nil {
			return nil, err
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		if len(data) < gcm.NonceSize() {
			return nil, ErrBlobTooShort
		}
		nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
		data, err = gcm.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return nil, err
		}
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
