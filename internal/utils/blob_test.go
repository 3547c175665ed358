package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestBlobCodecRoundTripEncrypted(t *testing.T) {
	codec := NewBlobCodec(strings.Repeat("k", 32))
	payload := []byte("%PDF-1.7 fake document body for the codec test")
	sealed, err := codec.Seal(payload)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("fake document")) {
		t.Fatal("sealed blob leaks plaintext")
	}
	opened, err := codec.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, payload) {
		t.Fatal("round trip mismatch")
	}
}

func TestBlobCodecRoundTripPlain(t *testing.T) {
	codec := NewBlobCodec("")
	payload := []byte("compress only")
	sealed, err := codec.Seal(payload)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	opened, err := codec.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, payload) {
		t.Fatal("round trip mismatch")
	}
}

func TestBlobCodecRejectsTruncated(t *testing.T) {
	codec := NewBlobCodec(strings.Repeat("k", 32))
	if _, err := codec.Open([]byte{0x01, 0x02}); err == nil {
		t.Fatal("expected error for truncated blob")
	}
}

func TestRefreshTokenHashStable(t *testing.T) {
	tok, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if len(tok.Raw) != 96 {
		t.Fatalf("raw token length = %d, want 96", len(tok.Raw))
	}
	if HashRefreshRaw(tok.Raw) != HashRefreshRaw(tok.Raw) {
		t.Fatal("hash not deterministic")
	}
}
