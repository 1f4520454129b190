package crypto

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// fakeKMS "encrypts" by prefixing the session id from the encryption context.
type fakeKMS struct{}

func (fakeKMS) Encrypt(_ context.Context, in *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	blob := append([]byte(in.EncryptionContext["session_id"]+"|"), in.Plaintext...)
	return &kms.EncryptOutput{CiphertextBlob: blob}, nil
}

func (fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	prefix := []byte(in.EncryptionContext["session_id"] + "|")
	if !bytes.HasPrefix(in.CiphertextBlob, prefix) {
		return nil, errors.New("InvalidCiphertextException")
	}
	return &kms.DecryptOutput{Plaintext: bytes.TrimPrefix(in.CiphertextBlob, prefix)}, nil
}

func TestKMSSealer_RoundTrip(t *testing.T) {
	s := NewKMSSealer(fakeKMS{}, "alias/test")
	ctx := context.Background()

	sealed, err := s.Seal(ctx, "ws1", "ya29.token")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if sealed == "ya29.token" {
		t.Fatal("sealed value should differ from plaintext")
	}

	opened, err := s.Open(ctx, "ws1", sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if opened != "ya29.token" {
		t.Errorf("Open() = %q, want %q", opened, "ya29.token")
	}
}

func TestKMSSealer_WrongSession(t *testing.T) {
	s := NewKMSSealer(fakeKMS{}, "alias/test")
	ctx := context.Background()

	sealed, _ := s.Seal(ctx, "ws1", "ya29.token")
	if _, err := s.Open(ctx, "ws2", sealed); err == nil {
		t.Error("expected error when opening with another session id")
	}
}

func TestKMSSealer_BadBase64(t *testing.T) {
	s := NewKMSSealer(fakeKMS{}, "alias/test")
	if _, err := s.Open(context.Background(), "ws1", "%%%"); err == nil {
		t.Error("expected decode error")
	}
}

func TestDevSealer(t *testing.T) {
	s := NewDevSealer()
	ctx := context.Background()

	sealed, _ := s.Seal(ctx, "ws1", "tok")
	if sealed != "dev:ws1:tok" {
		t.Errorf("Seal() = %q", sealed)
	}
	opened, err := s.Open(ctx, "ws1", sealed)
	if err != nil || opened != "tok" {
		t.Errorf("Open() = %q, %v", opened, err)
	}
	if _, err := s.Open(ctx, "ws2", sealed); err == nil {
		t.Error("expected error for mismatched session")
	}
}
