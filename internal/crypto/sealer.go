// Package crypto seals OAuth access tokens before they are persisted.
package crypto

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// Sealer encrypts a secret bound to a workspace session id. A ciphertext
// sealed for one session cannot be opened for another.
type Sealer interface {
	Seal(ctx context.Context, sessionID, plaintext string) (string, error)
	Open(ctx context.Context, sessionID, ciphertext string) (string, error)
}

// KMSClient is the subset of *kms.Client methods used by KMSSealer.
type KMSClient interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSSealer implements Sealer using AWS KMS with the session id as encryption context.
type KMSSealer struct {
	client KMSClient
	keyID  string
}

// NewKMSSealer creates a KMSSealer.
// keyID can be a key ID, key ARN, or alias name (e.g., "alias/policydraft-token-key").
func NewKMSSealer(client KMSClient, keyID string) *KMSSealer {
	return &KMSSealer{client: client, keyID: keyID}
}

func encryptionContext(sessionID string) map[string]string {
	return map[string]string{"session_id": sessionID}
}

// Seal returns base64 encoded ciphertext.
func (s *KMSSealer) Seal(ctx context.Context, sessionID, plaintext string) (string, error) {
	out, err := s.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:             aws.String(s.keyID),
		Plaintext:         []byte(plaintext),
		EncryptionContext: encryptionContext(sessionID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to seal token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(out.CiphertextBlob), nil
}

// Open decrypts a value produced by Seal for the same session.
func (s *KMSSealer) Open(ctx context.Context, sessionID, ciphertext string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed token: %w", err)
	}

	out, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    blob,
		KeyId:             aws.String(s.keyID),
		EncryptionContext: encryptionContext(sessionID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to open sealed token: %w", err)
	}
	return string(out.Plaintext), nil
}
