package crypto

import (
	"context"
	"fmt"
	"strings"
)

// DevSealer implements Sealer for local development without KMS.
// Output is "dev:<sessionID>:<plaintext>", readable on purpose.
type DevSealer struct{}

func NewDevSealer() *DevSealer {
	return &DevSealer{}
}

func (DevSealer) Seal(_ context.Context, sessionID, plaintext string) (string, error) {
	return "dev:" + sessionID + ":" + plaintext, nil
}

func (DevSealer) Open(_ context.Context, sessionID, ciphertext string) (string, error) {
	prefix := "dev:" + sessionID + ":"
	if !strings.HasPrefix(ciphertext, prefix) {
		return "", fmt.Errorf("sealed token does not belong to session %q", sessionID)
	}
	return strings.TrimPrefix(ciphertext, prefix), nil
}
