package secret

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSMClient struct {
	params map[string]string
}

func (f *fakeSSMClient) GetParameter(_ context.Context, input *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	val, ok := f.params[*input.Name]
	if !ok {
		return nil, fmt.Errorf("parameter not found: %s", *input.Name)
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			Name:  input.Name,
			Value: aws.String(val),
		},
	}, nil
}

func TestSSMResolver_GetSecret(t *testing.T) {
	resolver := NewSSMResolver(&fakeSSMClient{
		params: map[string]string{ParamGeminiAPIKey: "gemini-key"},
	})

	val, err := resolver.GetSecret(context.Background(), ParamGeminiAPIKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "gemini-key" {
		t.Fatalf("expected %q, got %q", "gemini-key", val)
	}

	if _, err := resolver.GetSecret(context.Background(), "/policydraft/nonexistent"); err == nil {
		t.Fatal("expected error for missing parameter, got nil")
	}
}

func TestEnvResolver_GetSecret(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	val, err := NewEnvResolver().GetSecret(context.Background(), ParamGeminiAPIKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "env-key" {
		t.Fatalf("expected %q, got %q", "env-key", val)
	}
}

func TestEnvResolver_GetSecret_NotSet(t *testing.T) {
	t.Setenv("NONEXISTENT_SECRET", "")

	if _, err := NewEnvResolver().GetSecret(context.Background(), "/policydraft/nonexistent-secret"); err == nil {
		t.Fatal("expected error for missing env var, got nil")
	}
}

func TestParamNameToEnvVar(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{ParamGeminiAPIKey, "GEMINI_API_KEY"},
		{ParamGoogleClientSecret, "GOOGLE_CLIENT_SECRET"},
		{ParamJWTSecret, "JWT_SECRET"},
		{ParamAPIGatewaySecret, "API_GATEWAY_SECRET"},
	}
	for _, tc := range tests {
		if got := paramNameToEnvVar(tc.input); got != tc.expected {
			t.Errorf("paramNameToEnvVar(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestLoad_PartialBundle(t *testing.T) {
	resolver := NewSSMResolver(&fakeSSMClient{
		params: map[string]string{
			ParamGeminiAPIKey: "gemini-key",
			ParamJWTSecret:    "jwt",
		},
	})

	b, err := Load(context.Background(), resolver)
	if err == nil {
		t.Fatal("expected joined error for missing parameters")
	}
	if !strings.Contains(err.Error(), ParamGoogleClientSecret) || !strings.Contains(err.Error(), ParamAPIGatewaySecret) {
		t.Errorf("error should name every missing parameter: %v", err)
	}
	if b.GeminiAPIKey != "gemini-key" || b.JWTSecret != "jwt" {
		t.Errorf("resolved values lost: %+v", b)
	}
	if b.GoogleClientSecret != "" {
		t.Errorf("unresolved value should stay empty, got %q", b.GoogleClientSecret)
	}
}
