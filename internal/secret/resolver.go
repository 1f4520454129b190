// Package secret retrieves deployment secrets (Gemini API key, OAuth client
// secret, JWT signing key) from SSM Parameter Store or from the environment.
package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Parameter names under which the deployment stores its secrets.
const (
	ParamGeminiAPIKey       = "/policydraft/gemini-api-key"
	ParamGoogleClientSecret = "/policydraft/google-client-secret"
	ParamJWTSecret          = "/policydraft/jwt-secret"
	ParamAPIGatewaySecret   = "/policydraft/api-gateway-secret"
)

// SSMClient is the subset of *ssm.Client methods used by SSMResolver.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Resolver retrieves secret values by parameter name.
type Resolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SSMResolver fetches SecureString parameters from AWS Systems Manager.
type SSMResolver struct {
	client SSMClient
}

// NewSSMResolver returns a Resolver backed by SSM Parameter Store.
func NewSSMResolver(client SSMClient) Resolver {
	return &SSMResolver{client: client}
}

func (r *SSMResolver) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm get parameter %q: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("ssm parameter %q has no value", name)
	}
	return *out.Parameter.Value, nil
}

// EnvResolver reads secrets from environment variables named after the last
// path segment of the parameter: "/policydraft/gemini-api-key" -> "GEMINI_API_KEY".
type EnvResolver struct{}

// NewEnvResolver returns a Resolver that reads from environment variables.
func NewEnvResolver() Resolver {
	return &EnvResolver{}
}

func (r *EnvResolver) GetSecret(_ context.Context, name string) (string, error) {
	envName := paramNameToEnvVar(name)
	val := os.Getenv(envName)
	if val == "" {
		return "", fmt.Errorf("environment variable %q (from param %q) is not set", envName, name)
	}
	return val, nil
}

func paramNameToEnvVar(name string) string {
	parts := strings.Split(name, "/")
	last := parts[len(parts)-1]
	return strings.ToUpper(strings.ReplaceAll(last, "-", "_"))
}

// Bundle is the set of secrets the application needs at startup.
type Bundle struct {
	GeminiAPIKey       string
	GoogleClientSecret string
	JWTSecret          string
	APIGatewaySecret   string
}

// Load resolves every secret of the bundle. Values that cannot be resolved
// are left empty and reported together in the returned error, so the caller
// can decide which ones are fatal.
func Load(ctx context.Context, r Resolver) (Bundle, error) {
	var (
		b    Bundle
		errs []error
	)
	for _, entry := range []struct {
		param string
		dst   *string
	}{
		{ParamGeminiAPIKey, &b.GeminiAPIKey},
		{ParamGoogleClientSecret, &b.GoogleClientSecret},
		{ParamJWTSecret, &b.JWTSecret},
		{ParamAPIGatewaySecret, &b.APIGatewaySecret},
	} {
		v, err := r.GetSecret(ctx, entry.param)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*entry.dst = v
	}
	return b, errors.Join(errs...)
}
