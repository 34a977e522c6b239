package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// APIKeyEnv is the environment variable holding the Gemini API key.
const APIKeyEnv = "GEMINI_API_KEY"

// ErrNoAPIKey is returned when no source yields a key. Callers treat it as
// non-fatal: the service starts and remote calls fail individually.
var ErrNoAPIKey = errors.New("API key not found. Set " + APIKeyEnv)

// ParameterGetter is the subset of the SSM client used to resolve the key.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// GetAPIKey resolves the Gemini API key.
// Priority order:
//  1. GEMINI_API_KEY environment variable
//  2. The SSM SecureString parameter named by ssmParam, when both ssmParam
//     and getter are set
func GetAPIKey(ctx context.Context, ssmParam string, getter ParameterGetter) (string, error) {
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}

	if ssmParam == "" || getter == nil {
		return "", ErrNoAPIKey
	}

	key, err := getFromSSM(ctx, ssmParam, getter)
	if err != nil {
		log.Warn().Err(err).Str("param", ssmParam).Msg("Failed to read API key from SSM")
		return "", fmt.Errorf("%w: %v", ErrNoAPIKey, err)
	}
	log.Debug().Str("param", ssmParam).Msg("Using API key from SSM parameter")
	return key, nil
}

func getFromSSM(ctx context.Context, name string, getter ParameterGetter) (string, error) {
	out, err := getter.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("GetParameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil || strings.TrimSpace(*out.Parameter.Value) == "" {
		return "", fmt.Errorf("parameter %s is empty", name)
	}
	return strings.TrimSpace(*out.Parameter.Value), nil
}
