package secret

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// KMSDecrypter es el subconjunto del cliente KMS que se usa.
type KMSDecrypter interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// UnwrapKey descifra con KMS una clave guardada como ciphertext base64.
func UnwrapKey(ctx context.Context, client KMSDecrypter, ciphertextB64 string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertextB64))
	if err != nil {
		return nil, fmt.Errorf("decode kms ciphertext: %w", err)
	}
	out, err := client.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
	if err != nil {
		return nil, fmt.Errorf("kms decrypt: %w", err)
	}
	if len(out.Plaintext) == 0 {
		return nil, ErrEmptyKey
	}
	return out.Plaintext, nil
}

// LoadKey resuelve la clave del codec: KMS si hay ciphertext, si no el secreto plano.
func LoadKey(ctx context.Context, plain, kmsCiphertext, region string) ([]byte, error) {
	if strings.TrimSpace(kmsCiphertext) == "" {
		if strings.TrimSpace(plain) == "" {
			return nil, ErrEmptyKey
		}
		return []byte(plain), nil
	}
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return UnwrapKey(ctx, kms.NewFromConfig(awsCfg), kmsCiphertext)
}
