// Package secret implementa el esquema determinista usado para comparar OTPs y PINs
// sin guardar el valor en claro.
package secret

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	CodecHMAC      = "hmac"
	CodecLegacyAES = "legacy-aes"
)

var ErrEmptyKey = errors.New("secret key is required")

// Codec produce un digest determinista: el mismo input siempre genera el mismo valor,
// asi la verificacion es digest-and-compare.
type Codec interface {
	Digest(plain string) (string, error)
}

// NewCodec construye la estrategia configurada.
func NewCodec(name string, key []byte) (Codec, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodecHMAC:
		return NewHMACCodec(key), nil
	case CodecLegacyAES:
		return NewLegacyAESCodec(key)
	default:
		return nil, fmt.Errorf("unknown secret codec %q", name)
	}
}

// Equal compara dos digests en tiempo constante.
func Equal(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type hmacCodec struct {
	key []byte
}

// NewHMACCodec usa HMAC-SHA256 con clave; no es reversible.
func NewHMACCodec(key []byte) Codec {
	k := make([]byte, len(key))
	copy(k, key)
	return &hmacCodec{key: k}
}

func (c *hmacCodec) Digest(plain string) (string, error) {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(plain))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// legacyAESCodec reproduce el cifrado simetrico determinista de los registros existentes:
// AES-256-CBC con IV fijo derivado de la clave y padding PKCS#7.
type legacyAESCodec struct {
	block cipher.Block
	iv    []byte
}

func NewLegacyAESCodec(key []byte) (Codec, error) {
	k := sha256.Sum256(key)
	block, err := aes.NewCipher(k[:])
	if err != nil {
		return nil, fmt.Errorf("legacy aes codec: %w", err)
	}
	ivSum := sha256.Sum256(append([]byte("iv:"), key...))
	return &legacyAESCodec{block: block, iv: ivSum[:aes.BlockSize]}, nil
}

func (c *legacyAESCodec) Digest(plain string) (string, error) {
	padded := pkcs7Pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return hex.EncodeToString(out), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

