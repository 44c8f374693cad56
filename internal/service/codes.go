package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"
)

// OTPPolicy fija longitud y vigencia de los codigos. TTL == 0: el codigo vale hasta
// que se reemplaza o se consume.
type OTPPolicy struct {
	Digits int
	TTL    time.Duration
}

func (p OTPPolicy) digits() int {
	if p.Digits <= 0 || p.Digits > 10 {
		return 6
	}
	return p.Digits
}

// Expired indica si un codigo emitido en issuedAt ya no es aceptable en now.
func (p OTPPolicy) Expired(issuedAt *time.Time, now time.Time) bool {
	if p.TTL <= 0 {
		return false
	}
	if issuedAt == nil {
		return true
	}
	return now.After(issuedAt.Add(p.TTL))
}

// randomDigits devuelve n digitos uniformes desde crypto/rand.
func randomDigits(n int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomToken genera un token alfanumerico de longitud n (reset de password admin).
func randomToken(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	limit := big.NewInt(int64(len(tokenAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(tokenAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

func isNumericCode(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// accountNumberFor arma MC1/MM1 + secuencia de 7 digitos.
func accountNumberFor(userType string, seq int64) string {
	prefix := "MC1"
	if userType == "merchant" {
		prefix = "MM1"
	}
	return fmt.Sprintf("%s%07d", prefix, seq)
}
