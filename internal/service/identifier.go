package service

import (
	"net/mail"
	"strings"

	"monay-auth/internal/domain"
)

// channelOf decide por formato si el identificador es un email o un movil.
func channelOf(identifier string) domain.Channel {
	if isEmail(identifier) {
		return domain.ChannelEmail
	}
	return domain.ChannelMobile
}

func isEmail(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" || !strings.Contains(value, "@") {
		return false
	}
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeMobile conserva el codigo de pais; sin prefijo '+' asume +1.
func normalizeMobile(mobile string) string {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" {
		return ""
	}
	mobile = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(mobile)
	if !strings.HasPrefix(mobile, "+") {
		mobile = "+1" + mobile
	}
	return mobile
}

func normalizeIdentifier(identifier string) (string, domain.Channel) {
	ch := channelOf(identifier)
	if ch == domain.ChannelEmail {
		return normalizeEmail(identifier), ch
	}
	return normalizeMobile(identifier), ch
}
