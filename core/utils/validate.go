package utils

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

var (
	usernameRe        = regexp.MustCompile(`^[\p{L}0-9 ._'-]{2,80}$`)
	phoneRe           = regexp.MustCompile(`^\+?[0-9 ]{6,20}$`)
	nationalIDRe      = regexp.MustCompile(`^[A-Za-z0-9-]{4,32}$`)
	passwordMaxLength = 128
	passwordMinLength = 6
	whitespaceRe      = regexp.MustCompile(`^\s|\s$`)
)

func ValidateUsername(s string) error {
	if !usernameRe.MatchString(s) {
		return errors.New("invalid username")
	}
	return nil
}

func ValidateEmail(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || !strings.Contains(s, "@") {
		return errors.New("invalid email")
	}
	return nil
}

func ValidatePassword(s string) error {
	if len(s) < passwordMinLength {
		return errors.New("password too short (min 6 chars)")
	}
	if len(s) > passwordMaxLength {
		return errors.New("password too long (max 128 chars)")
	}
	if whitespaceRe.MatchString(s) {
		return errors.New("password must not start or end with spaces")
	}
	return nil
}

func ValidatePhone(s string) error {
	if !phoneRe.MatchString(s) {
		return errors.New("invalid phone number")
	}
	return nil
}

func ValidateNationalID(s string) error {
	if !nationalIDRe.MatchString(s) {
		return errors.New("invalid national id")
	}
	return nil
}
