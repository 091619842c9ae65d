package validation

import (
	"fmt"
	"net/mail"
	"strings"
)

// MaxEmailLen ограничение RFC 5321 на длину адреса
const MaxEmailLen = 254

// NormalizeEmail обрезает пробелы; регистр сохраняется,
// сравнение без учёта регистра делает хранилище
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// ValidateEmail проверяет, что строка является одиночным адресом без имени
// ("a@b.com", но не "Alice <a@b.com>")
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if len(email) > MaxEmailLen {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLen)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return fmt.Errorf("invalid email address")
	}

	return nil
}
