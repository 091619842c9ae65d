package validation

import "fmt"

const (
	// MinUsernameLen минимальная длина username
	MinUsernameLen = 3
	// MaxUsernameLen максимальная длина username
	MaxUsernameLen = 32
)

// ValidateUsername проверяет отображаемое имя пользователя.
// Допустимы латинские буквы, цифры и "_"; "." и "-" только между ними,
// поэтому имя начинается и заканчивается буквой, цифрой или "_" и не содержит "..", "--", ".-".
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	if len(username) < MinUsernameLen {
		return fmt.Errorf("username must be at least %d characters long", MinUsernameLen)
	}

	if len(username) > MaxUsernameLen {
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLen)
	}

	prevSeparator := true // запрещает разделитель в начале
	for i := 0; i < len(username); i++ {
		c := username[i]
		switch {
		case isUsernameLetter(c):
			prevSeparator = false
		case c == '.' || c == '-':
			if prevSeparator {
				return fmt.Errorf("username cannot start with %q or repeat separators", c)
			}
			prevSeparator = true
		default:
			return fmt.Errorf("username can only contain letters (a-z, A-Z), numbers (0-9), '_', '.' and '-'")
		}
	}

	if prevSeparator {
		return fmt.Errorf("username cannot end with a separator")
	}

	return nil
}

func isUsernameLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
