package core

import (
	"strings"
	"time"
	"unicode"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// NormalizeUsername lowercases and trims a login name.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (u User) Validate() error {
	if l := len(u.Username); l < 3 || l > 64 {
		return NewValidationError("username", ErrInvalidUsername)
	}
	for _, r := range u.Username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("._-@", r) {
			return NewValidationError("username", ErrInvalidUsername)
		}
	}
	if u.PasswordHash == "" {
		return NewValidationError("password", ErrEmptyPasswordHash)
	}
	return nil
}
