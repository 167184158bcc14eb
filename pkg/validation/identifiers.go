package validation

import (
	"errors"
	"fmt"
)

// MaxNameLength bounds flow and variable names
const MaxNameLength = 128

var (
	// ErrEmptyName is returned for empty names
	ErrEmptyName = errors.New("name cannot be empty")
)

// IsValidIdentifierChar checks if a character is valid for identifiers
// (alphanumeric, hyphen, or underscore).
func IsValidIdentifierChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_'
}

func isLetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// ValidateName checks a flow, project or scope name.
// Valid names are non-empty, at most MaxNameLength long and made of identifier characters.
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("name exceeds maximum length of %d characters", MaxNameLength)
	}
	for _, ch := range name {
		if !IsValidIdentifierChar(ch) {
			return fmt.Errorf("invalid character %q in name %q (allowed: letters, digits, '-', '_')", ch, name)
		}
	}
	return nil
}

// IsVariableName reports whether name can be used as a variable name:
// a letter followed by letters, digits or underscores.
func IsVariableName(name string) bool {
	if name == "" || len(name) > MaxNameLength {
		return false
	}
	for i, ch := range name {
		if i == 0 {
			if !isLetter(ch) {
				return false
			}
			continue
		}
		if ch == '-' || !IsValidIdentifierChar(ch) {
			return false
		}
	}
	return true
}
