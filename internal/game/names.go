// internal/game/names.go
package game

import (
	"regexp"
	"strings"
)

var (
	// Table names are URL and filename material, so the charset is tight.
	tableNameRe = regexp.MustCompile(`^[a-z0-9_-]{1,20}$`)

	playerNameRe = regexp.MustCompile(`^[A-Za-z0-9 ]{1,20}$`)
)

// ValidateTableName lowercases and trims the candidate name, then checks it
// against the table-name charset. Returns the sanitized name.
func ValidateTableName(name string) (string, *Error) {
	sanitized := strings.ToLower(strings.TrimSpace(name))
	if !tableNameRe.MatchString(sanitized) {
		return "", reject(ErrInvalidName, "table name: lowercase letters, digits, -, _ only; max 20 characters")
	}
	return sanitized, nil
}

// ValidatePlayerName trims the candidate name and checks it against the
// player-name charset. Returns the sanitized name.
func ValidatePlayerName(name string) (string, *Error) {
	sanitized := strings.TrimSpace(name)
	if !playerNameRe.MatchString(sanitized) {
		return "", reject(ErrInvalidName, "player name: letters, digits, space only; max 20 characters")
	}
	return sanitized, nil
}
