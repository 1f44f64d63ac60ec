package validation

import "errors"

// MaxTokenLength bounds caller-supplied namespace tokens.
const MaxTokenLength = 32

var (
	ErrTokenRequired     = errors.New("token is required")
	ErrTokenTooLong      = errors.New("token must be at most 32 characters")
	ErrTokenInvalidChars = errors.New("token can only contain lowercase letters, digits, hyphens and underscores")
)

// ValidateToken checks a caller-supplied namespace token. Tokens end up inside
// volume and project names, so ':' and '/' (and anything else the engine
// rejects in a name) are refused. Uppercase is refused because compose
// project names are lowercase.
func ValidateToken(token string) error {
	if token == "" {
		return ErrTokenRequired
	}
	if len(token) > MaxTokenLength {
		return ErrTokenTooLong
	}
	for _, r := range token {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ErrTokenInvalidChars
		}
	}
	return nil
}
