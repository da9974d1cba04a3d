/*
Package randx provides cryptographically secure random identifiers and
the validation rules for externally supplied ones.

Room slugs are user-chosen names; message ids are UUIDs; random Base62
suffixes back generated nicknames.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"

	"github.com/google/uuid"
)

const (
	// Base62Chars is the character set used for random suffixes.
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the size of the Base62 character set.
	Base62Len = int64(len(Base62Chars))

	// SlugMinLength and SlugMaxLength bound user-chosen room slugs.
	SlugMinLength = 3
	SlugMaxLength = 40
)

// slugRegex accepts lowercase words separated by single hyphens,
// e.g. "cohort-chat". Length is checked separately.
var slugRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// IsValidSlug reports whether s is an acceptable room slug.
func IsValidSlug(s string) bool {
	if len(s) < SlugMinLength || len(s) > SlugMaxLength {
		return false
	}
	return slugRegex.MatchString(s)
}

// MessageID generates a UUID v4 string identifying a single chat message.
func MessageID() string {
	return uuid.New().String()
}

// base62String returns n random Base62 characters from crypto/rand.
func base62String(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random character: %v", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// UserNickname generates a display name with a "User_" prefix and six
// random Base62 characters.
func UserNickname() (string, error) {
	suffix, err := base62String(6)
	if err != nil {
		return "", err
	}
	return "User_" + suffix, nil
}
