package rootaccount

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GeneratedPasswordLength is the size of bootstrap passwords.
const GeneratedPasswordLength = 32

const (
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	digitChars   = "0123456789"
	specialChars = "!@#$%^&*()-_=+[]{}<>?"
)

var allChars = upperChars + lowerChars + digitChars + specialChars

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("rootaccount: random index: %w", err)
	}
	return int(v.Int64()), nil
}

// GeneratePassword returns a 32-char password guaranteed to contain at least
// one character from each class. One char per class is drawn first, the rest
// uniformly over the combined alphabet, and the result is shuffled so class
// positions carry no information.
func GeneratePassword() (string, error) {
	buf := make([]byte, 0, GeneratedPasswordLength)
	for _, class := range []string{upperChars, lowerChars, digitChars, specialChars} {
		i, err := randomIndex(len(class))
		if err != nil {
			return "", err
		}
		buf = append(buf, class[i])
	}
	for len(buf) < GeneratedPasswordLength {
		i, err := randomIndex(len(allChars))
		if err != nil {
			return "", err
		}
		buf = append(buf, allChars[i])
	}
	// Fisher-Yates with crypto/rand.
	for i := len(buf) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf), nil
}
