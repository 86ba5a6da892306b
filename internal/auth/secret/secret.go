package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// passwordCost applies to account passwords; backup codes go through
// QuickHash instead.
const passwordCost = 12

func Hash(key string) (string, error) {
	hashedKey, err := bcrypt.GenerateFromPassword([]byte(key), passwordCost)
	if err != nil {
		return "", err
	}

	return string(hashedKey), nil
}

// QuickHash uses bcrypt's default cost. It covers single-use values like
// backup codes, where ten hashes are produced in one request.
func QuickHash(key string) (string, error) {
	hashedKey, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hashedKey), nil
}

func Compare(key, hashedKey string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(key))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func New(size int) (string, error) {
	buf := make([]byte, size)

	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}
