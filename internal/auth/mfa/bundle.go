package mfa

import (
	"encoding/json"
	"errors"

	"github.com/shaddad2189/sfconnect-v11/internal/auth/secret"
)

// Bundle is the MFA state stored on a user record: the TOTP secret plus
// bcrypt hashes of unconsumed backup codes. Two serialized shapes exist:
// the current JSON object and a legacy bare base32 secret written before
// backup codes were introduced. Parse accepts both; anything that does not
// decode structurally as the JSON shape is treated as legacy.
type Bundle struct {
	Secret      string   `json:"secret"`
	BackupCodes []string `json:"backupCodes,omitempty"`
}

func ParseBundle(raw string) (Bundle, error) {
	if raw == "" {
		return Bundle{}, errors.New("empty mfa bundle")
	}

	var b Bundle
	if err := json.Unmarshal([]byte(raw), &b); err != nil || b.Secret == "" {
		return Bundle{Secret: raw}, nil
	}

	return b, nil
}

func (b Bundle) Encode() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// ConsumeBackupCode removes the first stored hash matching the candidate
// code. Each code is single-use: a match mutates the bundle and the caller
// must persist it.
func (b *Bundle) ConsumeBackupCode(code string) bool {
	for i, hashedCode := range b.BackupCodes {
		ok, err := secret.Compare(code, hashedCode)
		if err != nil || !ok {
			continue
		}

		b.BackupCodes = append(b.BackupCodes[:i], b.BackupCodes[i+1:]...)

		return true
	}

	return false
}
