package mfa

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/shaddad2189/sfconnect-v11/internal/auth/secret"
	"github.com/shaddad2189/sfconnect-v11/internal/model"
	"github.com/shaddad2189/sfconnect-v11/internal/storage"
)

var (
	ErrNotSetUp        = errors.New("mfa not set up")
	ErrNotEnabled      = errors.New("mfa not enabled")
	ErrInvalidCode     = errors.New("invalid verification code")
	ErrInvalidPassword = errors.New("invalid password")
)

const (
	totpSecretSize = 20
	totpPeriod     = 30
	totpSkew       = 2

	backupCodeCount = 10
	backupCodeBytes = 4

	qrImageSize = 256
)

// State of a user's second factor. Enabled requires a decodable bundle;
// PendingVerification means a secret was provisioned but never confirmed.
type State int

const (
	StateUnenrolled State = iota
	StatePendingVerification
	StateEnabled
)

type UserStorage interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, userID string) (model.User, error)
	GetHashedPasswordByID(ctx context.Context, userID string) (string, error)
	GetMFASecret(ctx context.Context, userID string) (string, error)
	SaveMFASecret(ctx context.Context, userID string, secret string) error
	EnableMFA(ctx context.Context, userID string, secret string) error
	DisableMFA(ctx context.Context, userID string) error
	UpdateLastSignedIn(ctx context.Context, userID string, t time.Time) error
}

type Config struct {
	Issuer       string
	CurrTimeFunc func() time.Time
}

type Engine struct {
	logger  *slog.Logger
	storage UserStorage
	issuer  string
	now     func() time.Time
}

func NewEngine(logger *slog.Logger, storage UserStorage, config Config) *Engine {
	if config.CurrTimeFunc == nil {
		config.CurrTimeFunc = time.Now
	}

	return &Engine{
		logger:  logger,
		storage: storage,
		issuer:  config.Issuer,
		now:     config.CurrTimeFunc,
	}
}

type Enrollment struct {
	Secret         string
	QRCode         string
	ManualEntryKey string
}

// Setup provisions a fresh TOTP secret and returns it with a scannable QR
// data URL. The secret is stored unconfirmed; a prior pending secret (or an
// enabled bundle) is overwritten, which restarts enrollment.
func (e *Engine) Setup(ctx context.Context, userID, email string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: email,
		SecretSize:  totpSecretSize,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("generate totp key: %w", err)
	}

	img, err := key.Image(qrImageSize, qrImageSize)
	if err != nil {
		return Enrollment{}, fmt.Errorf("render qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Enrollment{}, fmt.Errorf("encode qr code: %w", err)
	}

	if err := e.storage.SaveMFASecret(ctx, userID, key.Secret()); err != nil {
		return Enrollment{}, err
	}

	e.logger.Debug("mfa setup", slog.String("userID", userID))

	return Enrollment{
		Secret:         key.Secret(),
		QRCode:         "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		ManualEntryKey: key.Secret(),
	}, nil
}

// Enable confirms enrollment with a current TOTP code. On success it mints
// ten backup codes, stores only their hashes alongside the secret, flips the
// enabled flag, and returns the plaintext codes. They are not retrievable
// again.
func (e *Engine) Enable(ctx context.Context, userID string, code string) ([]string, error) {
	u, err := e.storage.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	raw, err := e.storage.GetMFASecret(ctx, userID)
	if err != nil {
		return nil, err
	}

	// An enabled account with its code bundle intact cannot re-run enable;
	// a fresh Setup (or a legacy bare-secret record) starts enrollment over.
	if StateOf(u, raw) == StateEnabled && json.Valid([]byte(raw)) {
		return nil, ErrInvalidCode
	}

	bundle, err := ParseBundle(raw)
	if err != nil {
		return nil, ErrNotSetUp
	}

	if !e.validTOTPCode(bundle.Secret, code) {
		return nil, ErrInvalidCode
	}

	backupCodes := make([]string, 0, backupCodeCount)
	hashedCodes := make([]string, 0, backupCodeCount)
	for i := 0; i < backupCodeCount; i++ {
		backupCode, err := newBackupCode()
		if err != nil {
			return nil, err
		}

		hashedCode, err := secret.QuickHash(backupCode)
		if err != nil {
			return nil, err
		}

		backupCodes = append(backupCodes, backupCode)
		hashedCodes = append(hashedCodes, hashedCode)
	}

	blob, err := Bundle{Secret: bundle.Secret, BackupCodes: hashedCodes}.Encode()
	if err != nil {
		return nil, err
	}

	if err := e.storage.EnableMFA(ctx, userID, blob); err != nil {
		return nil, err
	}

	e.logger.Debug("mfa enabled", slog.String("userID", userID))

	return backupCodes, nil
}

// Disable turns the second factor off after re-verifying the account
// password and clears the stored bundle.
func (e *Engine) Disable(ctx context.Context, userID string, password string) error {
	hashedPassword, err := e.storage.GetHashedPasswordByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := secret.Compare(password, hashedPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidPassword
	}

	if err := e.storage.DisableMFA(ctx, userID); err != nil {
		return err
	}

	e.logger.Debug("mfa disabled", slog.String("userID", userID))

	return nil
}

// VerifyLogin checks a second factor between password verification and
// session issuance. It is keyed by email because the caller holds no session
// yet. A matching backup code is consumed permanently.
func (e *Engine) VerifyLogin(ctx context.Context, email string, code string, isBackupCode bool) (model.User, error) {
	u, err := e.storage.FindByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return model.User{}, ErrNotEnabled
	}
	if err != nil {
		return model.User{}, err
	}

	raw, err := e.storage.GetMFASecret(ctx, u.ID)
	if err != nil {
		return model.User{}, err
	}

	if StateOf(u, raw) != StateEnabled {
		return model.User{}, ErrNotEnabled
	}

	bundle, err := ParseBundle(raw)
	if err != nil {
		return model.User{}, ErrNotEnabled
	}

	if isBackupCode {
		if !bundle.ConsumeBackupCode(code) {
			return model.User{}, ErrInvalidCode
		}

		blob, err := bundle.Encode()
		if err != nil {
			return model.User{}, err
		}

		if err := e.storage.SaveMFASecret(ctx, u.ID, blob); err != nil {
			return model.User{}, err
		}
	} else if !e.validTOTPCode(bundle.Secret, code) {
		return model.User{}, ErrInvalidCode
	}

	// The password check left the sign-in timestamp untouched; a completed
	// second factor is the moment the login actually succeeds.
	if err := e.storage.UpdateLastSignedIn(ctx, u.ID, e.now()); err != nil {
		return model.User{}, err
	}

	return u, nil
}

type Status struct {
	Enabled              bool
	BackupCodesRemaining int
}

// Status reports the current state. Spending the last backup code leaves MFA
// enabled with zero codes remaining.
func (e *Engine) Status(ctx context.Context, userID string) (Status, error) {
	u, err := e.storage.FindByID(ctx, userID)
	if err != nil {
		return Status{}, err
	}

	raw, err := e.storage.GetMFASecret(ctx, userID)
	if err != nil {
		return Status{}, err
	}

	if StateOf(u, raw) != StateEnabled {
		return Status{}, nil
	}

	bundle, err := ParseBundle(raw)
	if err != nil {
		return Status{Enabled: true}, nil
	}

	return Status{
		Enabled:              true,
		BackupCodesRemaining: len(bundle.BackupCodes),
	}, nil
}

// StateOf derives the enrollment state from a user record and its stored
// blob, making the enabled-without-secret combination unrepresentable.
func StateOf(u model.User, rawSecret string) State {
	switch {
	case u.MFAEnabled && rawSecret != "":
		return StateEnabled
	case rawSecret != "":
		return StatePendingVerification
	default:
		return StateUnenrolled
	}
}

func (e *Engine) validTOTPCode(totpSecret string, code string) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), totpSecret, e.now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})

	return err == nil && ok
}

func newBackupCode() (string, error) {
	buf := make([]byte, backupCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
