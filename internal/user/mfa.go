package user

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
)

var (
	ErrMFANotEnabled  = errors.New("user: mfa not enabled for this account")
	ErrInvalidMFACode = errors.New("user: invalid mfa code")
)

// MFAService issues and verifies TOTP secrets for developer accounts.
// This is additive to the core login contract: it never gates /login
// itself, only developer-sensitive operations (client secret rotation
// and deletion) when a developer has chosen to enable it.
type MFAService struct {
	issuer string
	repo   Repository
}

func NewMFAService(issuer string, repo Repository) *MFAService {
	return &MFAService{issuer: issuer, repo: repo}
}

// BeginSetup generates a new TOTP secret for accountName and a QR code
// PNG encoding its otpauth:// URI. The secret is not persisted yet; call
// ConfirmSetup with a valid code to activate it.
func (m *MFAService) BeginSetup(accountName string) (secret string, qrPNG []byte, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: accountName,
	})
	if err != nil {
		return "", nil, fmt.Errorf("generate totp key: %w", err)
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return "", nil, fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", nil, fmt.Errorf("encode qr png: %w", err)
	}

	return key.Secret(), buf.Bytes(), nil
}

// ConfirmSetup validates the first code against secret and, if it
// matches, persists the secret as active on the user's account.
func (m *MFAService) ConfirmSetup(ctx context.Context, userID uuid.UUID, secret, code string) error {
	if !totp.Validate(code, secret) {
		return ErrInvalidMFACode
	}
	u, err := m.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return m.repo.Update(ctx, u.WithMFA(secret, true, time.Now()))
}

// Verify checks code against the user's active TOTP secret.
func (m *MFAService) Verify(ctx context.Context, userID uuid.UUID, code string) error {
	u, err := m.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.MFAEnabled {
		return ErrMFANotEnabled
	}
	if !totp.Validate(code, u.MFASecret) {
		return ErrInvalidMFACode
	}
	return nil
}
