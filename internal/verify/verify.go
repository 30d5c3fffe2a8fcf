// Package verify abstracts contact-ownership checks used before sensitive
// credential changes.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

// ContactVerifier proves that the caller controls a contact channel. Both
// checks must pass before a root password change is accepted.
type ContactVerifier interface {
	VerifyEmailOwnership(ctx context.Context, email string) error
	VerifyMobileOwnership(ctx context.Context, mobile string) error
	EmailProvider() string
	MobileProvider() string
}

// DevVerifier accepts any syntactically valid contact. It stands in for the
// SMTP and SMS gateway integrations in local and CI environments.
type DevVerifier struct {
	logger *slog.Logger
}

// NewDevVerifier constructs a DevVerifier.
func NewDevVerifier(logger *slog.Logger) *DevVerifier {
	return &DevVerifier{logger: logger}
}

// VerifyEmailOwnership checks the address parses as RFC 5322.
func (v *DevVerifier) VerifyEmailOwnership(ctx context.Context, email string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return fmt.Errorf("email %q not verifiable: %w", email, shared.ErrValidation)
	}
	v.logger.Debug("email ownership accepted", slog.String("provider", v.EmailProvider()))
	return nil
}

// VerifyMobileOwnership checks the number has a plausible digit count.
func (v *DevVerifier) VerifyMobileOwnership(ctx context.Context, mobile string) error {
	digits := 0
	for _, r := range mobile {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 7 || digits > 15 {
		return fmt.Errorf("mobile %q not verifiable: %w", mobile, shared.ErrValidation)
	}
	v.logger.Debug("mobile ownership accepted", slog.String("provider", v.MobileProvider()))
	return nil
}

// EmailProvider names the backing email channel.
func (v *DevVerifier) EmailProvider() string { return "dev-smtp" }

// MobileProvider names the backing SMS channel.
func (v *DevVerifier) MobileProvider() string { return "dev-sms" }

var _ ContactVerifier = (*DevVerifier)(nil)
