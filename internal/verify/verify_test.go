package verify

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

func TestDevVerifierEmail(t *testing.T) {
	v := NewDevVerifier(slog.Default())
	ctx := context.Background()

	require.NoError(t, v.VerifyEmailOwnership(ctx, "root@example.com"))
	require.NoError(t, v.VerifyEmailOwnership(ctx, "  spaced@example.com  "))

	err := v.VerifyEmailOwnership(ctx, "not-an-address")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDevVerifierMobile(t *testing.T) {
	v := NewDevVerifier(slog.Default())
	ctx := context.Background()

	require.NoError(t, v.VerifyMobileOwnership(ctx, "+91 98765 43210"))
	require.ErrorIs(t, v.VerifyMobileOwnership(ctx, "12345"), shared.ErrValidation)
	require.ErrorIs(t, v.VerifyMobileOwnership(ctx, "1234567890123456"), shared.ErrValidation)
}
