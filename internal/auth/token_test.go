package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(CodecConfig{
		Secret:     "test-secret-test-secret-test1234",
		Issuer:     "shield-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	require.NoError(t, err)
	return codec
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	p := shared.Principal{
		UserID:   42,
		TenantID: 7,
		Login:    "jane@example.com",
		RoleCode: "RESIDENT",
		Type:     shared.PrincipalTenantUser,
	}
	raw, err := codec.Issue(p, TokenAccess)
	require.NoError(t, err)

	claims, err := codec.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, int64(7), claims.TenantID)
	require.Equal(t, "jane@example.com", claims.Subject)
	require.Equal(t, "RESIDENT", claims.RoleCode)
	require.Equal(t, string(TokenAccess), claims.TokenType)
	require.Nil(t, claims.TokenVersion)

	got := claims.Principal()
	require.Equal(t, p.UserID, got.UserID)
	require.Equal(t, shared.PrincipalTenantUser, got.Type)
}

func TestCodecRootTokenCarriesVersion(t *testing.T) {
	codec := newTestCodec(t)

	raw, err := codec.Issue(shared.Principal{
		UserID:       1,
		Login:        "root",
		RoleCode:     "ROOT",
		Type:         shared.PrincipalRoot,
		TokenVersion: 3,
	}, TokenRefresh)
	require.NoError(t, err)

	claims, err := codec.Parse(raw)
	require.NoError(t, err)
	require.NotNil(t, claims.TokenVersion)
	require.Equal(t, int64(3), *claims.TokenVersion)
	require.Equal(t, string(TokenRefresh), claims.TokenType)
	require.Equal(t, int64(3), claims.Principal().TokenVersion)
}

func TestCodecRejectsExpired(t *testing.T) {
	codec := newTestCodec(t)
	codec.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }

	raw, err := codec.Issue(shared.Principal{UserID: 1, Login: "x"}, TokenAccess)
	require.NoError(t, err)

	codec.now = time.Now
	_, err = codec.Parse(raw)
	require.ErrorIs(t, err, shared.ErrAuth)
}

func TestCodecRejectsForeignSignature(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec(CodecConfig{
		Secret:     "another-secret-entirely-12345678",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Minute,
	})
	require.NoError(t, err)

	raw, err := other.Issue(shared.Principal{UserID: 9, Login: "x"}, TokenAccess)
	require.NoError(t, err)

	_, err = codec.Parse(raw)
	require.ErrorIs(t, err, shared.ErrAuth)
}

func TestCodecRejectsGarbage(t *testing.T) {
	codec := newTestCodec(t)
	for _, raw := range []string{"", "not.a.jwt", "eyJhbGciOiJub25lIn0.e30."} {
		_, err := codec.Parse(raw)
		require.ErrorIs(t, err, shared.ErrAuth)
	}
}

func TestStripBearer(t *testing.T) {
	require.Equal(t, "abc", StripBearer("Bearer abc"))
	require.Equal(t, "abc", StripBearer("bearer abc"))
	require.Equal(t, "abc", StripBearer("  Bearer abc "))
	require.Equal(t, "abc", StripBearer("abc"))
}
