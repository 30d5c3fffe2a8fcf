package rootaccount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/VrushankPatel/shield-sub001/internal/auth"
	"github.com/VrushankPatel/shield-sub001/internal/shared"
	"github.com/VrushankPatel/shield-sub001/internal/tenants"
	"github.com/VrushankPatel/shield-sub001/internal/verify"
)

// SocietyProvisioner creates a tenant and its admin user atomically.
type SocietyProvisioner interface {
	Onboard(ctx context.Context, in tenants.OnboardInput) (*tenants.OnboardResult, error)
}

// Config carries the lockout knobs and the seed contact details.
type Config struct {
	Email            string
	Mobile           string
	LockoutThreshold int
	LockoutDuration  time.Duration
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken            string `json:"access_token"`
	RefreshToken           string `json:"refresh_token"`
	TokenType              string `json:"token_type"`
	ExpiresIn              int64  `json:"expires_in"`
	PasswordChangeRequired bool   `json:"password_change_required"`
}

// BootstrapResult reports the outcome of a bootstrap attempt. Password is set
// only when one was generated on this call; it is never retrievable again.
type BootstrapResult struct {
	Generated bool
	Password  string
}

// Manager owns the root account lifecycle.
type Manager struct {
	repo        Repository
	hasher      shared.PasswordHasher
	codec       *auth.Codec
	verifier    verify.ContactVerifier
	provisioner SocietyProvisioner
	audit       shared.AuditSink
	logger      *slog.Logger
	cfg         Config
	now         func() time.Time
}

// NewManager constructs a Manager. Zero lockout knobs fall back to 5 attempts
// and a 30 minute lock.
func NewManager(repo Repository, hasher shared.PasswordHasher, codec *auth.Codec, verifier verify.ContactVerifier, provisioner SocietyProvisioner, audit shared.AuditSink, logger *slog.Logger, cfg Config) *Manager {
	if cfg.LockoutThreshold <= 0 {
		cfg.LockoutThreshold = 5
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 30 * time.Minute
	}
	return &Manager{
		repo:        repo,
		hasher:      hasher,
		codec:       codec,
		verifier:    verifier,
		provisioner: provisioner,
		audit:       audit,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

func rootPrincipal(a *Account) shared.Principal {
	return shared.Principal{
		UserID:       a.ID,
		Login:        a.LoginID,
		RoleCode:     "ROOT",
		Type:         shared.PrincipalRoot,
		TokenVersion: a.TokenVersion,
	}
}

func (m *Manager) mintPair(a *Account) (*TokenPair, error) {
	p := rootPrincipal(a)
	access, err := m.codec.Issue(p, auth.TokenAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := m.codec.Issue(p, auth.TokenRefresh)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:            access,
		RefreshToken:           refresh,
		TokenType:              "Bearer",
		ExpiresIn:              int64(m.codec.AccessTTL().Seconds()),
		PasswordChangeRequired: a.PasswordChangeRequired,
	}, nil
}

// recordAudit writes one root trail event. The caller fails when the sink
// does: a security event that cannot be recorded fails its operation.
func (m *Manager) recordAudit(ctx context.Context, accountID int64, action string, meta map[string]any) error {
	return m.audit.Record(ctx, shared.AuditEvent{
		ActorUserID: accountID,
		Action:      action,
		Entity:      "root_account",
		EntityID:    strconv.FormatInt(accountID, 10),
		Meta:        meta,
	})
}

// Bootstrap creates the root row if absent and, while it carries no password,
// generates one. The plaintext is returned exactly once; a second call on an
// initialised account is a no-op.
func (m *Manager) Bootstrap(ctx context.Context) (*BootstrapResult, error) {
	account, err := m.repo.Find(ctx)
	if errors.Is(err, shared.ErrNotFound) {
		account, err = m.repo.CreateIfAbsent(ctx, Account{
			LoginID:        LoginID,
			Email:          strings.ToLower(strings.TrimSpace(m.cfg.Email)),
			Mobile:         strings.TrimSpace(m.cfg.Mobile),
			EmailVerified:  true,
			MobileVerified: true,
			Active:         true,
		})
	}
	if err != nil {
		return nil, err
	}
	if account.PasswordHash != "" {
		return &BootstrapResult{Generated: false}, nil
	}

	password, err := GeneratePassword()
	if err != nil {
		return nil, err
	}
	hash, err := m.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	raced := false
	if _, err := m.repo.Update(ctx, func(a *Account) error {
		if a.PasswordHash != "" {
			raced = true
			return nil
		}
		a.PasswordHash = hash
		a.PasswordChangeRequired = true
		a.FailedLoginAttempts = 0
		a.LockedUntil = nil
		return nil
	}); err != nil {
		return nil, err
	}
	if raced {
		return &BootstrapResult{Generated: false}, nil
	}

	if err := m.recordAudit(ctx, account.ID, "root.bootstrap.password_generated", nil); err != nil {
		return nil, err
	}
	m.logger.Info("root password generated")
	return &BootstrapResult{Generated: true, Password: password}, nil
}

// Login authenticates the fixed root login. While a lock window is in force
// the password is never checked.
func (m *Manager) Login(ctx context.Context, loginID, password string) (*TokenPair, error) {
	if !strings.EqualFold(strings.TrimSpace(loginID), LoginID) {
		return nil, fmt.Errorf("unknown root login: %w", shared.ErrAuth)
	}
	account, err := m.repo.Find(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("root account not provisioned: %w", shared.ErrAuth)
		}
		return nil, err
	}
	if !account.Active || account.PasswordHash == "" {
		return nil, fmt.Errorf("root account not usable: %w", shared.ErrAuth)
	}

	now := m.now().UTC()
	if account.LockedNow(now) {
		if err := m.recordAudit(ctx, account.ID, "root.login.rejected_locked", map[string]any{
			"locked_until": account.LockedUntil.UTC().Format(time.RFC3339),
		}); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("root account locked until %s: %w", account.LockedUntil.UTC().Format(time.RFC3339), shared.ErrLocked)
	}

	if err := m.hasher.Verify(account.PasswordHash, password); err != nil {
		attempts := 0
		var lockedUntil *time.Time
		if _, err := m.repo.Update(ctx, func(a *Account) error {
			a.FailedLoginAttempts++
			attempts = a.FailedLoginAttempts
			if a.FailedLoginAttempts >= m.cfg.LockoutThreshold {
				until := m.now().UTC().Add(m.cfg.LockoutDuration)
				a.LockedUntil = &until
				a.FailedLoginAttempts = 0
				lockedUntil = &until
			}
			return nil
		}); err != nil {
			return nil, err
		}
		meta := map[string]any{"failed_attempts": attempts}
		if lockedUntil != nil {
			meta["locked_until"] = lockedUntil.Format(time.RFC3339)
			meta["lockout_minutes"] = int(m.cfg.LockoutDuration.Minutes())
		}
		if err := m.recordAudit(ctx, account.ID, "root.login.failed", meta); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("invalid credentials: %w", shared.ErrAuth)
	}

	account, err = m.repo.Update(ctx, func(a *Account) error {
		a.FailedLoginAttempts = 0
		a.LockedUntil = nil
		at := now
		a.LastLoginAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}

	pair, err := m.mintPair(account)
	if err != nil {
		return nil, err
	}
	if err := m.recordAudit(ctx, account.ID, "root.login.succeeded", nil); err != nil {
		return nil, err
	}
	return pair, nil
}

// Refresh rotates a root refresh token. The claimed token version must match
// the live account; a mismatch means the session was revoked.
func (m *Manager) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	claims, err := m.codec.Parse(auth.StripBearer(rawToken))
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(claims.TokenType, string(auth.TokenRefresh)) {
		return nil, fmt.Errorf("refresh token required: %w", shared.ErrAuth)
	}
	if !strings.EqualFold(claims.PrincipalType, string(shared.PrincipalRoot)) {
		return nil, fmt.Errorf("root token required: %w", shared.ErrAuth)
	}
	if claims.TokenVersion == nil || claims.UserID == 0 {
		return nil, fmt.Errorf("malformed root claims: %w", shared.ErrAuth)
	}

	account, err := m.repo.Find(ctx)
	if err != nil || !account.Active || account.ID != claims.UserID {
		return nil, fmt.Errorf("root session no longer valid: %w", shared.ErrAuth)
	}
	if *claims.TokenVersion != account.TokenVersion {
		return nil, fmt.Errorf("root session revoked: %w", shared.ErrAuth)
	}
	return m.mintPair(account)
}

// resolveLive matches the principal against the live account record.
func (m *Manager) resolveLive(ctx context.Context, p *shared.Principal) (*Account, error) {
	if p == nil || !p.IsRoot() {
		return nil, fmt.Errorf("root session required: %w", shared.ErrAuth)
	}
	account, err := m.repo.Find(ctx)
	if err != nil || !account.Active || account.ID != p.UserID {
		return nil, fmt.Errorf("session no longer valid: %w", shared.ErrAuth)
	}
	if p.TokenVersion != account.TokenVersion {
		return nil, fmt.Errorf("session no longer valid: %w", shared.ErrAuth)
	}
	return account, nil
}

// ChangePassword rotates the root credential. Both contact channels must be
// verified out of band first; success bumps the token version, revoking every
// outstanding root token including the one authorizing this call.
func (m *Manager) ChangePassword(ctx context.Context, p *shared.Principal, newPassword, confirmNewPassword, email, mobile string) error {
	account, err := m.resolveLive(ctx, p)
	if err != nil {
		return err
	}
	if newPassword == "" || newPassword != confirmNewPassword {
		return fmt.Errorf("password confirmation mismatch: %w", shared.ErrValidation)
	}
	if m.hasher.Verify(account.PasswordHash, newPassword) == nil {
		return fmt.Errorf("new password must differ from current: %w", shared.ErrValidation)
	}
	if err := m.verifier.VerifyEmailOwnership(ctx, email); err != nil {
		return fmt.Errorf("email ownership: %w", err)
	}
	if err := m.verifier.VerifyMobileOwnership(ctx, mobile); err != nil {
		return fmt.Errorf("mobile ownership: %w", err)
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	version := p.TokenVersion
	if _, err := m.repo.Update(ctx, func(a *Account) error {
		if a.TokenVersion != version {
			return fmt.Errorf("session no longer valid: %w", shared.ErrAuth)
		}
		a.Email = strings.ToLower(strings.TrimSpace(email))
		a.Mobile = strings.TrimSpace(mobile)
		a.EmailVerified = true
		a.MobileVerified = true
		a.PasswordHash = hash
		a.PasswordChangeRequired = false
		a.TokenVersion++
		a.FailedLoginAttempts = 0
		a.LockedUntil = nil
		return nil
	}); err != nil {
		return err
	}

	return m.recordAudit(ctx, account.ID, "root.password.changed", map[string]any{
		"email_provider":  m.verifier.EmailProvider(),
		"mobile_provider": m.verifier.MobileProvider(),
	})
}

// OnboardRequest carries the society-provisioning payload.
type OnboardRequest struct {
	SocietyName   string
	Address       string
	AdminName     string
	AdminEmail    string
	AdminMobile   string
	AdminPassword string
}

// OnboardSociety provisions a tenant with its first admin. Root must have
// rotated the bootstrap password first.
func (m *Manager) OnboardSociety(ctx context.Context, p *shared.Principal, req OnboardRequest) (*tenants.OnboardResult, error) {
	account, err := m.resolveLive(ctx, p)
	if err != nil {
		return nil, err
	}
	if account.PasswordChangeRequired {
		return nil, fmt.Errorf("rotate the bootstrap password before onboarding: %w", shared.ErrValidation)
	}

	hash, err := m.hasher.Hash(req.AdminPassword)
	if err != nil {
		return nil, err
	}
	return m.provisioner.Onboard(ctx, tenants.OnboardInput{
		SocietyName:       req.SocietyName,
		Address:           req.Address,
		AdminFullName:     req.AdminName,
		AdminEmail:        req.AdminEmail,
		AdminMobile:       req.AdminMobile,
		AdminPasswordHash: hash,
		ActorID:           account.ID,
	})
}

// IsTokenVersionValid reports whether a root token minted at the given version
// is still live. It never errors; any lookup failure means invalid.
func (m *Manager) IsTokenVersionValid(ctx context.Context, accountID, tokenVersion int64) bool {
	account, err := m.repo.Find(ctx)
	if err != nil {
		return false
	}
	return account.Active && account.ID == accountID && account.TokenVersion == tokenVersion
}
