package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/plumehost/platform/internal/domain"
	"github.com/plumehost/platform/internal/pkg/id"
)

// usernamePattern constrains usernames to valid DNS labels, since the username
// doubles as the blog's subdomain.
var usernamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,38}[a-z0-9])?$`)

// reservedUsernames can never be registered; they collide with platform
// surfaces or mail infrastructure.
var reservedUsernames = map[string]bool{
	"www": true, "api": true, "app": true, "mail": true, "smtp": true,
	"admin": true, "blog": true, "dashboard": true, "status": true,
}

// Service manages tenant accounts: registration, login, and blog settings.
type Service interface {
	Register(ctx context.Context, req *domain.RegisterTenantRequest) (*domain.Tenant, error)
	Login(ctx context.Context, req *domain.LoginRequest) (string, *domain.Tenant, error)
	GetSettings(ctx context.Context, tenantID string) (*domain.Tenant, error)
	UpdateSettings(ctx context.Context, tenantID string, req *domain.UpdateTenantSettingsRequest) (*domain.Tenant, error)
}

type tenantStore interface {
	Put(ctx context.Context, t *domain.Tenant) error
	Get(ctx context.Context, tenantID string) (*domain.Tenant, error)
	GetByUsername(ctx context.Context, username string) (*domain.Tenant, error)
	GetByEmail(ctx context.Context, email string) (*domain.Tenant, error)
	GetByCustomDomain(ctx context.Context, host string) (*domain.Tenant, error)
	Update(ctx context.Context, tenantID string, updates map[string]interface{}) error
	ClearDomain(ctx context.Context, tenantID string) error
}

type tokenSigner interface {
	Sign(tenantID, username string) (string, error)
}

type ServiceDeps struct {
	Tenants tenantStore
	Signer  tokenSigner
}

type service struct {
	tenants tenantStore
	signer  tokenSigner
}

func NewService(deps ServiceDeps) Service {
	return &service{tenants: deps.Tenants, signer: deps.Signer}
}

// Register creates a tenant account. The username must be a usable subdomain
// label and both username and email must be unused.
func (s *service) Register(ctx context.Context, req *domain.RegisterTenantRequest) (*domain.Tenant, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if !usernamePattern.MatchString(username) || reservedUsernames[username] {
		return nil, fmt.Errorf("username %q is not available: %w", username, domain.ErrBadRequest)
	}
	if _, err := s.tenants.GetByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("username %q is taken: %w", username, domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if _, err := s.tenants.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	tenant := &domain.Tenant{
		TenantID:      id.New(),
		Username:      username,
		Email:         email,
		PasswordHash:  string(hash),
		DisplayName:   strings.TrimSpace(req.DisplayName),
		Theme:         "default",
		NotifyEnabled: true,
		Enable:        1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.tenants.Put(ctx, tenant); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	slog.Info("tenant registered", "tenant_id", tenant.TenantID, "username", username)
	return tenant, nil
}

// Login verifies credentials and returns a signed access token. Lookup and
// bcrypt failures collapse into the same error so callers cannot probe which
// usernames exist.
func (s *service) Login(ctx context.Context, req *domain.LoginRequest) (string, *domain.Tenant, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))

	tenant, err := s.tenants.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return "", nil, err
	}
	if tenant.Enable != 1 {
		return "", nil, fmt.Errorf("account disabled: %w", domain.ErrForbidden)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(tenant.PasswordHash), []byte(req.Password)); err != nil {
		return "", nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}

	token, err := s.signer.Sign(tenant.TenantID, tenant.Username)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, tenant, nil
}

func (s *service) GetSettings(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	return s.tenants.Get(ctx, tenantID)
}

// UpdateSettings applies a partial settings update. A custom domain must not be
// claimed by another tenant; setting it to the empty string releases it.
func (s *service) UpdateSettings(ctx context.Context, tenantID string, req *domain.UpdateTenantSettingsRequest) (*domain.Tenant, error) {
	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*req.DisplayName)
	}
	if req.Theme != nil {
		updates["theme"] = *req.Theme
	}
	if req.NotifyEnabled != nil {
		updates["notify_enabled"] = *req.NotifyEnabled
	}
	if req.ReplyTo != nil {
		updates["reply_to"] = strings.ToLower(strings.TrimSpace(*req.ReplyTo))
	}
	if req.RedirectDomain != nil {
		updates["redirect_domain"] = normalizeDomain(*req.RedirectDomain)
	}

	clearDomain := false
	if req.CustomDomain != nil {
		dom := normalizeDomain(*req.CustomDomain)
		switch {
		case dom == "":
			clearDomain = tenant.CustomDomain != ""
		case dom != tenant.CustomDomain:
			owner, err := s.tenants.GetByCustomDomain(ctx, dom)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			if owner != nil && owner.TenantID != tenantID {
				return nil, fmt.Errorf("domain %s is already registered: %w", dom, domain.ErrConflict)
			}
			updates["custom_domain"] = dom
		}
	}

	if len(updates) > 0 {
		if err := s.tenants.Update(ctx, tenantID, updates); err != nil {
			return nil, fmt.Errorf("update settings: %w", err)
		}
	}
	if clearDomain {
		if err := s.tenants.ClearDomain(ctx, tenantID); err != nil {
			return nil, fmt.Errorf("release domain: %w", err)
		}
	}
	return s.tenants.Get(ctx, tenantID)
}

func normalizeDomain(d string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(d), "."))
}
