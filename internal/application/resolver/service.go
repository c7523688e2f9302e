package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/plumehost/platform/internal/domain"
)

// TenantPathPrefix is the fixed routing prefix for tenant-scoped paths on the
// canonical host. It is stripped when redirecting to a retired blog's new
// home, which serves the same content at its own root.
const TenantPathPrefix = "/blog"

// Kind discriminates the outcome of host resolution.
type Kind int

const (
	// KindCanonical: the request hit the canonical host; no tenant context.
	KindCanonical Kind = iota
	// KindTenant: the request is served under the resolved tenant.
	KindTenant
	// KindRedirect: the request must be redirected to Resolution.RedirectURL.
	KindRedirect
)

// Resolution is the immutable routing decision for one inbound request. It is
// attached to the request context by the tenant middleware and never mutated
// afterwards.
type Resolution struct {
	Kind        Kind
	Tenant      *domain.Tenant
	Theme       string // viewer theme on the canonical host, tenant theme otherwise
	RedirectURL string // set only when Kind == KindRedirect
}

type tenantStore interface {
	Get(ctx context.Context, tenantID string) (*domain.Tenant, error)
	GetByUsername(ctx context.Context, username string) (*domain.Tenant, error)
	GetByCustomDomain(ctx context.Context, host string) (*domain.Tenant, error)
}

type Service interface {
	// Resolve turns an inbound host header into a routing decision.
	// viewerTenantID is the authenticated tenant, or empty for anonymous
	// requests. It performs no writes.
	Resolve(ctx context.Context, host, path, viewerTenantID string) (*Resolution, error)
}

type service struct {
	tenants       tenantStore
	canonicalHost string
}

func NewService(tenants tenantStore, canonicalHost string) Service {
	return &service{tenants: tenants, canonicalHost: strings.ToLower(canonicalHost)}
}

func (s *service) Resolve(ctx context.Context, host, path, viewerTenantID string) (*Resolution, error) {
	host = normalizeHost(host)

	if host == s.canonicalHost {
		res := &Resolution{Kind: KindCanonical}
		if viewerTenantID != "" {
			t, err := s.tenants.Get(ctx, viewerTenantID)
			if err != nil {
				// The theme is cosmetic, so the canonical page still renders,
				// but the lookup failure should not vanish silently.
				slog.Debug("resolve: viewer theme lookup failed", "tenant_id", viewerTenantID, "err", err)
			} else {
				res.Theme = t.Theme
			}
		}
		return res, nil
	}

	if slug, ok := s.subdomainLabel(host); ok {
		t, err := s.tenants.GetByUsername(ctx, slug)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("no blog named %q: %w", slug, domain.ErrNotFound)
			}
			return nil, err
		}
		// Owners viewing their own blog stay on the subdomain; everyone else
		// is sent to the blog's public address when one is registered.
		if viewerTenantID != t.TenantID {
			if target := subdomainRedirectTarget(t, path); target != "" {
				return &Resolution{Kind: KindRedirect, Tenant: t, RedirectURL: target}, nil
			}
		}
		return &Resolution{Kind: KindTenant, Tenant: t, Theme: t.Theme}, nil
	}

	t, err := s.tenants.GetByCustomDomain(ctx, host)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("unrecognized host %q: %w", host, domain.ErrBadRequest)
		}
		return nil, err
	}
	// A retired blog's old custom domain always forwards, even for the owner.
	if t.RedirectDomain != "" {
		target := ensureScheme(t.RedirectDomain + strings.TrimPrefix(path, TenantPathPrefix))
		return &Resolution{Kind: KindRedirect, Tenant: t, RedirectURL: target}, nil
	}
	return &Resolution{Kind: KindTenant, Tenant: t, Theme: t.Theme}, nil
}

// subdomainLabel reports whether host has the shape <label>.<canonicalHost>
// with a single leading label, returning the label.
func (s *service) subdomainLabel(host string) (string, bool) {
	suffix := "." + s.canonicalHost
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	label := strings.TrimSuffix(host, suffix)
	if label == "" || strings.Contains(label, ".") {
		return "", false
	}
	return label, true
}

// subdomainRedirectTarget computes where a non-owner request to
// <slug>.<canonical> should land. A retired blog's redirect domain takes
// precedence over the custom domain; the tenant path prefix is stripped for
// it because the new home serves content at its root.
func subdomainRedirectTarget(t *domain.Tenant, path string) string {
	if t.RedirectDomain != "" {
		return ensureScheme(t.RedirectDomain + strings.TrimPrefix(path, TenantPathPrefix))
	}
	if t.CustomDomain != "" {
		return ensureScheme(t.CustomDomain + path)
	}
	return ""
}

// ensureScheme makes the target scheme-relative when it lacks an explicit
// protocol, so the browser inherits the current one.
func ensureScheme(target string) string {
	if strings.Contains(target, "://") || strings.HasPrefix(target, "//") {
		return target
	}
	return "//" + target
}

// normalizeHost lowercases the host and strips any port.
func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}
