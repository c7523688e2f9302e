package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/plumehost/platform/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockTenantStore struct{ mock.Mock }

func (m *mockTenantStore) Get(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	args := m.Called(ctx, tenantID)
	if t, _ := args.Get(0).(*domain.Tenant); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTenantStore) GetByUsername(ctx context.Context, username string) (*domain.Tenant, error) {
	args := m.Called(ctx, username)
	if t, _ := args.Get(0).(*domain.Tenant); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTenantStore) GetByCustomDomain(ctx context.Context, host string) (*domain.Tenant, error) {
	args := m.Called(ctx, host)
	if t, _ := args.Get(0).(*domain.Tenant); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

const canonical = "plumehost.app"

func alice() *domain.Tenant {
	return &domain.Tenant{TenantID: "t-alice", Username: "alice", Theme: "dark"}
}

// --- Resolve ---

func TestResolve_CanonicalHost_NoTenantContext(t *testing.T) {
	ts := &mockTenantStore{}
	svc := NewService(ts, canonical)

	res, err := svc.Resolve(context.Background(), "plumehost.app", "/", "")

	require.NoError(t, err)
	assert.Equal(t, KindCanonical, res.Kind)
	assert.Nil(t, res.Tenant)
	ts.AssertNotCalled(t, "GetByUsername", mock.Anything, mock.Anything)
}

func TestResolve_CanonicalHost_AuthenticatedViewerTheme(t *testing.T) {
	ts := &mockTenantStore{}
	viewer := alice()
	ts.On("Get", mock.Anything, "t-alice").Return(viewer, nil)
	svc := NewService(ts, canonical)

	res, err := svc.Resolve(context.Background(), "plumehost.app", "/dashboard", "t-alice")

	require.NoError(t, err)
	assert.Equal(t, KindCanonical, res.Kind)
	assert.Equal(t, "dark", res.Theme)
}

func TestResolve_CanonicalHost_ViewerLookupFailure_StillResolves(t *testing.T) {
	ts := &mockTenantStore{}
	ts.On("Get", mock.Anything, "t-alice").Return(nil, errors.New("dynamo unavailable"))
	svc := NewService(ts, canonical)

	res, err := svc.Resolve(context.Background(), "plumehost.app", "/dashboard", "t-alice")

	require.NoError(t, err)
	assert.Equal(t, KindCanonical, res.Kind)
	assert.Empty(t, res.Theme)
}

func TestResolve_CanonicalHost_IgnoresPort(t *testing.T) {
	ts := &mockTenantStore{}
	svc := NewService(ts, canonical)

	res, err := svc.Resolve(context.Background(), "plumehost.app:3000", "/", "")

	require.NoError(t, err)
	assert.Equal(t, KindCanonical, res.Kind)
}

func TestResolve_Subdomain_TenantFound_Anonymous(t *testing.T) {
	ts := &mockTenantStore{}
	ts.On("GetByUsername", mock.Anything, "alice").Return(alice(), nil)
	svc := NewService(ts, canonical)

	res, err := svc.Resolve(context.Background(), "alice.plumehost.app", "/", "")

	require.NoError(t, err)
	assert.Equal(t, KindTenant, res.Kind)
	assert.Equal(t, "alice", res.Tenant.Username)
	assert.Equal(t, "dark", res.Theme)
}

func TestResolve_Subdomain_TenantMissing(t *testing.T) {
	ts := &mockTenantStore{}
	ts.On("GetByUsername", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)
	svc := NewService(ts, canonical)

	_, err := svc.Resolve(context.Background(), "ghost.plumehost.app", "/", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestResolve_Subdomain_CustomDomainRedirect_PreservesPath(t *testing.T) {
	ts := &mockTenantStore{}
	tn := alice()
	tn.CustomDomain = "alice.blog"
	ts.On("GetByUsername", mock.Anything, "alice").Return(tn, nil)
	svc := NewService(ts, canonical)

	res, err := svc.Resolve(context.Background(), "alice.plumehost.app", "/my-post", "")

	require.NoError(t, err)
	assert.Equal(t, KindRedirect, res.Kind)
	assert.Equal(t, "//alice.blog/my-post", res.RedirectURL)
}

func TestResolve_Subdomain_RedirectDomain_TakesPrecedence_StripsPrefix(t *testing.T) {
	ts := &mockTenantStore{}
	tn := alice()
	tn.CustomDomain = "alice.blog"
	tn.RedirectDomain = "example.com"
	ts.On("GetByUsername", mock.Anything, "alice").Return(tn, nil)
	svc := NewService(ts, canonical)

	res, err := svc.Resolve(context.Background(), "alice.plumehost.app", "/blog/my-post", "")

	require.NoError(t, err)
	assert.Equal(t, KindRedirect, res.Kind)
	assert.Equal(t, "//example.com/my-post", res.RedirectURL)
}

func TestResolve_Subdomain_Owner_NotRedirected(t *testing.T) {
	ts := &mockTenantStore{}
	tn := alice()
	tn.CustomDomain = "alice.blog"
	ts.On("GetByUsername", mock.Anything, "alice").Return(tn, nil)
	svc := NewService(ts, canonical)

	res, err := svc.Resolve(context.Background(), "alice.plumehost.app", "/", "t-alice")

	require.NoError(t, err)
	assert.Equal(t, KindTenant, res.Kind)
}

func TestResolve_Subdomain_OtherTenantViewer_Redirected(t *testing.T) {
	ts := &mockTenantStore{}
	tn := alice()
	tn.CustomDomain = "alice.blog"
	ts.On("GetByUsername", mock.Anything, "alice").Return(tn, nil)
	svc := NewService(ts, canonical)

	res, err := svc.Resolve(context.Background(), "alice.plumehost.app", "/", "t-bob")

	require.NoError(t, err)
	assert.Equal(t, KindRedirect, res.Kind)
}

func TestResolve_CustomDomain_TenantContext(t *testing.T) {
	ts := &mockTenantStore{}
	tn := &domain.Tenant{TenantID: "t-bob", Username: "bob", CustomDomain: "bob.example", Theme: "light"}
	ts.On("GetByCustomDomain", mock.Anything, "bob.example").Return(tn, nil)
	svc := NewService(ts, canonical)

	res, err := svc.Resolve(context.Background(), "bob.example", "/", "")

	require.NoError(t, err)
	assert.Equal(t, KindTenant, res.Kind)
	assert.Equal(t, "bob", res.Tenant.Username)
}

func TestResolve_CustomDomain_RetiredAlwaysRedirects_EvenForOwner(t *testing.T) {
	ts := &mockTenantStore{}
	tn := &domain.Tenant{TenantID: "t-bob", Username: "bob", CustomDomain: "bob.example", RedirectDomain: "new.example"}
	ts.On("GetByCustomDomain", mock.Anything, "bob.example").Return(tn, nil)
	svc := NewService(ts, canonical)

	res, err := svc.Resolve(context.Background(), "bob.example", "/blog/hello", "t-bob")

	require.NoError(t, err)
	assert.Equal(t, KindRedirect, res.Kind)
	assert.Equal(t, "//new.example/hello", res.RedirectURL)
}

func TestResolve_UnmatchedHost(t *testing.T) {
	ts := &mockTenantStore{}
	ts.On("GetByCustomDomain", mock.Anything, "nobody.example").Return(nil, domain.ErrNotFound)
	svc := NewService(ts, canonical)

	_, err := svc.Resolve(context.Background(), "nobody.example", "/", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestResolve_DeepSubdomain_IsNotTenantShape(t *testing.T) {
	ts := &mockTenantStore{}
	ts.On("GetByCustomDomain", mock.Anything, "a.b.plumehost.app").Return(nil, domain.ErrNotFound)
	svc := NewService(ts, canonical)

	_, err := svc.Resolve(context.Background(), "a.b.plumehost.app", "/", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	ts.AssertNotCalled(t, "GetByUsername", mock.Anything, mock.Anything)
}

func TestEnsureScheme(t *testing.T) {
	assert.Equal(t, "//example.com/x", ensureScheme("example.com/x"))
	assert.Equal(t, "https://example.com", ensureScheme("https://example.com"))
	assert.Equal(t, "//example.com", ensureScheme("//example.com"))
}
