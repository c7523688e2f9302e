package account

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/plumehost/platform/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTenantStore struct{ mock.Mock }

func (m *mockTenantStore) Put(ctx context.Context, t *domain.Tenant) error {
	return m.Called(ctx, t).Error(0)
}

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

func (m *mockTenantStore) GetByEmail(ctx context.Context, email string) (*domain.Tenant, error) {
	args := m.Called(ctx, email)
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

func (m *mockTenantStore) Update(ctx context.Context, tenantID string, updates map[string]interface{}) error {
	return m.Called(ctx, tenantID, updates).Error(0)
}

func (m *mockTenantStore) ClearDomain(ctx context.Context, tenantID string) error {
	return m.Called(ctx, tenantID).Error(0)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) Sign(tenantID, username string) (string, error) {
	args := m.Called(tenantID, username)
	return args.String(0), args.Error(1)
}

func newService(store *mockTenantStore, signer *mockSigner) Service {
	return NewService(ServiceDeps{Tenants: store, Signer: signer})
}

func TestRegister_CreatesTenantWithDefaults(t *testing.T) {
	store, signer := &mockTenantStore{}, &mockSigner{}
	svc := newService(store, signer)
	store.On("GetByUsername", mock.Anything, "alice").Return(nil, domain.ErrNotFound)
	store.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, domain.ErrNotFound)
	store.On("Put", mock.Anything, mock.Anything).Return(nil)

	tenant, err := svc.Register(context.Background(), &domain.RegisterTenantRequest{
		Username: " Alice ", Email: "Alice@Example.com", Password: "hunter2hunter2", DisplayName: "Alice Writes",
	})

	require.NoError(t, err)
	assert.Equal(t, "alice", tenant.Username)
	assert.Equal(t, "alice@example.com", tenant.Email)
	assert.Equal(t, "Alice Writes", tenant.DisplayName)
	assert.True(t, tenant.NotifyEnabled)
	assert.Equal(t, 1, tenant.Enable)
	assert.NotEmpty(t, tenant.TenantID)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(tenant.PasswordHash), []byte("hunter2hunter2")))
}

func TestRegister_RejectsBadAndReservedUsernames(t *testing.T) {
	store, signer := &mockTenantStore{}, &mockSigner{}
	svc := newService(store, signer)

	for _, username := range []string{"has space", "-leading", "trailing-", "sub.dot", "www", "api"} {
		_, err := svc.Register(context.Background(), &domain.RegisterTenantRequest{
			Username: username, Email: "a@example.com", Password: "hunter2hunter2",
		})
		require.Error(t, err, username)
		assert.True(t, errors.Is(err, domain.ErrBadRequest), username)
	}
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestRegister_TakenUsername_Conflicts(t *testing.T) {
	store, signer := &mockTenantStore{}, &mockSigner{}
	svc := newService(store, signer)
	store.On("GetByUsername", mock.Anything, "alice").Return(&domain.Tenant{TenantID: "t-1"}, nil)

	_, err := svc.Register(context.Background(), &domain.RegisterTenantRequest{
		Username: "alice", Email: "new@example.com", Password: "hunter2hunter2",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestLogin_ValidCredentials_ReturnsToken(t *testing.T) {
	store, signer := &mockTenantStore{}, &mockSigner{}
	svc := newService(store, signer)
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	store.On("GetByUsername", mock.Anything, "alice").Return(&domain.Tenant{
		TenantID: "t-1", Username: "alice", PasswordHash: string(hash), Enable: 1,
	}, nil)
	signer.On("Sign", "t-1", "alice").Return("signed.jwt", nil)

	token, tenant, err := svc.Login(context.Background(), &domain.LoginRequest{Username: "Alice", Password: "hunter2hunter2"})

	require.NoError(t, err)
	assert.Equal(t, "signed.jwt", token)
	assert.Equal(t, "t-1", tenant.TenantID)
}

func TestLogin_WrongPasswordAndUnknownUser_SameError(t *testing.T) {
	store, signer := &mockTenantStore{}, &mockSigner{}
	svc := newService(store, signer)
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	store.On("GetByUsername", mock.Anything, "alice").Return(&domain.Tenant{
		TenantID: "t-1", Username: "alice", PasswordHash: string(hash), Enable: 1,
	}, nil)
	store.On("GetByUsername", mock.Anything, "nobody").Return(nil, domain.ErrNotFound)

	_, _, errWrong := svc.Login(context.Background(), &domain.LoginRequest{Username: "alice", Password: "wrong"})
	_, _, errUnknown := svc.Login(context.Background(), &domain.LoginRequest{Username: "nobody", Password: "wrong"})

	assert.True(t, errors.Is(errWrong, domain.ErrUnauthorized))
	assert.True(t, errors.Is(errUnknown, domain.ErrUnauthorized))
	signer.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything)
}

func TestLogin_DisabledAccount_Forbidden(t *testing.T) {
	store, signer := &mockTenantStore{}, &mockSigner{}
	svc := newService(store, signer)
	store.On("GetByUsername", mock.Anything, "alice").Return(&domain.Tenant{TenantID: "t-1", Enable: 0}, nil)

	_, _, err := svc.Login(context.Background(), &domain.LoginRequest{Username: "alice", Password: "x"})

	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func strPtr(s string) *string { return &s }

func TestUpdateSettings_ClaimsAvailableDomain(t *testing.T) {
	store, signer := &mockTenantStore{}, &mockSigner{}
	svc := newService(store, signer)
	store.On("Get", mock.Anything, "t-1").Return(&domain.Tenant{TenantID: "t-1", Username: "alice"}, nil)
	store.On("GetByCustomDomain", mock.Anything, "alice.blog").Return(nil, domain.ErrNotFound)
	store.On("Update", mock.Anything, "t-1", map[string]interface{}{"custom_domain": "alice.blog"}).Return(nil)

	_, err := svc.UpdateSettings(context.Background(), "t-1", &domain.UpdateTenantSettingsRequest{
		CustomDomain: strPtr("Alice.Blog."),
	})

	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestUpdateSettings_DomainOwnedByOtherTenant_Conflicts(t *testing.T) {
	store, signer := &mockTenantStore{}, &mockSigner{}
	svc := newService(store, signer)
	store.On("Get", mock.Anything, "t-1").Return(&domain.Tenant{TenantID: "t-1"}, nil)
	store.On("GetByCustomDomain", mock.Anything, "taken.blog").Return(&domain.Tenant{TenantID: "t-2"}, nil)

	_, err := svc.UpdateSettings(context.Background(), "t-1", &domain.UpdateTenantSettingsRequest{
		CustomDomain: strPtr("taken.blog"),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateSettings_EmptyDomain_ReleasesIt(t *testing.T) {
	store, signer := &mockTenantStore{}, &mockSigner{}
	svc := newService(store, signer)
	store.On("Get", mock.Anything, "t-1").Return(&domain.Tenant{TenantID: "t-1", CustomDomain: "alice.blog"}, nil)
	store.On("ClearDomain", mock.Anything, "t-1").Return(nil)

	_, err := svc.UpdateSettings(context.Background(), "t-1", &domain.UpdateTenantSettingsRequest{
		CustomDomain: strPtr(""),
	})

	require.NoError(t, err)
	store.AssertCalled(t, "ClearDomain", mock.Anything, "t-1")
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateSettings_PartialUpdate_OnlyProvidedFields(t *testing.T) {
	store, signer := &mockTenantStore{}, &mockSigner{}
	svc := newService(store, signer)
	store.On("Get", mock.Anything, "t-1").Return(&domain.Tenant{TenantID: "t-1", Theme: "default"}, nil)
	store.On("Update", mock.Anything, "t-1", map[string]interface{}{
		"theme": "dark", "notify_enabled": false,
	}).Return(nil)

	_, err := svc.UpdateSettings(context.Background(), "t-1", &domain.UpdateTenantSettingsRequest{
		Theme:         strPtr("dark"),
		NotifyEnabled: func() *bool { b := false; return &b }(),
	})

	require.NoError(t, err)
	store.AssertExpectations(t)
}
