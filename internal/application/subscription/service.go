package subscription

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/plumehost/platform/internal/domain"
	"github.com/plumehost/platform/internal/pkg/token"
)

// Service manages a blog's reader subscriptions. Subscribe is invoked from the
// public blog surface, the unsubscribe operations from links embedded in
// notification emails.
type Service interface {
	Subscribe(ctx context.Context, tenantID string, req *domain.SubscribeRequest) (*domain.Subscriber, error)
	Unsubscribe(ctx context.Context, tok string) error
	UnsubscribeKey(ctx context.Context, tok string) error
	ListActive(ctx context.Context, tenantID string) ([]domain.Subscriber, error)
}

type subscriberStore interface {
	CreateIfAbsent(ctx context.Context, s *domain.Subscriber) (*domain.Subscriber, bool, error)
	GetByToken(ctx context.Context, tok string) (*domain.Subscriber, error)
	ListActiveByTenant(ctx context.Context, tenantID string) ([]domain.Subscriber, error)
	Update(ctx context.Context, subscriberID string, fields map[string]any) error
	Delete(ctx context.Context, subscriberID string) error
}

type service struct {
	subscribers subscriberStore
}

func NewService(subscribers subscriberStore) Service {
	return &service{subscribers: subscribers}
}

// subscriberID derives a stable identifier from the (tenant, email) pair.
// Concurrent subscribes for the same address compute the same key and collapse
// onto a single conditional put, so a blog can never hold two records for one
// email.
func subscriberID(tenantID, email string) string {
	sum := sha256.Sum256([]byte(tenantID + "#" + email))
	return hex.EncodeToString(sum[:])
}

// Subscribe registers an email address with a blog. Re-subscribing an address
// that already exists reactivates the existing record and keeps its token, so
// previously mailed unsubscribe links stay valid.
func (s *service) Subscribe(ctx context.Context, tenantID string, req *domain.SubscribeRequest) (*domain.Subscriber, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	tok, err := token.New()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sub := &domain.Subscriber{
		SubscriberID: subscriberID(tenantID, email),
		TenantID:     tenantID,
		Email:        email,
		Token:        tok,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	existing, created, err := s.subscribers.CreateIfAbsent(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	if created {
		slog.Info("subscriber created", "tenant_id", tenantID, "subscriber_id", sub.SubscriberID)
		return existing, nil
	}
	if existing.Active {
		return existing, nil
	}
	if err := s.subscribers.Update(ctx, existing.SubscriberID, map[string]any{"active": true}); err != nil {
		return nil, fmt.Errorf("reactivate subscriber: %w", err)
	}
	existing.Active = true
	slog.Info("subscriber reactivated", "tenant_id", tenantID, "subscriber_id", existing.SubscriberID)
	return existing, nil
}

// Unsubscribe deactivates the subscriber owning tok. Calling it again for the
// same token is a no-op with the same outcome.
func (s *service) Unsubscribe(ctx context.Context, tok string) error {
	sub, err := s.subscribers.GetByToken(ctx, tok)
	if err != nil {
		return err
	}
	if !sub.Active {
		return nil
	}
	return s.subscribers.Update(ctx, sub.SubscriberID, map[string]any{"active": false})
}

// UnsubscribeKey deletes the subscriber record entirely. It backs the
// List-Unsubscribe one-click endpoint, where the reader expects removal
// rather than deactivation.
func (s *service) UnsubscribeKey(ctx context.Context, tok string) error {
	sub, err := s.subscribers.GetByToken(ctx, tok)
	if err != nil {
		return err
	}
	return s.subscribers.Delete(ctx, sub.SubscriberID)
}

func (s *service) ListActive(ctx context.Context, tenantID string) ([]domain.Subscriber, error) {
	return s.subscribers.ListActiveByTenant(ctx, tenantID)
}
