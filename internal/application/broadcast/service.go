package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plumehost/platform/internal/domain"
	"github.com/plumehost/platform/internal/infrastructure/smtp"
)

// Service runs the notification pipeline: Enqueue materializes pending
// delivery records for a trigger date, Process dispatches them. Both are
// idempotent batch operations designed to be invoked repeatedly (and
// concurrently) by an external scheduler; every state transition happens
// through a conditional write in the delivery store, so overlap cannot
// double-create or double-send.
type Service interface {
	Enqueue(ctx context.Context, date string) (*EnqueueReport, error)
	Process(ctx context.Context, date string, dryRun bool) (*ProcessReport, error)
	Cancel(ctx context.Context, tenantID, postID, subscriberID string) error
	ListPending(ctx context.Context, tenantID string) ([]domain.Delivery, error)
}

type postStore interface {
	Get(ctx context.Context, postID string) (*domain.Post, error)
	ListByPublishDate(ctx context.Context, date string) ([]domain.Post, error)
	MarkBroadcast(ctx context.Context, postID string, at time.Time) error
}

type tenantStore interface {
	Get(ctx context.Context, tenantID string) (*domain.Tenant, error)
}

type subscriberStore interface {
	ListActiveByTenant(ctx context.Context, tenantID string) ([]domain.Subscriber, error)
}

type deliveryStore interface {
	CreateIfAbsent(ctx context.Context, d *domain.Delivery) (*domain.Delivery, bool, error)
	MarkSent(ctx context.Context, postID, subscriberID string, at time.Time) error
	Cancel(ctx context.Context, postID, subscriberID string) error
	Get(ctx context.Context, postID, subscriberID string) (*domain.Delivery, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.Delivery, error)
	Delete(ctx context.Context, postID, subscriberID string) error
}

// EnqueueReport tallies one Enqueue run.
type EnqueueReport struct {
	Date         string `json:"date"`
	Posts        int    `json:"posts"`
	Created      int    `json:"created"`
	Existing     int    `json:"existing"`
	SkippedPosts int    `json:"skipped_posts"`
	Errors       int    `json:"errors"`
}

// PostReport tallies one post within a Process run.
type PostReport struct {
	PostID     string `json:"post_id"`
	Title      string `json:"title"`
	Considered int    `json:"considered"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Completed  bool   `json:"completed"`
}

// ProcessReport tallies one Process run.
type ProcessReport struct {
	Date   string       `json:"date"`
	DryRun bool         `json:"dry_run"`
	Posts  []PostReport `json:"posts"`
	Sent   int          `json:"sent"`
	Failed int          `json:"failed"`
}

// Summary renders a one-paragraph run report for operator alerts.
func (r *ProcessReport) Summary() string {
	mode := "live"
	if r.DryRun {
		mode = "dry-run"
	}
	return fmt.Sprintf("broadcast %s for %s: %d post(s), %d sent, %d failed",
		mode, r.Date, len(r.Posts), r.Sent, r.Failed)
}

type ServiceDeps struct {
	Posts         postStore
	Tenants       tenantStore
	Subscribers   subscriberStore
	Deliveries    deliveryStore
	Mailer        smtp.Mailer
	CanonicalHost string
	Scheme        string
}

type service struct {
	posts         postStore
	tenants       tenantStore
	subscribers   subscriberStore
	deliveries    deliveryStore
	mailer        smtp.Mailer
	canonicalHost string
	scheme        string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		posts:         deps.Posts,
		tenants:       deps.Tenants,
		subscribers:   deps.Subscribers,
		deliveries:    deps.Deliveries,
		mailer:        deps.Mailer,
		canonicalHost: deps.CanonicalHost,
		scheme:        deps.Scheme,
	}
}

// Enqueue creates a pending delivery record for every (active subscriber,
// post published on date) pair that does not already have one. Creation is
// conditioned on existence, never on a counter, so any number of runs for the
// same date converge on the same record set. Item failures are logged and do
// not stop the run.
func (s *service) Enqueue(ctx context.Context, date string) (*EnqueueReport, error) {
	if _, err := time.Parse(domain.PublishDateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid trigger date %q: %w", date, domain.ErrBadRequest)
	}
	posts, err := s.posts.ListByPublishDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list posts for %s: %w", date, err)
	}

	report := &EnqueueReport{Date: date, Posts: len(posts)}
	for i := range posts {
		post := &posts[i]
		tenant, err := s.tenants.Get(ctx, post.TenantID)
		if err != nil {
			slog.Error("enqueue: tenant lookup failed", "post_id", post.PostID, "tenant_id", post.TenantID, "err", err)
			report.Errors++
			continue
		}
		if !tenant.NotifyEnabled {
			slog.Info("enqueue: notifications disabled, skipping post", "post_id", post.PostID, "tenant", tenant.Username)
			report.SkippedPosts++
			continue
		}
		subs, err := s.subscribers.ListActiveByTenant(ctx, tenant.TenantID)
		if err != nil {
			slog.Error("enqueue: subscriber listing failed", "post_id", post.PostID, "tenant", tenant.Username, "err", err)
			report.Errors++
			continue
		}
		for i := range subs {
			sub := &subs[i]
			_, created, err := s.deliveries.CreateIfAbsent(ctx, &domain.Delivery{
				PostID:       post.PostID,
				SubscriberID: sub.SubscriberID,
				TenantID:     tenant.TenantID,
				CreatedAt:    time.Now().UTC(),
			})
			if err != nil {
				slog.Error("enqueue: record creation failed", "post_id", post.PostID, "subscriber_id", sub.SubscriberID, "err", err)
				report.Errors++
				continue
			}
			if created {
				report.Created++
			} else {
				report.Existing++
			}
		}
	}
	return report, nil
}

// Process attempts dispatch for every pending delivery of every post published
// on date. With dryRun (the default at every call surface) it only logs what
// would be sent: no record is mutated and the mail transport is never touched.
//
// A record is dispatched at most once: the conditional MarkSent happens after
// a successful transport call, and records already sent or canceled are
// skipped up front. Transport failures leave the record pending for the next
// scheduled run; they never abort sibling deliveries.
func (s *service) Process(ctx context.Context, date string, dryRun bool) (*ProcessReport, error) {
	if _, err := time.Parse(domain.PublishDateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid trigger date %q: %w", date, domain.ErrBadRequest)
	}
	posts, err := s.posts.ListByPublishDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list posts for %s: %w", date, err)
	}

	report := &ProcessReport{Date: date, DryRun: dryRun}
	for i := range posts {
		post := &posts[i]
		if post.BroadcastAt != nil {
			continue
		}
		tenant, err := s.tenants.Get(ctx, post.TenantID)
		if err != nil {
			slog.Error("process: tenant lookup failed", "post_id", post.PostID, "tenant_id", post.TenantID, "err", err)
			continue
		}
		if !tenant.NotifyEnabled {
			continue
		}
		pr := s.processPost(ctx, tenant, post, dryRun)
		report.Sent += pr.Sent
		report.Failed += pr.Failed
		report.Posts = append(report.Posts, pr)
	}
	return report, nil
}

func (s *service) processPost(ctx context.Context, tenant *domain.Tenant, post *domain.Post, dryRun bool) PostReport {
	pr := PostReport{PostID: post.PostID, Title: post.Title}

	subs, err := s.subscribers.ListActiveByTenant(ctx, tenant.TenantID)
	if err != nil {
		slog.Error("process: subscriber listing failed", "post_id", post.PostID, "tenant", tenant.Username, "err", err)
		pr.Failed++
		return pr
	}
	pr.Considered = len(subs)

	noFailures := true
	for i := range subs {
		sub := &subs[i]
		rec, _, err := s.deliveries.CreateIfAbsent(ctx, &domain.Delivery{
			PostID:       post.PostID,
			SubscriberID: sub.SubscriberID,
			TenantID:     tenant.TenantID,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			slog.Error("process: record lookup failed", "post_id", post.PostID, "subscriber_id", sub.SubscriberID, "err", err)
			noFailures = false
			pr.Failed++
			continue
		}
		if rec.SentAt != nil {
			slog.Info("process: already sent", "post_id", post.PostID, "subscriber_id", sub.SubscriberID, "sent_at", rec.SentAt.Format(time.RFC3339))
			pr.Skipped++
			continue
		}
		if rec.Canceled {
			pr.Skipped++
			continue
		}
		if dryRun {
			slog.Info("process: would send", "post_id", post.PostID, "to", sub.Email, "subject", post.Title)
			pr.Skipped++
			continue
		}

		if err := s.mailer.Send(s.composeMessage(tenant, post, sub)); err != nil {
			slog.Error("process: dispatch failed", "post_id", post.PostID, "subscriber_id", sub.SubscriberID, "err", err)
			noFailures = false
			pr.Failed++
			continue
		}
		if err := s.deliveries.MarkSent(ctx, post.PostID, sub.SubscriberID, time.Now().UTC()); err != nil {
			// Another actor won the transition between dispatch and the
			// conditional update; the terminal state belongs to the winner,
			// so the record is not ours to tally as sent.
			if errors.Is(err, domain.ErrConflict) {
				slog.Info("process: record transitioned concurrently", "post_id", post.PostID, "subscriber_id", sub.SubscriberID)
				pr.Skipped++
				continue
			}
			slog.Error("process: mark sent failed", "post_id", post.PostID, "subscriber_id", sub.SubscriberID, "err", err)
			noFailures = false
			pr.Failed++
			continue
		}
		pr.Sent++
	}

	if !dryRun && noFailures {
		if err := s.posts.MarkBroadcast(ctx, post.PostID, time.Now().UTC()); err != nil {
			slog.Error("process: mark broadcast failed", "post_id", post.PostID, "err", err)
		} else {
			pr.Completed = true
		}
	}
	return pr
}

// composeMessage builds the notification email for one subscriber. The post
// URL and unsubscribe URL point at the blog's public address: the custom
// domain when registered, the subdomain otherwise.
func (s *service) composeMessage(tenant *domain.Tenant, post *domain.Post, sub *domain.Subscriber) smtp.Message {
	base := s.blogBaseURL(tenant)
	postURL := base + "/" + post.Slug
	unsubURL := base + "/unsubscribe?token=" + sub.Token

	body := fmt.Sprintf("%s\n\n%s\n\nRead online: %s\n\n--\nUnsubscribe: %s\n",
		post.Title, post.Body, postURL, unsubURL)

	return smtp.Message{
		To:             sub.Email,
		FromName:       tenant.SenderName(),
		ReplyTo:        tenant.ReplyTo,
		Subject:        post.Title,
		Body:           body,
		UnsubscribeURL: unsubURL,
	}
}

func (s *service) blogBaseURL(tenant *domain.Tenant) string {
	host := tenant.Username + "." + s.canonicalHost
	if tenant.CustomDomain != "" {
		host = tenant.CustomDomain
	}
	return s.scheme + "://" + host
}

// Cancel marks a pending delivery canceled on behalf of its owning tenant.
// Canceled is terminal: the sender skips the record forever after. A record
// whose post has been deleted is purged instead.
func (s *service) Cancel(ctx context.Context, tenantID, postID, subscriberID string) error {
	rec, err := s.deliveries.Get(ctx, postID, subscriberID)
	if err != nil {
		return err
	}
	if rec.TenantID != tenantID {
		return fmt.Errorf("delivery belongs to another tenant: %w", domain.ErrForbidden)
	}
	if _, err := s.posts.Get(ctx, postID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if delErr := s.deliveries.Delete(ctx, postID, subscriberID); delErr != nil {
				slog.Warn("cancel: orphan purge failed", "post_id", postID, "subscriber_id", subscriberID, "err", delErr)
			}
			return fmt.Errorf("post no longer exists: %w", domain.ErrNotFound)
		}
		return err
	}
	if rec.SentAt != nil {
		return fmt.Errorf("notification was already sent at %s: %w", rec.SentAt.Format(time.RFC3339), domain.ErrAlreadySent)
	}
	// The store re-checks the pending state atomically; a send racing past the
	// read above still cannot be canceled.
	return s.deliveries.Cancel(ctx, postID, subscriberID)
}

// ListPending returns a tenant's not-yet-sent, not-canceled delivery records.
// Records whose post has been deleted are purged as they are encountered.
func (s *service) ListPending(ctx context.Context, tenantID string) ([]domain.Delivery, error) {
	recs, err := s.deliveries.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	pending := make([]domain.Delivery, 0, len(recs))
	known := make(map[string]bool)
	for _, rec := range recs {
		if !rec.Pending() {
			continue
		}
		exists, seen := known[rec.PostID]
		if !seen {
			_, err := s.posts.Get(ctx, rec.PostID)
			exists = err == nil
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			known[rec.PostID] = exists
		}
		if !exists {
			if err := s.deliveries.Delete(ctx, rec.PostID, rec.SubscriberID); err != nil {
				slog.Warn("list: orphan purge failed", "post_id", rec.PostID, "subscriber_id", rec.SubscriberID, "err", err)
			}
			continue
		}
		pending = append(pending, rec)
	}
	return pending, nil
}
