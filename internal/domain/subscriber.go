package domain

import "time"

// Subscriber is one email address registered for new-post notifications on one
// blog. Unsubscribing flips Active to false rather than deleting the record so
// delivery history and idempotence checks stay correct; re-subscribing the same
// (tenant, email) pair reactivates the existing record.
type Subscriber struct {
	SubscriberID string    `json:"id" dynamodbav:"subscriber_id"`
	TenantID     string    `json:"tenant_id" dynamodbav:"tenant_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	Token        string    `json:"-" dynamodbav:"token"`
	Active       bool      `json:"active" dynamodbav:"active"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

type SubscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}
