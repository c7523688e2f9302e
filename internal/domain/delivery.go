package domain

import "time"

// Delivery is the persisted obligation to notify one subscriber about one
// post. The (PostID, SubscriberID) pair is the table's composite primary key,
// so at most one record can ever exist per pair.
//
// Lifecycle: created pending by the scheduler; SentAt is set exactly once by
// the sender on confirmed dispatch; Canceled is set only by an owner action
// while still pending. Sent and canceled are terminal.
type Delivery struct {
	PostID       string     `json:"post_id" dynamodbav:"post_id"`
	SubscriberID string     `json:"subscriber_id" dynamodbav:"subscriber_id"`
	TenantID     string     `json:"tenant_id" dynamodbav:"tenant_id"`
	SentAt       *time.Time `json:"sent_at,omitempty" dynamodbav:"sent_at,omitempty"`
	Canceled     bool       `json:"canceled" dynamodbav:"canceled"`
	CreatedAt    time.Time  `json:"created" dynamodbav:"created_at"`
}

// Pending reports whether the record is still eligible for dispatch.
func (d *Delivery) Pending() bool {
	return d.SentAt == nil && !d.Canceled
}
