package domain

import "time"

// PublishDateLayout is the calendar-date format used to select posts for a
// broadcast run.
const PublishDateLayout = "2006-01-02"

// Post is a blog entry. Content authoring lives outside this service; the
// broadcast pipeline only reads posts and stamps BroadcastAt once a full
// notification run for the post finishes without failures.
type Post struct {
	PostID      string     `json:"id" dynamodbav:"post_id"`
	TenantID    string     `json:"tenant_id" dynamodbav:"tenant_id"`
	Title       string     `json:"title" dynamodbav:"title"`
	Slug        string     `json:"slug" dynamodbav:"slug"`
	Body        string     `json:"body" dynamodbav:"body"`
	PublishedOn string     `json:"published_on,omitempty" dynamodbav:"published_on,omitempty"` // YYYY-MM-DD, empty = draft
	BroadcastAt *time.Time `json:"broadcast_at,omitempty" dynamodbav:"broadcast_at,omitempty"`
	CreatedAt   time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time  `json:"updated" dynamodbav:"updated_at"`
}
