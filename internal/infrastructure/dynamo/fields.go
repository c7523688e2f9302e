package dynamo

// DynamoDB attribute names referenced in conditional and update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldSentAt       = "sent_at"
	fieldCanceled     = "canceled"
	fieldBroadcastAt  = "broadcast_at"
	fieldCustomDomain = "custom_domain"
)
