package domain

import "time"

// Tenant is a blog owner. The username doubles as the blog's subdomain label
// under the canonical host (e.g. alice.plumehost.app).
type Tenant struct {
	TenantID       string    `json:"id" dynamodbav:"tenant_id"`
	Username       string    `json:"username" dynamodbav:"username"`
	Email          string    `json:"email" dynamodbav:"email"`
	PasswordHash   string    `json:"-" dynamodbav:"password_hash"`
	DisplayName    string    `json:"display_name" dynamodbav:"display_name"`
	CustomDomain   string    `json:"custom_domain,omitempty" dynamodbav:"custom_domain,omitempty"`
	RedirectDomain string    `json:"redirect_domain,omitempty" dynamodbav:"redirect_domain,omitempty"`
	ReplyTo        string    `json:"reply_to,omitempty" dynamodbav:"reply_to,omitempty"`
	Theme          string    `json:"theme" dynamodbav:"theme"`
	NotifyEnabled  bool      `json:"notify_enabled" dynamodbav:"notify_enabled"`
	Enable         int       `json:"enable" dynamodbav:"enable"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}

// SenderName is the display identity used on outbound notification mail.
func (t *Tenant) SenderName() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Username
}

type RegisterTenantRequest struct {
	Username    string `json:"username" validate:"required,min=2,max=40"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateTenantSettingsRequest struct {
	DisplayName    *string `json:"display_name"`
	CustomDomain   *string `json:"custom_domain" validate:"omitempty,fqdn"`
	RedirectDomain *string `json:"redirect_domain" validate:"omitempty,fqdn"`
	ReplyTo        *string `json:"reply_to" validate:"omitempty,email"`
	Theme          *string `json:"theme"`
	NotifyEnabled  *bool   `json:"notify_enabled"`
}
