package http

import (
	"github.com/plumehost/platform/internal/infrastructure/dynamo"
	jwtinfra "github.com/plumehost/platform/internal/infrastructure/jwt"
	"github.com/plumehost/platform/internal/infrastructure/smtp"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	TenantRepo     *dynamo.TenantRepo
	SubscriberRepo *dynamo.SubscriberRepo
	PostRepo       *dynamo.PostRepo
	DeliveryRepo   *dynamo.DeliveryRepo
	Mailer         smtp.Mailer
	JWTProvider    *jwtinfra.Provider
}
