package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/plumehost/platform/internal/domain"
)

// TenantRepo provides typed DynamoDB operations for the tenants table.
type TenantRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTenantRepo(client *dynamodb.Client, tableName string) *TenantRepo {
	return &TenantRepo{client: client, tableName: tableName}
}

func (r *TenantRepo) Put(ctx context.Context, t *domain.Tenant) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal tenant: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *TenantRepo) Get(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("tenant_id", tenantID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("tenant not found: %w", domain.ErrNotFound)
	}
	var t domain.Tenant
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TenantRepo) GetByUsername(ctx context.Context, username string) (*domain.Tenant, error) {
	return r.queryGSI(ctx, "username-index", "username", username)
}

func (r *TenantRepo) GetByEmail(ctx context.Context, email string) (*domain.Tenant, error) {
	return r.queryGSI(ctx, "email-index", "email", email)
}

// GetByCustomDomain resolves a tenant by its registered custom domain. The
// index is sparse: tenants without a custom domain are never matched.
func (r *TenantRepo) GetByCustomDomain(ctx context.Context, host string) (*domain.Tenant, error) {
	return r.queryGSI(ctx, "custom_domain-index", "custom_domain", host)
}

func (r *TenantRepo) Update(ctx context.Context, tenantID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("tenant_id", tenantID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// ClearDomain removes the custom_domain attribute so the sparse GSI drops the
// tenant. A plain SET with an empty string would leave a stale index entry.
func (r *TenantRepo) ClearDomain(ctx context.Context, tenantID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("tenant_id", tenantID),
		UpdateExpression:         aws.String("REMOVE #d"),
		ExpressionAttributeNames: map[string]string{"#d": fieldCustomDomain},
	})
	return err
}

func (r *TenantRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.Tenant, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("tenant not found: %w", domain.ErrNotFound)
	}
	var t domain.Tenant
	if err := attributevalue.UnmarshalMap(out.Items[0], &t); err != nil {
		return nil, err
	}
	return &t, nil
}
