package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/plumehost/platform/internal/domain"
)

// SubscriberRepo provides typed DynamoDB operations for the subscribers table.
type SubscriberRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewSubscriberRepo(client *dynamodb.Client, tableName string) *SubscriberRepo {
	return &SubscriberRepo{client: client, tableName: tableName}
}

// CreateIfAbsent inserts a subscriber record unless one with the same
// subscriber_id already exists. Subscriber IDs are derived from the
// (tenant, email) pair, so concurrent subscribes for the same address collapse
// onto one conditional put; the loser gets the winner's record back.
func (r *SubscriberRepo) CreateIfAbsent(ctx context.Context, s *domain.Subscriber) (*domain.Subscriber, bool, error) {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return nil, false, fmt.Errorf("marshal subscriber: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(subscriber_id)"),
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if !errors.As(err, &ccfe) {
			return nil, false, err
		}
		existing, getErr := r.Get(ctx, s.SubscriberID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	return s, true, nil
}

func (r *SubscriberRepo) Get(ctx context.Context, subscriberID string) (*domain.Subscriber, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("subscriber_id", subscriberID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("subscriber not found: %w", domain.ErrNotFound)
	}
	var s domain.Subscriber
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByToken looks up a subscriber by its opaque unsubscribe token via GSI.
func (r *SubscriberRepo) GetByToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("token-index"),
		KeyConditionExpression: aws.String("#t = :t"),
		ExpressionAttributeNames: map[string]string{"#t": "token"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberS{Value: token},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("subscriber not found: %w", domain.ErrNotFound)
	}
	var s domain.Subscriber
	if err := attributevalue.UnmarshalMap(out.Items[0], &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListActiveByTenant returns every active subscriber of a tenant. Follows
// pagination internally so broadcast runs see the complete set.
func (r *SubscriberRepo) ListActiveByTenant(ctx context.Context, tenantID string) ([]domain.Subscriber, error) {
	var subs []domain.Subscriber
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("tenant_id-index"),
			KeyConditionExpression: aws.String("tenant_id = :tid"),
			FilterExpression:       aws.String("active = :t"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":tid": &types.AttributeValueMemberS{Value: tenantID},
				":t":   &types.AttributeValueMemberBOOL{Value: true},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		var page []domain.Subscriber
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		subs = append(subs, page...)
		if out.LastEvaluatedKey == nil {
			return subs, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (r *SubscriberRepo) Update(ctx context.Context, subscriberID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("subscriber_id", subscriberID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// Delete removes a subscriber record entirely (the unsubscribe "key" variant).
func (r *SubscriberRepo) Delete(ctx context.Context, subscriberID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("subscriber_id", subscriberID),
	})
	return err
}
