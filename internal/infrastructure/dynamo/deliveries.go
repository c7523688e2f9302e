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

// DeliveryRepo provides typed DynamoDB operations for the deliveries table.
//
// All state transitions are conditional writes. The composite primary key
// (post_id, subscriber_id) plus attribute_not_exists puts give the at-most-one
// record invariant; conditional updates on sent_at/canceled give the
// terminal-state invariant. Both hold under concurrent scheduler, sender, and
// cancellation runs without any application-level locking.
type DeliveryRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewDeliveryRepo(client *dynamodb.Client, tableName string) *DeliveryRepo {
	return &DeliveryRepo{client: client, tableName: tableName}
}

// CreateIfAbsent inserts a pending delivery record unless one already exists
// for the (post, subscriber) pair. Returns the record that is now persisted
// and whether this call created it. A lost race is not an error: the existing
// record is fetched and returned.
func (r *DeliveryRepo) CreateIfAbsent(ctx context.Context, d *domain.Delivery) (*domain.Delivery, bool, error) {
	item, err := attributevalue.MarshalMap(d)
	if err != nil {
		return nil, false, fmt.Errorf("marshal delivery: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(post_id)"),
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if !errors.As(err, &ccfe) {
			return nil, false, err
		}
		existing, getErr := r.Get(ctx, d.PostID, d.SubscriberID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	return d, true, nil
}

func (r *DeliveryRepo) Get(ctx context.Context, postID, subscriberID string) (*domain.Delivery, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("post_id", postID, "subscriber_id", subscriberID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("delivery not found: %w", domain.ErrNotFound)
	}
	var d domain.Delivery
	if err := attributevalue.UnmarshalMap(out.Item, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// MarkSent transitions a pending record to sent. The update only succeeds if
// the record has not been sent or canceled in the meantime; a lost race
// surfaces as ErrConflict and the caller must not dispatch again.
func (r *DeliveryRepo) MarkSent(ctx context.Context, postID, subscriberID string, at time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("post_id", postID, "subscriber_id", subscriberID),
		UpdateExpression:    aws.String("SET #s = :t"),
		ConditionExpression: aws.String("attribute_exists(post_id) AND attribute_not_exists(#s) AND #c = :f"),
		ExpressionAttributeNames: map[string]string{
			"#s": fieldSentAt,
			"#c": fieldCanceled,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339)},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return fmt.Errorf("delivery no longer pending: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

// Cancel transitions a pending record to canceled. Fails with ErrAlreadySent
// when the obligation already completed, leaving the record untouched.
func (r *DeliveryRepo) Cancel(ctx context.Context, postID, subscriberID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("post_id", postID, "subscriber_id", subscriberID),
		UpdateExpression:    aws.String("SET #c = :t"),
		ConditionExpression: aws.String("attribute_exists(post_id) AND attribute_not_exists(#s)"),
		ExpressionAttributeNames: map[string]string{
			"#s": fieldSentAt,
			"#c": fieldCanceled,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return fmt.Errorf("delivery already sent: %w", domain.ErrAlreadySent)
		}
		return err
	}
	return nil
}

// ListByTenant returns every delivery record owned by a tenant.
func (r *DeliveryRepo) ListByTenant(ctx context.Context, tenantID string) ([]domain.Delivery, error) {
	var recs []domain.Delivery
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("tenant_id-index"),
			KeyConditionExpression: aws.String("tenant_id = :tid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":tid": &types.AttributeValueMemberS{Value: tenantID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		var page []domain.Delivery
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		recs = append(recs, page...)
		if out.LastEvaluatedKey == nil {
			return recs, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// Delete removes a record outright. Used only to purge orphans whose post has
// been deleted.
func (r *DeliveryRepo) Delete(ctx context.Context, postID, subscriberID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("post_id", postID, "subscriber_id", subscriberID),
	})
	return err
}
