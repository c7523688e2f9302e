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

// PostRepo provides typed DynamoDB operations for the posts table. Post
// authoring is owned by the content service; the broadcast pipeline reads
// posts by publish date and stamps the broadcast-completed timestamp.
type PostRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPostRepo(client *dynamodb.Client, tableName string) *PostRepo {
	return &PostRepo{client: client, tableName: tableName}
}

func (r *PostRepo) Put(ctx context.Context, p *domain.Post) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal post: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *PostRepo) Get(ctx context.Context, postID string) (*domain.Post, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("post_id", postID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("post not found: %w", domain.ErrNotFound)
	}
	var p domain.Post
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByPublishDate returns all posts published on the given calendar date
// (YYYY-MM-DD). Drafts never appear: the index is sparse on published_on.
func (r *PostRepo) ListByPublishDate(ctx context.Context, date string) ([]domain.Post, error) {
	var posts []domain.Post
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("published_on-index"),
			KeyConditionExpression: aws.String("published_on = :d"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":d": &types.AttributeValueMemberS{Value: date},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		var page []domain.Post
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		posts = append(posts, page...)
		if out.LastEvaluatedKey == nil {
			return posts, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// MarkBroadcast stamps the broadcast-completed timestamp on a post.
func (r *PostRepo) MarkBroadcast(ctx context.Context, postID string, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldBroadcastAt: at.UTC().Format(time.RFC3339),
		"updated_at":     at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("post_id", postID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}
