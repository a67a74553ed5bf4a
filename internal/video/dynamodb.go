package video

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDBStore implements Store using a DynamoDB table keyed by "id".
type DynamoDBStore struct {
	client    dynamoAPI
	tableName string
}

var _ Store = (*DynamoDBStore)(nil)

// videoItem is the DynamoDB item layout.
type videoItem struct {
	ID                  string  `dynamodbav:"id"`
	VideoURL            string  `dynamodbav:"videoUrl"`
	VideoProviderID     string  `dynamodbav:"videoProviderId"`
	ThumbnailURL        *string `dynamodbav:"thumbnailUrl"`
	ThumbnailProviderID string  `dynamodbav:"thumbnailProviderId,omitempty"`
	Title               string  `dynamodbav:"title"`
	Description         string  `dynamodbav:"description"`
	OwnerID             string  `dynamodbav:"ownerId"`
	OwnerUsername       string  `dynamodbav:"ownerUsername"`
	OwnerFullName       string  `dynamodbav:"ownerFullName"`
	OwnerAvatar         string  `dynamodbav:"ownerAvatar"`
	IsPublished         bool    `dynamodbav:"isPublished"`
	Views               int64   `dynamodbav:"views"`
	CreatedAt           int64   `dynamodbav:"createdAt"` // Unix millis
	UpdatedAt           int64   `dynamodbav:"updatedAt"`
}

func toItem(r *Record) videoItem {
	return videoItem{
		ID:                  r.ID,
		VideoURL:            r.VideoURL,
		VideoProviderID:     r.VideoProviderID,
		ThumbnailURL:        r.ThumbnailURL,
		ThumbnailProviderID: r.ThumbnailProviderID,
		Title:               r.Title,
		Description:         r.Description,
		OwnerID:             r.Owner.ID,
		OwnerUsername:       r.Owner.Username,
		OwnerFullName:       r.Owner.FullName,
		OwnerAvatar:         r.Owner.Avatar,
		IsPublished:         r.IsPublished,
		Views:               r.Views,
		CreatedAt:           r.CreatedAt.UnixMilli(),
		UpdatedAt:           r.UpdatedAt.UnixMilli(),
	}
}

func (it videoItem) record() Record {
	return Record{
		ID:                  it.ID,
		VideoURL:            it.VideoURL,
		VideoProviderID:     it.VideoProviderID,
		ThumbnailURL:        it.ThumbnailURL,
		ThumbnailProviderID: it.ThumbnailProviderID,
		Title:               it.Title,
		Description:         it.Description,
		Owner: Owner{
			ID:       it.OwnerID,
			Username: it.OwnerUsername,
			FullName: it.OwnerFullName,
			Avatar:   it.OwnerAvatar,
		},
		IsPublished: it.IsPublished,
		Views:       it.Views,
		CreatedAt:   time.UnixMilli(it.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(it.UpdatedAt).UTC(),
	}
}

// NewDynamoDBStore creates a store for tableName using the default AWS
// credential chain.
func NewDynamoDBStore(ctx context.Context, tableName, region string) (*DynamoDBStore, error) {
	if tableName == "" {
		return nil, fmt.Errorf("DynamoDB table name cannot be empty")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newDynamoDBStore(dynamodb.NewFromConfig(cfg), tableName), nil
}

func newDynamoDBStore(client dynamoAPI, tableName string) *DynamoDBStore {
	return &DynamoDBStore{client: client, tableName: tableName}
}

func (s *DynamoDBStore) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func (s *DynamoDBStore) Create(ctx context.Context, rec *Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	av, err := attributevalue.MarshalMap(toItem(rec))
	if err != nil {
		return "", fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return "", ErrDuplicateID
		}
		return "", fmt.Errorf("failed to put item: %w", err)
	}
	return rec.ID, nil
}

func (s *DynamoDBStore) Read(ctx context.Context, id string) (*Record, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item videoItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	r := item.record()
	return &r, nil
}

// List scans the whole table and filters in memory; DynamoDB has no
// case-insensitive substring operator.
func (s *DynamoDBStore) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	var (
		result []Record
		start  map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tableName),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}

		var items []videoItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal items: %w", err)
		}
		for _, it := range items {
			r := it.record()
			if filter.Matches(&r) {
				result = append(result, r)
			}
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *DynamoDBStore) Update(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now().UTC()

	thumb := types.AttributeValue(&types.AttributeValueMemberNULL{Value: true})
	if rec.ThumbnailURL != nil {
		thumb = &types.AttributeValueMemberS{Value: *rec.ThumbnailURL}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 s.key(rec.ID),
		ConditionExpression: aws.String("attribute_exists(id)"),
		UpdateExpression:    aws.String("SET title = :title, description = :description, isPublished = :published, thumbnailUrl = :thumb, updatedAt = :updated"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":title":       &types.AttributeValueMemberS{Value: rec.Title},
			":description": &types.AttributeValueMemberS{Value: rec.Description},
			":published":   &types.AttributeValueMemberBOOL{Value: rec.IsPublished},
			":thumb":       thumb,
			":updated":     &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.UpdatedAt.UnixMilli(), 10)},
		},
	})
	return s.conditional(err, "failed to update item")
}

func (s *DynamoDBStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 s.key(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	return s.conditional(err, "failed to delete item")
}

func (s *DynamoDBStore) IncrementViews(ctx context.Context, id string) (int64, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 s.key(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
		UpdateExpression:    aws.String("ADD #views :one"),
		ExpressionAttributeNames: map[string]string{
			"#views": "views",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err := s.conditional(err, "failed to increment views"); err != nil {
		return 0, err
	}

	var updated struct {
		Views int64 `dynamodbav:"views"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, fmt.Errorf("failed to unmarshal views: %w", err)
	}
	return updated.Views, nil
}

func (s *DynamoDBStore) Close() error { return nil }

func (s *DynamoDBStore) conditional(err error, msg string) error {
	if err == nil {
		return nil
	}
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
