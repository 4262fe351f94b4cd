package session

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/tckz/static-front/internal/logger"
)

// DynamoAPI is the slice of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore persists session records in a DynamoDB table keyed by id, with
// the expire attribute registered as the table's TTL attribute so DynamoDB
// retires stale sessions.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamoStore creates a DynamoDB-backed session store over table.
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (d *DynamoStore) Get(ctx context.Context, id string) (*Record, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("session: dynamodb get %s: %w", id, err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var w wireRecord
	if err := attributevalue.UnmarshalMap(out.Item, &w); err != nil {
		logger.Warn("discarding unreadable session record", "id", id, "error", err.Error())
		return nil, nil
	}
	return fromWire(w), nil
}

func (d *DynamoStore) Put(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return fmt.Errorf("session: missing id")
	}

	item, err := attributevalue.MarshalMap(toWire(rec))
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", rec.ID, err)
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("session: dynamodb put %s: %w", rec.ID, err)
	}
	return nil
}

func (d *DynamoStore) Delete(ctx context.Context, id string) error {
	if _, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	}); err != nil {
		return fmt.Errorf("session: dynamodb delete %s: %w", id, err)
	}
	return nil
}
