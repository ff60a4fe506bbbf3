// Package files persists the bookkeeping records for mirrored assets in
// DynamoDB, keyed by the remote source URL.
package files

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrRecordNotFound indicates no record exists for the remote URL.
var ErrRecordNotFound = errors.New("file record not found")

// Record describes one mirrored asset.
type Record struct {
	// RemoteURL is the full source URL, including query. Partition key.
	RemoteURL string `dynamodbav:"remote_url"`

	// PublicURL is where the stored copy is publicly reachable.
	PublicURL string `dynamodbav:"public_url"`

	// ObjectName is the key of the stored copy in the object store.
	ObjectName string `dynamodbav:"object_name"`

	// RedirectKey is the cache key holding the redirect for this asset.
	RedirectKey string `dynamodbav:"redirect_key"`

	// CreatedAt drives retention cleanup.
	CreatedAt time.Time `dynamodbav:"created_at,unixtime"`
}

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store reads and writes file records in one DynamoDB table.
type Store struct {
	client DynamoAPI
	table  string
}

// NewStore creates a record store over a DynamoDB client.
func NewStore(client DynamoAPI, table string) (*Store, error) {
	if table == "" {
		return nil, fmt.Errorf("table is required")
	}
	return &Store{client: client, table: table}, nil
}

func recordKey(remoteURL string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"remote_url": &types.AttributeValueMemberS{Value: remoteURL},
	}
}

// Get loads the record for a remote URL, or ErrRecordNotFound.
func (s *Store) Get(ctx context.Context, remoteURL string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       recordKey(remoteURL),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, remoteURL)
	}

	var record Record
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("unmarshal file record: %w", err)
	}
	return &record, nil
}

// Put writes a record, replacing any previous one for the same URL.
func (s *Store) Put(ctx context.Context, record *Record) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal file record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put: %w", err)
	}
	return nil
}

// Delete removes the record for a remote URL. Missing records are ignored.
func (s *Store) Delete(ctx context.Context, remoteURL string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       recordKey(remoteURL),
	})
	if err != nil {
		return fmt.Errorf("dynamodb delete: %w", err)
	}
	return nil
}

// ListOlderThan returns every record created before cutoff, following scan
// pagination to the end of the table.
func (s *Store) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Record, error) {
	var records []Record
	var startKey map[string]types.AttributeValue

	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.table),
			FilterExpression: aws.String("created_at < :cutoff"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":cutoff": &types.AttributeValueMemberN{
					Value: strconv.FormatInt(cutoff.Unix(), 10),
				},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan: %w", err)
		}

		var page []Record
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal file records: %w", err)
		}
		records = append(records, page...)

		if out.LastEvaluatedKey == nil {
			return records, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
