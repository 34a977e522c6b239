package kv

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB rejects items larger than 400 KB. Values above maxDynamoChunk are
// split across chunk items, leaving room for the key and other attributes.
const (
	MaxDynamoItemBytes = 400 * 1024
	maxDynamoChunk     = 350 * 1024
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// dynamoItem is the head item of a key. Small values live in Value; large
// ones are spread over Chunks items written under Version.
type dynamoItem struct {
	PK        string `dynamodbav:"PK"`
	Value     []byte `dynamodbav:"value,omitempty"`
	Chunks    int    `dynamodbav:"chunks,omitempty"`
	Version   string `dynamodbav:"version,omitempty"`
	UpdatedAt int64  `dynamodbav:"updatedAt"`
}

type dynamoChunk struct {
	PK    string `dynamodbav:"PK"`
	Value []byte `dynamodbav:"value"`
}

// DynamoStore keeps each key as one item of a table whose partition key is
// PK. Values too large for a single item are chunked.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, now: time.Now}
}

func chunkKey(key, version string, i int) string {
	return key + "#chunk#" + version + "#" + strconv.Itoa(i)
}

func (s *DynamoStore) getItem(ctx context.Context, pk string, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
		},
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s: %w", pk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s: %w", pk, err)
	}
	return true, nil
}

func (s *DynamoStore) putItem(ctx context.Context, pk string, in interface{}) error {
	item, err := attributevalue.MarshalMap(in)
	if err != nil {
		return fmt.Errorf("marshal PK=%s: %w", pk, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s: %w", pk, err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	var head dynamoItem
	found, err := s.getItem(ctx, key, &head)
	if err != nil || !found {
		return nil, false, err
	}
	if head.Chunks == 0 {
		return head.Value, true, nil
	}

	var value []byte
	for i := 0; i < head.Chunks; i++ {
		var chunk dynamoChunk
		pk := chunkKey(key, head.Version, i)
		found, err := s.getItem(ctx, pk, &chunk)
		if err != nil {
			return nil, false, err
		}
		if !found {
			return nil, false, fmt.Errorf("missing chunk PK=%s", pk)
		}
		value = append(value, chunk.Value...)
	}
	return value, true, nil
}

// Put writes the chunks of a large value first and the head item last, so a
// reader never sees a head pointing at unwritten chunks. Chunks of the
// replaced version are deleted afterwards.
func (s *DynamoStore) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	var previous dynamoItem
	if _, err := s.getItem(ctx, key, &previous); err != nil {
		return err
	}

	now := s.now()
	head := dynamoItem{PK: key, UpdatedAt: now.Unix()}
	if len(value) <= maxDynamoChunk {
		head.Value = value
	} else {
		head.Version = strconv.FormatInt(now.UnixNano(), 36)
		for i := 0; i*maxDynamoChunk < len(value); i++ {
			end := min((i+1)*maxDynamoChunk, len(value))
			chunk := dynamoChunk{PK: chunkKey(key, head.Version, i), Value: value[i*maxDynamoChunk : end]}
			if err := s.putItem(ctx, chunk.PK, chunk); err != nil {
				return err
			}
			head.Chunks++
		}
	}
	if err := s.putItem(ctx, key, head); err != nil {
		return err
	}

	if previous.Chunks > 0 && previous.Version != head.Version {
		s.deleteChunks(ctx, key, previous.Version, previous.Chunks)
	}
	return nil
}

func (s *DynamoStore) deleteChunks(ctx context.Context, key, version string, n int) {
	for i := 0; i < n; i++ {
		pk := chunkKey(key, version, i)
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: &s.tableName,
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: pk},
			},
		})
		if err != nil {
			log.Warn().Err(err).Str("pk", pk).Msg("Failed to delete stale chunk")
		}
	}
}
