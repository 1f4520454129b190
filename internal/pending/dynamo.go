package pending

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
	"github.com/jun/policydraft/internal/model"
)

// DynamoClient is the subset of *dynamodb.Client used by DynamoGuard.
type DynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoGuard stores busy flags in DynamoDB so that several Lambda instances
// serving the same workspace agree on what is in flight.
// Items expire through the table's TTL attribute "expires_at".
type DynamoGuard struct {
	client    DynamoClient
	tableName string
	ttl       time.Duration
}

// NewDynamoGuard creates a DynamoGuard on the given table.
func NewDynamoGuard(client DynamoClient, tableName string, ttl time.Duration) *DynamoGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DynamoGuard{client: client, tableName: tableName, ttl: ttl}
}

// Begin succeeds if no flag exists for the key or the existing one has expired.
func (g *DynamoGuard) Begin(ctx context.Context, sessionID string, kind model.OperationKind) (*model.PendingOperation, error) {
	op := newOperation(sessionID, kind, g.ttl)

	item, err := attributevalue.MarshalMap(op)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pending operation: %w", err)
	}

	_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(g.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(op_key) OR expires_at < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Unix(), 10)},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("failed to mark operation pending: %w", err)
	}

	return &op, nil
}

// End removes the flag only while op still owns it.
func (g *DynamoGuard) End(ctx context.Context, op *model.PendingOperation) error {
	_, err := g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(g.tableName),
		Key: map[string]types.AttributeValue{
			"op_key": &types.AttributeValueMemberS{Value: opKey(op.SessionID, op.Kind)},
		},
		ConditionExpression: aws.String("owner_token = :owner"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: op.Owner},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return nil
		}
		return fmt.Errorf("failed to clear pending operation: %w", err)
	}
	return nil
}

func (g *DynamoGuard) TTL() time.Duration {
	return g.ttl
}

// Status reads the flag, ignoring items past their TTL that DynamoDB has not reaped yet.
func (g *DynamoGuard) Status(ctx context.Context, sessionID string, kind model.OperationKind) (*model.PendingOperation, error) {
	out, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(g.tableName),
		Key: map[string]types.AttributeValue{
			"op_key": &types.AttributeValueMemberS{Value: opKey(sessionID, kind)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pending operation: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var op model.PendingOperation
	if err := attributevalue.UnmarshalMap(out.Item, &op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending operation: %w", err)
	}
	if op.ExpiresAt < time.Now().Unix() {
		return nil, nil
	}
	return &op, nil
}
