package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jun/policydraft/internal/crypto"
	"github.com/jun/policydraft/internal/model"
	"golang.org/x/oauth2"
)

// ErrNoSession is returned by a TokenStore when the workspace has no token.
var ErrNoSession = errors.New("no stored session")

// Credentials is what a signed-in workspace holds.
type Credentials struct {
	User  model.User
	Token *oauth2.Token
}

// TokenStore persists the access token of each signed-in workspace.
type TokenStore interface {
	Save(ctx context.Context, sessionID string, creds Credentials) error
	Load(ctx context.Context, sessionID string) (*Credentials, error)
	Delete(ctx context.Context, sessionID string) error
}

// DynamoClient is the subset of the DynamoDB API used by SessionStore.
type DynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// SessionStore seals access tokens and keeps them in DynamoDB.
// With a nil client it keeps them in memory.
type SessionStore struct {
	client    DynamoClient
	tableName string
	sealer    crypto.Sealer

	// In-memory fallback
	sessions map[string]model.StoredSession
	mu       sync.RWMutex
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(client DynamoClient, tableName string, sealer crypto.Sealer) *SessionStore {
	return &SessionStore{
		client:    client,
		tableName: tableName,
		sealer:    sealer,
		sessions:  make(map[string]model.StoredSession),
	}
}

// Save seals the access token and stores it for the workspace.
func (s *SessionStore) Save(ctx context.Context, sessionID string, creds Credentials) error {
	if creds.Token == nil || creds.Token.AccessToken == "" {
		return fmt.Errorf("no access token in response")
	}

	encrypted, err := s.sealer.Seal(ctx, sessionID, creds.Token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	stored := model.StoredSession{
		SessionID:            sessionID,
		UserID:               creds.User.ID,
		DisplayName:          creds.User.DisplayName,
		Email:                creds.User.Email,
		EncryptedAccessToken: encrypted,
		TokenType:            creds.Token.TokenType,
		Expiry:               creds.Token.Expiry,
		UpdatedAt:            time.Now(),
	}

	if s.client == nil {
		s.mu.Lock()
		s.sessions[sessionID] = stored
		s.mu.Unlock()
		return nil
	}

	item, err := attributevalue.MarshalMap(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save session to DynamoDB: %w", err)
	}
	return nil
}

// Load returns the workspace's credentials or ErrNoSession.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*Credentials, error) {
	var stored model.StoredSession

	if s.client == nil {
		s.mu.RLock()
		v, ok := s.sessions[sessionID]
		s.mu.RUnlock()
		if !ok {
			return nil, ErrNoSession
		}
		stored = v
	} else {
		out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"session_id": &types.AttributeValueMemberS{Value: sessionID},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get item from DynamoDB: %w", err)
		}
		if out.Item == nil {
			return nil, ErrNoSession
		}
		if err := attributevalue.UnmarshalMap(out.Item, &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
	}

	accessToken, err := s.sealer.Open(ctx, sessionID, stored.EncryptedAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	return &Credentials{
		User: model.User{
			ID:          stored.UserID,
			DisplayName: stored.DisplayName,
			Email:       stored.Email,
		},
		Token: &oauth2.Token{
			AccessToken: accessToken,
			TokenType:   stored.TokenType,
			Expiry:      stored.Expiry,
		},
	}, nil
}

// Delete removes the workspace's token. Deleting a missing entry is not an error.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if s.client == nil {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return nil
	}

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete session from DynamoDB: %w", err)
	}
	return nil
}
