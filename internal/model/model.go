package model

import "time"

// User is the profile surfaced after a successful sign-in.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

// Session is the authentication state of one workspace.
// The zero value is SignedOut.
type Session struct {
	SignedIn    bool   `json:"signedIn"`
	DisplayName string `json:"displayName,omitempty"`
	AccessToken string `json:"-"`
}

// SignedOut is the session of a workspace without a token.
var SignedOut = Session{}

// StoredSession is the persisted form of a signed-in session, keyed by workspace.
type StoredSession struct {
	SessionID            string    `json:"session_id" dynamodbav:"session_id"`
	UserID               string    `json:"user_id" dynamodbav:"user_id"`
	DisplayName          string    `json:"display_name" dynamodbav:"display_name"`
	Email                string    `json:"email" dynamodbav:"email"`
	EncryptedAccessToken string    `json:"encrypted_access_token" dynamodbav:"encrypted_access_token"`
	TokenType            string    `json:"token_type" dynamodbav:"token_type"`
	Expiry               time.Time `json:"expiry" dynamodbav:"expiry"`
	UpdatedAt            time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// RemoteFile references a plain-text file in the configured storage folder.
type RemoteFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OperationKind names a user-triggered async action.
type OperationKind string

const (
	OpGenerate       OperationKind = "generate"
	OpAsk            OperationKind = "ask"
	OpList           OperationKind = "list"
	OpLoad           OperationKind = "load"
	OpSaveNew        OperationKind = "save-new"
	OpUpdateExisting OperationKind = "update-existing"
)

// PendingOperation is an in-flight busy flag for one control of one workspace.
type PendingOperation struct {
	SessionID string        `json:"session_id" dynamodbav:"session_id"`
	Kind      OperationKind `json:"kind" dynamodbav:"kind"`
	Key       string        `json:"-" dynamodbav:"op_key"`
	Owner     string        `json:"-" dynamodbav:"owner_token"`
	ExpiresAt int64         `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix timestamp)
}
