package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/jun/policydraft/internal/adapter"
)

const (
	maxDemoContentSize = 256 * 1024 // 256KB
	maxDemoTitleLength = 255
	maxDemoItemCount   = 50

	itemTTL = 60 * time.Minute
)

// DynamoClient is the subset of the DynamoDB API the adapter uses.
type DynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// MemoryAdapter implements adapter.StorageAdapter for dev mode.
// If client is nil, it uses an in-memory map (for tests).
// If client is set, it uses DynamoDB so files survive Lambda cold starts.
type MemoryAdapter struct {
	client DynamoClient
	table  string
	owner  string

	// Fallback for tests
	files map[string]*adapter.File
	order []string
	mu    sync.RWMutex
}

// FileItem is the DynamoDB row for one stored file.
type FileItem struct {
	PK           string    `dynamodbav:"pk"`
	UserID       string    `dynamodbav:"user_id"`
	ID           string    `dynamodbav:"id"`
	Name         string    `dynamodbav:"name"`
	MIMEType     string    `dynamodbav:"mime_type"`
	ModifiedTime time.Time `dynamodbav:"modified_time"`
	Parents      []string  `dynamodbav:"parents"`
	Content      []byte    `dynamodbav:"content"`
	TTL          int64     `dynamodbav:"ttl"`
}

func NewMemoryAdapter(client DynamoClient, table, owner string) *MemoryAdapter {
	if table == "" {
		table = "FileStore"
	}
	return &MemoryAdapter{
		client: client,
		table:  table,
		owner:  owner,
		files:  make(map[string]*adapter.File),
	}
}

func (m *MemoryAdapter) ListFiles(ctx context.Context, folderID string) ([]adapter.FileMetadata, error) {
	if m.client == nil {
		return m.listFilesMap(folderID), nil
	}

	items, err := m.scanOwner(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ModifiedTime.Before(items[j].ModifiedTime)
	})

	files := []adapter.FileMetadata{}
	for _, item := range items {
		meta := item.metadata()
		if meta.MIMEType == adapter.PlainTextMIME && meta.InFolder(folderID) {
			files = append(files, meta)
		}
	}
	return files, nil
}

func (m *MemoryAdapter) GetFile(ctx context.Context, fileID string) (*adapter.File, error) {
	if m.client == nil {
		return m.getFileMap(fileID)
	}

	item, err := m.getItem(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return &adapter.File{FileMetadata: item.metadata(), Content: item.Content}, nil
}

func (m *MemoryAdapter) CreateFile(ctx context.Context, name string, content []byte, folderID string) (*adapter.FileMetadata, error) {
	if len(name) > maxDemoTitleLength {
		return nil, fmt.Errorf("%w: name too long (max %d characters)", adapter.ErrLimitExceeded, maxDemoTitleLength)
	}
	if len(content) > maxDemoContentSize {
		return nil, fmt.Errorf("%w: content too large (max %d bytes)", adapter.ErrLimitExceeded, maxDemoContentSize)
	}

	count, err := m.countOwnerItems(ctx)
	if err != nil {
		return nil, err
	}
	if count >= maxDemoItemCount {
		return nil, fmt.Errorf("%w: item limit reached for demo mode (max %d items)", adapter.ErrLimitExceeded, maxDemoItemCount)
	}

	f := &adapter.File{
		FileMetadata: adapter.FileMetadata{
			ID:       uuid.New().String(),
			Name:     adapter.TextFileName(name),
			MIMEType: adapter.PlainTextMIME,
			Parents:  []string{folderID},
		},
		Content: content,
	}

	if m.client == nil {
		m.mu.Lock()
		m.files[f.ID] = f
		m.order = append(m.order, f.ID)
		m.mu.Unlock()
		meta := f.FileMetadata
		return &meta, nil
	}

	if err := m.putItem(ctx, f); err != nil {
		return nil, err
	}
	meta := f.FileMetadata
	return &meta, nil
}

func (m *MemoryAdapter) UpdateFile(ctx context.Context, fileID string, content []byte) (*adapter.FileMetadata, error) {
	if len(content) > maxDemoContentSize {
		return nil, fmt.Errorf("%w: content too large (max %d bytes)", adapter.ErrLimitExceeded, maxDemoContentSize)
	}

	if m.client == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		f, ok := m.files[fileID]
		if !ok {
			return nil, adapter.ErrNotFound
		}
		f.Content = content
		meta := f.FileMetadata
		return &meta, nil
	}

	item, err := m.getItem(ctx, fileID)
	if err != nil {
		return nil, err
	}
	f := &adapter.File{FileMetadata: item.metadata(), Content: content}
	if err := m.putItem(ctx, f); err != nil {
		return nil, err
	}
	meta := f.FileMetadata
	return &meta, nil
}

func (item FileItem) metadata() adapter.FileMetadata {
	return adapter.FileMetadata{
		ID:       item.ID,
		Name:     item.Name,
		MIMEType: item.MIMEType,
		Parents:  item.Parents,
	}
}

// --- DynamoDB helpers ---

func (m *MemoryAdapter) scanOwner(ctx context.Context) ([]FileItem, error) {
	// Scan and filter (inefficient but fine for dev)
	input := &dynamodb.ScanInput{
		TableName:        aws.String(m.table),
		FilterExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: m.owner},
		},
	}

	var items []FileItem
	for {
		out, err := m.client.Scan(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []FileItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		items = append(items, page...)

		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (m *MemoryAdapter) countOwnerItems(ctx context.Context) (int, error) {
	if m.client == nil {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return len(m.files), nil
	}
	items, err := m.scanOwner(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (m *MemoryAdapter) getItem(ctx context.Context, fileID string) (*FileItem, error) {
	out, err := m.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(m.table),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: fileID},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, adapter.ErrNotFound
	}

	var item FileItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	// Rows belonging to another account are invisible.
	if item.UserID != m.owner {
		return nil, adapter.ErrNotFound
	}
	return &item, nil
}

func (m *MemoryAdapter) putItem(ctx context.Context, f *adapter.File) error {
	now := time.Now()
	item := FileItem{
		PK:           f.ID,
		UserID:       m.owner,
		ID:           f.ID,
		Name:         f.Name,
		MIMEType:     f.MIMEType,
		ModifiedTime: now,
		Parents:      f.Parents,
		Content:      f.Content,
		TTL:          now.Add(itemTTL).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}

	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.table),
		Item:      av,
	})
	return err
}

// --- Map Implementations (Fallback) ---

func (m *MemoryAdapter) listFilesMap(folderID string) []adapter.FileMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := []adapter.FileMetadata{}
	for _, id := range m.order {
		f := m.files[id]
		if f.MIMEType == adapter.PlainTextMIME && f.InFolder(folderID) {
			files = append(files, f.FileMetadata)
		}
	}
	return files
}

func (m *MemoryAdapter) getFileMap(fileID string) (*adapter.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, adapter.ErrNotFound
	}
	return &adapter.File{
		FileMetadata: f.FileMetadata,
		Content:      append([]byte(nil), f.Content...),
	}, nil
}

// Provider implements adapter.StorageProvider backed by DynamoDB (or Memory if nil).
// One adapter is kept per account so files outlive a single request.
type Provider struct {
	client DynamoClient
	table  string
	stores map[string]*MemoryAdapter
	mu     sync.Mutex
}

func NewProvider(client DynamoClient, table string) *Provider {
	return &Provider{
		client: client,
		table:  table,
		stores: make(map[string]*MemoryAdapter),
	}
}

func (p *Provider) GetAdapter(ctx context.Context, grant adapter.Grant) (adapter.StorageAdapter, error) {
	if grant.Owner == "" {
		return nil, fmt.Errorf("memory provider: grant has no owner")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.stores[grant.Owner]; !ok {
		p.stores[grant.Owner] = NewMemoryAdapter(p.client, p.table, grant.Owner)
	}
	return p.stores[grant.Owner], nil
}
