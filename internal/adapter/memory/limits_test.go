package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jun/policydraft/internal/adapter"
)

func TestMemoryAdapter_Limits(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAdapter(nil, "", "user1")

	t.Run("Title length limit", func(t *testing.T) {
		longName := strings.Repeat("a", maxDemoTitleLength+1)
		_, err := m.CreateFile(ctx, longName, []byte("content"), "folder")
		if !errors.Is(err, adapter.ErrLimitExceeded) || !strings.Contains(err.Error(), "name too long") {
			t.Errorf("Expected error about name length, got: %v", err)
		}
	})

	t.Run("Content size limit", func(t *testing.T) {
		largeContent := make([]byte, maxDemoContentSize+1)
		_, err := m.CreateFile(ctx, "test", largeContent, "folder")
		if err == nil || !strings.Contains(err.Error(), "content too large") {
			t.Errorf("Expected error about content size, got: %v", err)
		}
	})

	t.Run("Update content size limit", func(t *testing.T) {
		f, err := m.CreateFile(ctx, "small", []byte("ok"), "folder")
		if err != nil {
			t.Fatal(err)
		}
		_, err = m.UpdateFile(ctx, f.ID, make([]byte, maxDemoContentSize+1))
		if !errors.Is(err, adapter.ErrLimitExceeded) {
			t.Errorf("Expected ErrLimitExceeded, got: %v", err)
		}
	})

	t.Run("Item count limit", func(t *testing.T) {
		m2 := NewMemoryAdapter(nil, "", "user2")
		for i := 0; i < maxDemoItemCount; i++ {
			_, err := m2.CreateFile(ctx, "note", []byte("ok"), "folder")
			if err != nil {
				t.Fatalf("Failed to create item %d: %v", i, err)
			}
		}
		_, err := m2.CreateFile(ctx, "overflow", []byte("ok"), "folder")
		if err == nil || !strings.Contains(err.Error(), "item limit reached") {
			t.Errorf("Expected error about item limit, got: %v", err)
		}
	})
}
