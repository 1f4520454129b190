package adapter

import "testing"

func TestTextFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"appends .txt to plain name", "policy", "policy.txt"},
		{"keeps .txt if already present", "policy.txt", "policy.txt"},
		{"handles name with dots", "ai.policy.v2", "ai.policy.v2.txt"},
		{"does not treat .md as text", "policy.md", "policy.md.txt"},
		{"does not double .txt", "draft.txt.txt", "draft.txt.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TextFileName(tt.in); got != tt.want {
				t.Errorf("TextFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFileMetadata_InFolder(t *testing.T) {
	m := FileMetadata{ID: "f1", Parents: []string{"a", "b"}}
	if !m.InFolder("b") {
		t.Error("expected file to be in folder b")
	}
	if m.InFolder("c") {
		t.Error("did not expect file to be in folder c")
	}
}
