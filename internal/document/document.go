// Package document holds the editable policy text of one workspace.
package document

import (
	"strings"
	"sync"
)

// ExportFileName is the name offered when the document is downloaded.
const ExportFileName = "ai-policy.txt"

// blockSeparator keeps inserted text from running into the previous paragraph.
const blockSeparator = "\n\n"

// Document is a single mutable UTF-8 text buffer.
type Document struct {
	mu   sync.RWMutex
	text string
}

// New returns an empty document.
func New() *Document {
	return &Document{}
}

// Text returns the current buffer.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Replace overwrites the buffer unconditionally.
func (d *Document) Replace(text string) {
	d.mu.Lock()
	d.text = text
	d.mu.Unlock()
}

// Append adds text to the end of the buffer. A blank line is inserted first
// unless the buffer is empty or already ends with a newline.
func (d *Document) Append(text string) {
	if text == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = Join(d.text, text)
}

// IsEmpty reports whether the buffer has no content.
func (d *Document) IsEmpty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text == ""
}

// Len returns the buffer length in bytes.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.text)
}

// Export returns the download file name and the buffer as bytes.
func (d *Document) Export() (string, []byte) {
	return ExportFileName, []byte(d.Text())
}

// Join applies the append rule to a buffer and new text without mutating anything.
func Join(buf, text string) string {
	if text == "" {
		return buf
	}
	if buf == "" || strings.HasSuffix(buf, "\n") {
		return buf + text
	}
	return buf + blockSeparator + text
}
