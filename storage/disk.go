// Package storage persists uploaded attachments on local disk. The rest of
// the system only ever sees the opaque path it returns; messages reference
// attachments, they never embed them.
package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// AttachmentStore writes each upload under its own timestamped directory so
// two files with the same name never collide:
//
//	{root}/{unix nano}/{original filename}
type AttachmentStore struct {
	root string
	log  *slog.Logger
}

func NewAttachmentStore(root string, log *slog.Logger) *AttachmentStore {
	return &AttachmentStore{root: root, log: log}
}

// StoredFile is what a successful upload hands back to the caller.
type StoredFile struct {
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Save streams the upload to disk and sniffs its MIME type from content, not
// from the client-provided filename.
func (s *AttachmentStore) Save(filename string, r io.Reader) (StoredFile, error) {
	// The client controls the filename; keep only its base so it cannot
	// climb out of the upload root.
	filename = filepath.Base(filename)
	if filename == "." || filename == string(filepath.Separator) {
		return StoredFile{}, fmt.Errorf("attachment filename is empty")
	}

	dir := filepath.Join(s.root, fmt.Sprintf("%d", time.Now().UnixNano()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("creating attachment directory: %w", err)
	}

	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return StoredFile{}, fmt.Errorf("creating attachment file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return StoredFile{}, fmt.Errorf("writing attachment: %w", err)
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		s.log.Warn("Failed to sniff attachment type", "path", path, "error", err)
		return StoredFile{Path: path, MimeType: "application/octet-stream", Size: size}, nil
	}

	s.log.Info("Attachment stored", "path", path, "mime", mime.String(), "size", size)
	return StoredFile{Path: path, MimeType: mime.String(), Size: size}, nil
}

// Open returns a reader over a previously stored attachment.
func (s *AttachmentStore) Open(path string) (io.ReadCloser, error) {
	// Refuse anything outside the upload root.
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return nil, fmt.Errorf("attachment path escapes the upload root")
	}
	return os.Open(abs)
}
