package localfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
)

// chunkSize is how many bytes are copied between progress events
const chunkSize = 256 * 1024

// Storage implements providers.Storage on a local directory tree.
// Remote folders are directories below the root and their IDs are root-relative paths.
type Storage struct {
	root string
	mu   sync.Mutex // serializes folder creation
}

// New creates the root directory if needed
func New(root string) (*Storage, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	slog.Debug("Local storage initialized", "path", root)
	return &Storage{root: root}, nil
}

// GetOrCreateFolder returns the directory for name under parentName, creating both as needed
func (s *Storage) GetOrCreateFolder(ctx context.Context, _ providers.Identity, name, parentName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validName(name); err != nil {
		return "", err
	}
	rel := name
	if parentName != "" {
		if err := validName(parentName); err != nil {
			return "", err
		}
		rel = filepath.Join(parentName, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Join(s.root, rel), 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create folder %s: %w", providers.ErrRemoteOperationFailed, rel, err)
	}
	return filepath.ToSlash(rel), nil
}

// Upload copies the request body into the folder, emitting progress every chunk
func (s *Storage) Upload(ctx context.Context, _ providers.Identity, req providers.UploadRequest) (<-chan providers.UploadEvent, error) {
	fileName := filepath.Base(req.FileName)
	if err := validName(fileName); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, filepath.FromSlash(req.FolderID))
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: folder %s does not exist", providers.ErrRemoteOperationFailed, req.FolderID)
	}

	events := make(chan providers.UploadEvent)
	go func() {
		defer close(events)
		send := func(ev providers.UploadEvent) bool {
			ev.Key = req.FileName
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := s.store(ctx, filepath.Join(dir, fileName), req, func(fraction float64) bool {
			return send(providers.UploadEvent{Fraction: fraction})
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			send(providers.UploadEvent{Err: fmt.Errorf("%w: %w", providers.ErrRemoteOperationFailed, err)})
			return
		}
		send(providers.UploadEvent{Fraction: 1.0, Complete: true})
	}()
	return events, nil
}

// store writes to a temporary file and renames it into place
func (s *Storage) store(ctx context.Context, fullPath string, req providers.UploadRequest, progress func(float64) bool) error {
	startTime := time.Now()

	tempPath := fmt.Sprintf("%s.tmp.%d", fullPath, time.Now().UnixNano())
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		tempFile.Close()
		if _, err := os.Stat(tempPath); err == nil {
			os.Remove(tempPath)
		}
	}()

	hasher := sha256.New()
	w := io.MultiWriter(tempFile, hasher)
	buf := make([]byte, chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := req.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("failed to write content: %w", err)
			}
			written += int64(n)
			// 1.0 is reserved for the completion event
			if req.Size > 0 && written < req.Size {
				if !progress(float64(written) / float64(req.Size)) {
					return ctx.Err()
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("failed to read content: %w", rerr)
		}
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	tempFile.Close()

	if err := os.Rename(tempPath, fullPath); err != nil {
		return fmt.Errorf("failed to move file to final location: %w", err)
	}

	slog.Info("File stored",
		"path", fullPath,
		"content_type", req.MimeType,
		"bytes_written", written,
		"checksum", hex.EncodeToString(hasher.Sum(nil)),
		"duration", time.Since(startTime))
	return nil
}

// SearchFolderImages lists the images inside the first directory named folderName.
// Directories are walked in lexical order so the first match is deterministic.
func (s *Storage) SearchFolderImages(ctx context.Context, _ providers.Identity, folderName string) ([]providers.RemoteFile, error) {
	if err := validName(folderName); err != nil {
		return nil, err
	}

	var found string
	errFound := errors.New("found")
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() && path != s.root && d.Name() == folderName {
			found = path
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return nil, fmt.Errorf("%w: failed to search %s: %w", providers.ErrRemoteOperationFailed, folderName, err)
	}
	if found == "" {
		return []providers.RemoteFile{}, nil
	}

	entries, err := os.ReadDir(found)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list %s: %w", providers.ErrRemoteOperationFailed, found, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	files := []providers.RemoteFile{}
	for _, e := range entries {
		if e.IsDir() || strings.Contains(e.Name(), ".tmp.") {
			continue
		}
		full := filepath.Join(found, e.Name())
		mt, err := mimetype.DetectFile(full)
		if err != nil || !strings.HasPrefix(mt.String(), "image/") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		rel, _ := filepath.Rel(s.root, full)
		files = append(files, providers.RemoteFile{
			ID:       filepath.ToSlash(rel),
			Name:     e.Name(),
			MimeType: mt.String(),
			Size:     info.Size(),
			URL:      "file://" + filepath.ToSlash(full),
		})
	}
	return files, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid name %q", providers.ErrRemoteOperationFailed, name)
	}
	return nil
}
