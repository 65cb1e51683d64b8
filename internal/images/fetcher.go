package images

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
)

// sniffLen is how many leading bytes are inspected to detect a MIME type
const sniffLen = 3072

// Content is an opened image stream
type Content struct {
	io.ReadCloser
	Size     int64 // -1 when unknown
	MimeType string
}

// Opener opens image locators as byte streams
type Opener struct {
	HTTPClient *http.Client
}

// NewOpener creates a new locator opener
func NewOpener() *Opener {
	return &Opener{
		HTTPClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Open resolves a locator to a content stream. Supported locators are plain file paths,
// file:// URIs and http(s):// URLs. Failures wrap providers.ErrLocalResourceUnavailable.
func (o *Opener) Open(ctx context.Context, locator string) (*Content, error) {
	u, err := url.Parse(locator)
	if err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return o.openURL(ctx, locator)
		case "file":
			return o.openFile(u.Path)
		}
	}
	return o.openFile(locator)
}

func (o *Opener) openFile(path string) (*Content, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", providers.ErrLocalResourceUnavailable, path, err)
	}

	size := int64(-1)
	if info, err := file.Stat(); err == nil {
		if info.IsDir() {
			file.Close()
			return nil, fmt.Errorf("%w: %s is a directory", providers.ErrLocalResourceUnavailable, path)
		}
		size = info.Size()
	} else {
		slog.Debug("Unable to stat image", "path", path, "error", err)
	}

	return sniff(file, size)
}

func (o *Opener) openURL(ctx context.Context, locator string) (*Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", providers.ErrLocalResourceUnavailable, err)
	}

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch image: %w", providers.ErrLocalResourceUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: image URL returned status %d", providers.ErrLocalResourceUnavailable, resp.StatusCode)
	}

	return sniff(resp.Body, resp.ContentLength)
}

// sniff peeks at the head of the stream to detect its MIME type without consuming it
func sniff(rc io.ReadCloser, size int64) (*Content, error) {
	br := bufio.NewReaderSize(rc, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		rc.Close()
		return nil, fmt.Errorf("%w: failed to read image: %w", providers.ErrLocalResourceUnavailable, err)
	}

	return &Content{
		ReadCloser: readCloser{Reader: br, Closer: rc},
		Size:       size,
		MimeType:   mimetype.Detect(head).String(),
	}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
