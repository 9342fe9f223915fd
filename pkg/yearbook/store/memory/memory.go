package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/classfolio/yearbook/pkg/yearbook"
	"github.com/classfolio/yearbook/pkg/yearbook/urlsign"
)

// Pages of a multi-page artifact are separated by form feeds, so tests
// can spell out "p1\fp2\fp3" and get a three-page extraction.
const pageSeparator = "\f"

// Backend is an in-memory implementation of the yearbook.ObjectStore
// interface.
type Backend struct {
	mu       sync.RWMutex
	objects  map[string][]byte
	public   map[string]bool
	baseURL  string
	signer   *urlsign.Signer
	failPage int
}

// Option configures the in-memory backend.
type Option func(*Backend)

// WithBaseURL overrides the fake asset host used in minted URLs.
func WithBaseURL(baseURL string) Option {
	return func(b *Backend) {
		b.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithSigner overrides the URL signer.
func WithSigner(signer *urlsign.Signer) Option {
	return func(b *Backend) {
		b.signer = signer
	}
}

// New creates a new in-memory object store backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		objects:  make(map[string][]byte),
		public:   make(map[string]bool),
		baseURL:  "https://assets.local",
		signer:   urlsign.New([]byte("memory-store-secret")),
		failPage: -1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FailPageUpload makes the next UploadPages call fail while uploading
// the extracted page with the given zero-based index, leaving earlier
// page objects behind the way a real remote failure would.
func (b *Backend) FailPageUpload(index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failPage = index
}

// Upload stores one artifact.
func (b *Backend) Upload(ctx context.Context, artifact yearbook.Artifact, folder string, opts yearbook.UploadOptions) (*yearbook.StoredObject, error) {
	data, err := io.ReadAll(artifact.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", yearbook.ErrSourceUnreadable, err)
	}

	key := objectKey(folder, artifact.Filename)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.public[key] = opts.Public

	return b.stored(key), nil
}

// UploadPages uploads the raw source document, then one object per page.
func (b *Backend) UploadPages(ctx context.Context, artifact yearbook.Artifact, folder string) (*yearbook.PageExtraction, error) {
	data, err := io.ReadAll(artifact.Reader)
	if err != nil {
		return &yearbook.PageExtraction{}, fmt.Errorf("%w: %v", yearbook.ErrSourceUnreadable, err)
	}
	if len(data) == 0 {
		return &yearbook.PageExtraction{}, fmt.Errorf("%w: empty source", yearbook.ErrSourceUnreadable)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sourceKey := objectKey(folder, "source-"+artifact.Filename)
	b.objects[sourceKey] = data
	ext := &yearbook.PageExtraction{SourceKey: sourceKey}

	pages := strings.Split(string(data), pageSeparator)
	for i, content := range pages {
		if i == b.failPage {
			return ext, fmt.Errorf("%w: page %d upload failed", yearbook.ErrStoreUnavailable, i)
		}
		key := fmt.Sprintf("%s/%s-p%d.png", folder, uuid.New(), i)
		b.objects[key] = []byte(content)
		ext.Pages = append(ext.Pages, yearbook.ExtractedPage{
			StoredObject: *b.stored(key),
			Index:        i,
		})
	}

	return ext, nil
}

// Delete removes one object; deleting an absent object is not an error.
func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return false, nil
	}
	delete(b.objects, key)
	delete(b.public, key)
	return true, nil
}

// SignedURL mints a signed transformation URL for an object.
func (b *Backend) SignedURL(ctx context.Context, key string, opts yearbook.SignOptions) (string, error) {
	b.mu.RLock()
	_, exists := b.objects[key]
	b.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("%w: %s", yearbook.ErrStoreUnavailable, key)
	}

	return b.signer.Sign(b.baseURL, key, urlsign.Params{
		TTL:       opts.TTL,
		Watermark: opts.Watermark,
		Width:     opts.Width,
		Height:    opts.Height,
	})
}

// Has reports whether an object exists. Test helper.
func (b *Backend) Has(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, exists := b.objects[key]
	return exists
}

// Len reports the number of stored objects. Test helper.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// Download returns the stored bytes. Test helper.
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, exists := b.objects[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", yearbook.ErrStoreUnavailable, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *Backend) stored(key string) *yearbook.StoredObject {
	return &yearbook.StoredObject{
		URL:       b.baseURL + "/" + key,
		SecureURL: b.baseURL + "/s/" + key,
		Key:       key,
	}
}

func objectKey(folder, filename string) string {
	ext := path.Ext(filename)
	return fmt.Sprintf("%s/%s%s", folder, uuid.New(), ext)
}
