package dashboard

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/aaronlmathis/timesplit/internal/datasets"
	"github.com/aaronlmathis/timesplit/internal/display"
)

// UploadsCapacity is the number of uploaded files kept in memory.
const UploadsCapacity = 32

// Upload is a file read by the upload endpoint.
type Upload struct {
	ID      string
	Name    string
	Size    int64
	Table   *datasets.Table
	Elapsed time.Duration
}

// Caption describes how the file was read.
func (u *Upload) Caption() string {
	return fmt.Sprintf("Read file '%s' of size %s (%dx%d) in %s.",
		u.Name, display.FormatBytes(u.Size), u.Table.Rows(), len(u.Table.Header), display.FormatSeconds(u.Elapsed.Seconds()))
}

// Uploads keeps recently uploaded tables by id. Entries expire after the
// configured TTL, which is extended whenever an entry is used.
type Uploads struct {
	cache    *ttlcache.Cache[string, *Upload]
	maxBytes int64
}

// UploadExpansion bounds decompressed uploads to this multiple of the
// upload size limit.
const UploadExpansion = 10

// UploadLimit returns the decompressed size limit for an upload limit of
// maxMB megabytes. Zero means no limit.
func UploadLimit(maxMB int) int64 {
	if maxMB <= 0 {
		return 0
	}
	return int64(maxMB) << 20 * UploadExpansion
}

// NewUploads creates an upload store. Files that decompress to more than
// maxBytes are rejected with datasets.ErrTooLarge; zero disables the check.
func NewUploads(ttl time.Duration, maxBytes int64) *Uploads {
	return &Uploads{
		cache: ttlcache.New[string, *Upload](
			ttlcache.WithTTL[string, *Upload](ttl),
			ttlcache.WithCapacity[string, *Upload](UploadsCapacity),
		),
		maxBytes: maxBytes,
	}
}

// Start begins expiring entries. It blocks until Stop is called.
func (u *Uploads) Start() {
	u.cache.Start()
}

// Stop stops expiring entries.
func (u *Uploads) Stop() {
	u.cache.Stop()
}

// Read parses a file and stores it under a new id.
func (u *Uploads) Read(name string, size int64, r io.Reader) (*Upload, error) {
	start := time.Now()
	table, err := datasets.ReadUpload(name, r, u.maxBytes)
	if err != nil {
		return nil, err
	}

	upload := &Upload{
		ID:      uuid.NewString(),
		Name:    name,
		Size:    size,
		Table:   table,
		Elapsed: time.Since(start),
	}
	u.cache.Set(upload.ID, upload, ttlcache.DefaultTTL)
	return upload, nil
}

// Get returns the upload with id.
func (u *Uploads) Get(id string) (*Upload, bool) {
	item := u.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Len returns the number of stored uploads.
func (u *Uploads) Len() int {
	return u.cache.Len()
}
