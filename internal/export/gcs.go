// Package export archives investment audits as JSON objects in Google Cloud
// Storage and reads them back.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/fiscal-pilot/internal/investment"
	"github.com/dvloznov/fiscal-pilot/internal/logger"
)

// ObjectStore is the minimal object storage the sink needs.
type ObjectStore interface {
	Write(ctx context.Context, bucket, object string, data []byte, contentType string) error
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}

// GCSObjects implements ObjectStore on a storage client. It assumes
// Application Default Credentials are configured.
type GCSObjects struct {
	client *storage.Client
}

// NewGCSObjects creates a storage client.
func NewGCSObjects(ctx context.Context) (*GCSObjects, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSObjects: create storage client: %w", err)
	}
	return &GCSObjects{client: client}, nil
}

// Close closes the storage client.
func (g *GCSObjects) Close() error {
	return g.client.Close()
}

// Write uploads data as one object.
func (g *GCSObjects) Write(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}
	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// Read downloads one object.
func (g *GCSObjects) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader %s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

// Sink writes audits to gs://<bucket>/<prefix>/<subject>/<date>/<id>.json.
type Sink struct {
	objects ObjectStore
	bucket  string
	prefix  string
}

var _ investment.AuditSink = (*Sink)(nil)

// NewSink creates a Sink on objects.
func NewSink(objects ObjectStore, bucket, prefix string) *Sink {
	return &Sink{objects: objects, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// ExportAudit writes a as indented JSON and returns its gs:// URI.
func (s *Sink) ExportAudit(ctx context.Context, a investment.Audit) (string, error) {
	rec := a.Recommendation
	if rec.RecommendationID == "" || rec.SubjectID == "" {
		return "", fmt.Errorf("ExportAudit: recommendation id and subject are required")
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ExportAudit: marshal: %w", err)
	}

	object := ObjectPath(s.prefix, rec.SubjectID, rec.CreatedAt, rec.RecommendationID)
	if err := s.objects.Write(ctx, s.bucket, object, data, "application/json"); err != nil {
		return "", fmt.Errorf("ExportAudit: %w", err)
	}

	uri := URI(s.bucket, object)
	log := logger.FromContext(ctx)
	log.Debug().Str("uri", uri).Int("bytes", len(data)).Msg("Audit exported")
	return uri, nil
}

// ReadAudit loads an audit previously written by ExportAudit.
func (s *Sink) ReadAudit(ctx context.Context, uri string) (*investment.Audit, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("ReadAudit: %w", err)
	}
	data, err := s.objects.Read(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("ReadAudit: %w", err)
	}
	var a investment.Audit
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("ReadAudit: unmarshal: %w", err)
	}
	return &a, nil
}

// ObjectPath builds the object name for an audit. The date is the UTC day
// the recommendation was created.
func ObjectPath(prefix, subjectID string, created time.Time, recommendationID string) string {
	parts := []string{subjectID, created.UTC().Format("2006-01-02"), recommendationID + ".json"}
	if prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return path.Join(parts...)
}

// URI formats gs://bucket/object.
func URI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// ParseURI splits gs://bucket/path/to/object into bucket and object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI returns the last path element, e.g.
// "gs://bucket/p/u1/2025-03-20/rec-1.json" gives "rec-1.json".
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}
