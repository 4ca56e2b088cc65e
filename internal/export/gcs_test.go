package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fiscal-pilot/internal/investment"
)

type memObjects struct {
	objects  map[string][]byte
	types    map[string]string
	writeErr error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) Write(_ context.Context, bucket, object string, data []byte, contentType string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.objects[bucket+"/"+object] = data
	m.types[bucket+"/"+object] = contentType
	return nil
}

func (m *memObjects) Read(_ context.Context, bucket, object string) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+object]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func audit() investment.Audit {
	created := time.Date(2025, 3, 20, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	return investment.Audit{
		Recommendation: investment.Recommendation{
			RecommendationID: "rec-1",
			SubjectID:        "u1",
			PrimaryPath:      investment.PathConservative,
			Reasoning:        "Conservative approach",
			Confidence:       0.8,
			CreatedAt:        created,
		},
		ExportedAt: created,
	}
}

func TestSink_ExportAndRead(t *testing.T) {
	objects := newMemObjects()
	sink := NewSink(objects, "audit-bucket", "/recommendations/")
	ctx := context.Background()

	uri, err := sink.ExportAudit(ctx, audit())
	require.NoError(t, err)
	// 23:30 IST is 18:00 UTC on the same day
	assert.Equal(t, "gs://audit-bucket/recommendations/u1/2025-03-20/rec-1.json", uri)
	assert.Equal(t, "application/json", objects.types["audit-bucket/recommendations/u1/2025-03-20/rec-1.json"])

	back, err := sink.ReadAudit(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", back.Recommendation.RecommendationID)
	assert.Equal(t, investment.PathConservative, back.Recommendation.PrimaryPath)
	assert.Equal(t, "Conservative approach", back.Recommendation.Reasoning)
}

func TestSink_ExportRequiresIDs(t *testing.T) {
	sink := NewSink(newMemObjects(), "b", "")
	_, err := sink.ExportAudit(context.Background(), investment.Audit{})
	assert.Error(t, err)
}

func TestSink_WriteFailure(t *testing.T) {
	objects := newMemObjects()
	objects.writeErr = errors.New("permission denied")
	sink := NewSink(objects, "b", "")

	_, err := sink.ExportAudit(context.Background(), audit())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestSink_ReadMissing(t *testing.T) {
	sink := NewSink(newMemObjects(), "b", "")
	_, err := sink.ReadAudit(context.Background(), "gs://b/u1/2025-03-20/nope.json")
	assert.Error(t, err)

	_, err = sink.ReadAudit(context.Background(), "s3://b/x.json")
	assert.Error(t, err)
}

func TestObjectPath(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "u1/2025-01-02/r.json", ObjectPath("", "u1", created, "r"))
	assert.Equal(t, "audits/u1/2025-01-02/r.json", ObjectPath("audits", "u1", created, "r"))
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{"gs://bucket/a/b/c.json", "bucket", "a/b/c.json", false},
		{"gs://bucket/c.json", "bucket", "c.json", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"https://bucket/c.json", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

func TestFilenameFromURI(t *testing.T) {
	assert.Equal(t, "rec-1.json", FilenameFromURI("gs://bucket/p/u1/2025-03-20/rec-1.json"))
	assert.Equal(t, "bucket", FilenameFromURI("gs://bucket"))
}
