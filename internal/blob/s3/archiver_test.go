package s3blob

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func snapshot() domain.Snapshot {
	return domain.Snapshot{
		Pool:     domain.Pool{ID: "0xABC", Metadata: domain.PoolMetadata{Name: "Pool"}},
		State:    domain.PoolState{PoolID: "0xabc", Reserve: math.NewInt(100)},
		Decision: domain.Decision{PoolID: "0xabc", Action: domain.ActionNotify, Reason: "partial"},
		TakenAt:  time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
	}
}

func TestArchiveUploadsJSON(t *testing.T) {
	put := &fakePutter{}
	a := NewSnapshotArchiverWith(put, "bucket", "/keeper/")

	key, err := a.Archive(context.Background(), snapshot())
	require.NoError(t, err)
	assert.Equal(t, "keeper/2024/03/05/0xabc/1709640000.json", key)
	assert.Equal(t, "bucket", aws.ToString(put.in.Bucket))
	assert.Equal(t, "application/json", aws.ToString(put.in.ContentType))

	var got map[string]any
	require.NoError(t, json.Unmarshal(put.body, &got))
	assert.Contains(t, got, "decision")
	assert.Contains(t, got, "state")
}

func TestArchiveDefaultPrefix(t *testing.T) {
	a := NewSnapshotArchiverWith(&fakePutter{}, "b", "")
	assert.Equal(t, "snapshots/2024/03/05/0xabc/1709640000.json", a.Key(snapshot()))
}

func TestArchivePutError(t *testing.T) {
	a := NewSnapshotArchiverWith(&fakePutter{err: errors.New("denied")}, "b", "")
	_, err := a.Archive(context.Background(), snapshot())
	assert.ErrorContains(t, err, "s3blob: put object")
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("https://minio:9000", false))
	assert.Equal(t, "https://e2.example", normaliseEndpoint("e2.example", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
}
