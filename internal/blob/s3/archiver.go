package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// ObjectPutter is the subset of *s3.Client the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SnapshotArchiver implements domain.SnapshotArchiver. Each snapshot is one
// JSON object under {prefix}/{yyyy}/{mm}/{dd}/{pool}/{unix}.json.
type SnapshotArchiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewSnapshotArchiver creates an archiver writing to the client's bucket.
func NewSnapshotArchiver(c *Client, prefix string) *SnapshotArchiver {
	return NewSnapshotArchiverWith(c.S3(), c.Bucket(), prefix)
}

// NewSnapshotArchiverWith creates an archiver over an arbitrary putter.
func NewSnapshotArchiverWith(client ObjectPutter, bucket, prefix string) *SnapshotArchiver {
	if prefix == "" {
		prefix = "snapshots"
	}
	return &SnapshotArchiver{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for snap.
func (a *SnapshotArchiver) Key(snap domain.Snapshot) string {
	t := snap.TakenAt.UTC()
	return path.Join(a.prefix, t.Format("2006/01/02"), strings.ToLower(snap.Pool.ID),
		fmt.Sprintf("%d.json", t.Unix()))
}

// Archive uploads snap and returns its key.
func (a *SnapshotArchiver) Archive(ctx context.Context, snap domain.Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal snapshot %s: %w", snap.Pool.ID, err)
	}

	key := a.Key(snap)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3blob: put object %s: %w", key, err)
	}
	return key, nil
}
