package repository

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	path, err := store.Put(ctx, "grid/sensors.add.xml", []byte("<additional/>"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "grid", "sensors.add.xml"), path)

	data, err := store.Get(ctx, "grid/sensors.add.xml")
	require.NoError(t, err)
	assert.Equal(t, "<additional/>", string(data))

	_, err = store.Get(ctx, "missing.xml")
	assert.ErrorIs(t, err, ErrArtifactNotFound)

	// Traversal stays inside the root.
	path, err = store.Put(ctx, "../../escape.xml", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.xml"), path)
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	store := NewS3Store(fake, "bucket", "/artifacts/")
	ctx := context.Background()

	uri, err := store.Put(ctx, "sensors.add.xml", []byte("<additional/>"))
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/artifacts/sensors.add.xml", uri)
	assert.Contains(t, fake.objects, "bucket/artifacts/sensors.add.xml")

	data, err := store.Get(ctx, "sensors.add.xml")
	require.NoError(t, err)
	assert.Equal(t, "<additional/>", string(data))

	_, err = store.Get(ctx, "other.xml")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}
