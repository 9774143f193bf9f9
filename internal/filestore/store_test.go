package filestore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ratrans/internal/config"
	appErr "github.com/xxxsen/ratrans/internal/pkg/errors"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing.json")
	require.True(t, appErr.IsNotFound(err))

	require.NoError(t, store.Put(ctx, "b.json", []byte(`{"b":1}`)))
	require.NoError(t, store.Put(ctx, "a.json", []byte(`{"a":1}`)))
	require.NoError(t, store.Put(ctx, "a.json", []byte(`{"a":22}`)))

	data, err := store.Get(ctx, "a.json")
	require.NoError(t, err)
	require.Equal(t, `{"a":22}`, string(data))

	items, err := store.List(ctx)
	require.NoError(t, err)
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	require.Equal(t, []BlobInfo{{Key: "a.json", Size: 8}, {Key: "b.json", Size: 7}}, items)

	require.NoError(t, store.Delete(ctx, "a.json"))
	require.NoError(t, store.Delete(ctx, "a.json"))
	_, err = store.Get(ctx, "a.json")
	require.True(t, appErr.IsNotFound(err))

	err = store.Put(ctx, "../escape", []byte("x"))
	require.True(t, appErr.IsInvalid(err))
}

func TestLocalStore(t *testing.T) {
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(config.FileStoreConfig{})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "ftp", Data: map[string]interface{}{}})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "local"})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{}})
	require.Error(t, err)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	for key, data := range f.objects {
		if !strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			continue
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key), Size: aws.Int64(int64(len(data)))})
	}
	return out, nil
}

func TestS3Store(t *testing.T) {
	fake := newFakeS3()
	store := newS3Store(fake, "bucket", "/cache/")
	require.Equal(t, "s3://bucket/cache", store.Location())
	exerciseStore(t, store)

	require.NoError(t, store.Put(context.Background(), "c.json", []byte("{}")))
	fake.mu.Lock()
	_, ok := fake.objects["cache/c.json"]
	fake.mu.Unlock()
	require.True(t, ok)
}

func TestNormalizeEndpoint(t *testing.T) {
	require.Equal(t, "http://minio:9000", normalizeEndpoint("minio:9000", false))
	require.Equal(t, "https://minio:9000", normalizeEndpoint("minio:9000/", true))
	require.Equal(t, "http://x", normalizeEndpoint("http://x", true))
}
