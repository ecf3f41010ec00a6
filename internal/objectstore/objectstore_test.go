package objectstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"eduetl/internal/config"
	"eduetl/internal/record"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func TestLocalStore_Listing(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"foundation/grade-10/science/2.motion/b.mp4",
		"foundation/grade-10/science/1.numbers/a.intro.mp4",
		"foundation/grade-10/science/1.numbers/deep/c.mp4",
		"foundation/grade-10/science/readme.txt",
		"foundation/grade-9/x.mp4",
	)
	s := NewLocalStore(root)
	ctx := context.Background()

	prefixes, err := s.ListPrefixes(ctx, "foundation/grade-10/science/")
	require.NoError(t, err)
	require.Equal(t, []string{
		"foundation/grade-10/science/1.numbers/",
		"foundation/grade-10/science/2.motion/",
	}, prefixes)

	objs, err := s.ListObjects(ctx, "foundation/grade-10/science/1.numbers/")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	require.Equal(t, "foundation/grade-10/science/1.numbers/a.intro.mp4", objs[0].Key)
	require.Equal(t, "foundation/grade-10/science/1.numbers/deep/c.mp4", objs[1].Key)

	none, err := s.ListPrefixes(ctx, "nothing/here/")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestLocalStore_MissingRoot(t *testing.T) {
	s := NewLocalStore(filepath.Join(t.TempDir(), "absent"))
	objs, err := s.ListObjects(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, objs)
}

type fakeLister struct {
	objs []Object
	err  error
}

func (f fakeLister) ListPrefixes(context.Context, string) ([]string, error) {
	return []string{"base/1.rational-numbers/", "base/2.polynomials/"}, f.err
}

func (f fakeLister) ListObjects(context.Context, string) ([]Object, error) {
	return f.objs, f.err
}

func TestCatalog(t *testing.T) {
	c := Catalog{
		Lister: fakeLister{objs: []Object{
			{Key: "base/1.rational-numbers/"},
			{Key: "base/1.rational-numbers/intro.v2.mp4"},
			{Key: "base/1.rational-numbers/README"},
		}},
		PublicBaseURL: "https://static.example.com/",
	}
	ctx := context.Background()

	recs, err := c.ListAll(ctx, "base/1.rational-numbers/")
	require.NoError(t, err)
	require.Equal(t, []record.Record{
		{FieldKey: "base/1.rational-numbers/intro.v2.mp4", FieldName: "intro.v2", FieldURL: "https://static.example.com/base/1.rational-numbers/intro.v2.mp4"},
		{FieldKey: "base/1.rational-numbers/README", FieldName: "README", FieldURL: "https://static.example.com/base/1.rational-numbers/README"},
	}, recs)

	_, names, err := c.Chapters(ctx, "base/")
	require.NoError(t, err)
	require.Equal(t, []string{"1.rational-numbers", "2.polynomials"}, names)

	boom := wrapError(CodeBucketNotFound, false, errors.New("nope"))
	_, err = Catalog{Lister: fakeLister{err: boom}}.ListAll(ctx, "x")
	require.Equal(t, CodeBucketNotFound, CodeOf(err))
}

func TestAssetNameAndURL(t *testing.T) {
	require.Equal(t, "lesson", AssetName("a/b/lesson.mp4"))
	require.Equal(t, ".hidden", AssetName("a/.hidden"))
	require.Equal(t, "https://cdn/x/y", PublicURL("https://cdn", "/x/y"))
	require.Equal(t, "x/y", PublicURL("", "x/y"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"no_such_bucket", minio.ErrorResponse{Code: "NoSuchBucket", Message: "x"}, CodeBucketNotFound, false},
		{"access_denied", minio.ErrorResponse{Code: "AccessDenied", Message: "x"}, CodePermissionDenied, false},
		{"bad_key", minio.ErrorResponse{Code: "InvalidAccessKeyId", Message: "x"}, CodeAuthInvalid, false},
		{"deadline", context.DeadlineExceeded, CodeTimeout, true},
		{"refused", errors.New("dial tcp: connection refused"), CodeEndpointUnreachable, true},
		{"other", errors.New("weird"), CodeListFailed, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := classify(tc.err)
			var e *Error
			require.ErrorAs(t, err, &e)
			require.Equal(t, tc.code, e.Code)
			require.Equal(t, tc.retryable, e.Retryable)
			require.Equal(t, tc.err, e.Err)
		})
	}
	require.ErrorIs(t, classify(context.Canceled), context.Canceled)
	require.Nil(t, classify(nil))
}

func TestNew(t *testing.T) {
	root := t.TempDir()
	l, err := New(config.ObjectStore{Endpoint: "file://" + root, Bucket: "videos"})
	require.NoError(t, err)
	require.IsType(t, &LocalStore{}, l)

	l, err = New(config.ObjectStore{Endpoint: "https://s3.ap-south-1.amazonaws.com", Region: "ap-south-1", Bucket: "videos", Delimiter: "/"})
	require.NoError(t, err)
	require.IsType(t, &S3{}, l)

	_, err = NewS3(config.ObjectStore{Endpoint: "https://s3.example.com"})
	require.Equal(t, CodeInvalidConfig, CodeOf(err))
	_, err = NewS3(config.ObjectStore{Endpoint: "https://s3.example.com", Bucket: "b", Delimiter: "|"})
	require.Equal(t, CodeInvalidConfig, CodeOf(err))
}
