package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"eduetl/internal/config"
	"eduetl/internal/objectstore"

	"github.com/stretchr/testify/require"
)

func TestAssetCatalog(t *testing.T) {
	root := t.TempDir()
	bucket := filepath.Join(root, "assets")
	writeFile(t, filepath.Join(bucket, "grade-10", "science", "1.numbers", "intro.mp4"), "x")
	writeFile(t, filepath.Join(bucket, "grade-10", "science", "1.numbers", "sub", "deep.pdf"), "x")
	require.NoError(t, os.MkdirAll(filepath.Join(bucket, "grade-10", "science", "2.empty"), 0o755))

	lister, err := objectstore.New(config.ObjectStore{Endpoint: "file://" + filepath.ToSlash(root), Bucket: "assets"})
	require.NoError(t, err)
	cat := objectstore.Catalog{Lister: lister, PublicBaseURL: "https://cdn.example.com/"}

	out := t.TempDir()
	book := filepath.Join(out, "catalog.xlsx")
	res, err := AssetCatalog(context.Background(), newEnv(t), cat, AssetCatalogOptions{
		Prefix:    "grade-10/science/",
		OutputDir: out,
		XLSX:      book,
	})
	require.NoError(t, err)
	require.Equal(t, Result{Read: 2, Written: 1, Skipped: 1}, res)

	b, err := os.ReadFile(filepath.Join(out, "1.numbers.json"))
	require.NoError(t, err)
	require.JSONEq(t, `[
		{"name": "intro", "url": "https://cdn.example.com/grade-10/science/1.numbers/intro.mp4"},
		{"name": "deep", "url": "https://cdn.example.com/grade-10/science/1.numbers/sub/deep.pdf"}
	]`, string(b))
	require.NoFileExists(t, filepath.Join(out, "2.empty.json"))

	s := readSheet(t, book)
	require.Equal(t, "1.numbers", s.Name)
	require.Equal(t, []string{"name", "url"}, s.Rows[0])
	require.Len(t, s.Rows, 3)
}

func TestAssetCatalog_NoFolders(t *testing.T) {
	cat := objectstore.Catalog{Lister: objectstore.NewLocalStore(t.TempDir())}
	_, err := AssetCatalog(context.Background(), newEnv(t), cat, AssetCatalogOptions{Prefix: "nothing/", OutputDir: t.TempDir()})
	require.ErrorIs(t, err, ErrInputNotFound)
}
