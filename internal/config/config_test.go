package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default().Database.Table, cfg.Database.Table)
	require.Equal(t, "/", cfg.ObjectStore.Delimiter)
}

func TestLoad_YAMLOverridesAndExpandsEnv(t *testing.T) {
	t.Setenv("MYSQL_PASSWORD", "s3cret")
	t.Setenv("AWS_SECRET", "shh")

	path := writeFile(t, "eduetl.yaml", `
objectstore:
  bucket: upmyranksvideos
  prefix: foundation/grade-10/science/
  public_base_url: https://static.example.com
  access_key_id: AKIA
  secret_access_key: ${AWS_SECRET}
database:
  kind: mysql
  dsn: edu:${MYSQL_PASSWORD}@tcp(db:3306)/eduInstitute?parseTime=true
audit:
  path: logs/errors.jsonl
reader:
  comma: ";"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "upmyranksvideos", cfg.ObjectStore.Bucket)
	require.Equal(t, "shh", cfg.ObjectStore.SecretAccessKey)
	require.Equal(t, "edu:s3cret@tcp(db:3306)/eduInstitute?parseTime=true", cfg.Database.DSN)
	require.Equal(t, "course", cfg.Database.Table, "unset fields keep defaults")
	require.Equal(t, "/", cfg.ObjectStore.Delimiter)
	require.Equal(t, ';', cfg.Reader.Rune("comma", ','))
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "eduetl.json", `{"database":{"kind":"sqlite","dsn":"file:courses.db"},"metrics":{"backend":"datadog","tags":["team:content"]}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Database.Kind)
	require.Equal(t, "datadog", cfg.Metrics.Backend)
	require.Equal(t, []string{"team:content"}, cfg.Metrics.Tags)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "database:\n  engine: oracle\n"))
	require.Error(t, err, "unknown fields are rejected")

	_, err = Load(writeFile(t, "kind.yaml", "database:\n  kind: oracle\n"))
	require.ErrorContains(t, err, "database.kind")

	_, err = Load(writeFile(t, "delim.yaml", "objectstore:\n  delimiter: '//'\n"))
	require.ErrorContains(t, err, "objectstore.delimiter")
}

func TestOptions_Accessors(t *testing.T) {
	t.Parallel()

	o := Options{
		"has_header":  false,
		"trim_space":  "true",
		"fields":      float64(3),
		"workers":     "4",
		"comma":       `\t`,
		"header_map":  map[string]any{"Video URL": "video_url", "n": 1},
		"bad_int":     "x",
		"plain_str":   "utf-8",
		"wrong_types": 12,
	}

	require.False(t, o.Bool("has_header", true))
	require.True(t, o.Bool("trim_space", false))
	require.True(t, o.Bool("missing", true))
	require.Equal(t, 3, o.Int("fields", 0))
	require.Equal(t, 4, o.Int("workers", 0))
	require.Equal(t, 9, o.Int("bad_int", 9))
	require.Equal(t, '\t', o.Rune("comma", ','))
	require.Equal(t, ',', o.Rune("missing", ','))
	require.Equal(t, map[string]string{"Video URL": "video_url"}, o.StringMap("header_map"))
	require.Equal(t, "utf-8", o.String("plain_str", ""))
	require.Equal(t, "def", o.String("wrong_types", "def"))

	var nilOpts Options
	require.Nil(t, nilOpts.Any("x"))
	require.Empty(t, nilOpts.StringMap("x"))
}
