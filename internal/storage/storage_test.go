package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKind(t *testing.T) {
	for in, want := range map[string]string{
		" PostgreSQL ": "postgres",
		"pgx":          "postgres",
		"sqlserver":    "mssql",
		"MariaDB":      "mysql",
		"sqlite":       "sqlite",
	} {
		require.Equal(t, want, NormalizeKind(in), in)
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	_, err = New(context.Background(), Config{Kind: "oracle"})
	require.ErrorContains(t, err, "unsupported storage kind=oracle")
}

func TestRegister_Panics(t *testing.T) {
	f := func(context.Context, Config) (CourseRepository, error) { return nil, nil }
	require.Panics(t, func() { Register("", f) })
	require.Panics(t, func() { Register("x-nil", nil) })
	Register("x-test", f)
	require.Panics(t, func() { Register("x-test", f) })
	require.Contains(t, Kinds(), "x-test")
}

func TestResolveDSN(t *testing.T) {
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	dsn, ok, err := ResolveDSN("mysql", "explicit", getenv)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "explicit", dsn)

	_, ok, err = ResolveDSN("mysql", "", getenv)
	require.NoError(t, err)
	require.False(t, ok)

	env["DB_HOST"] = "db"
	env["DB_USER"] = "etl"
	env["DB_PASSWORD"] = "p@ss word"
	env["DB_NAME"] = "lms"
	dsn, ok, err = ResolveDSN("mariadb", "", getenv)
	require.NoError(t, err)
	require.True(t, ok)
	c, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "db:3306", c.Addr)
	require.Equal(t, "p@ss word", c.Passwd)
	require.Equal(t, "lms", c.DBName)
}

func TestBuildDSN(t *testing.T) {
	p := DSNParts{Host: "h", User: "u", Password: "pw", Database: "d", Params: "sslmode=disable"}

	pg, err := BuildDSN("postgres", p)
	require.NoError(t, err)
	require.Equal(t, "postgresql://u:pw@h:5432/d?sslmode=disable", pg)

	ms, err := BuildDSN("sqlserver", DSNParts{Host: "h", User: "u", Password: "pw", Database: "d"})
	require.NoError(t, err)
	u, err := url.Parse(ms)
	require.NoError(t, err)
	require.Equal(t, "h:1433", u.Host)
	require.Equal(t, "d", u.Query().Get("database"))

	lite, err := BuildDSN("sqlite", DSNParts{})
	require.NoError(t, err)
	require.Equal(t, "file:eduetl.db", lite)

	_, err = BuildDSN("oracle", p)
	require.Error(t, err)
}

func TestMakeRecordAndLike(t *testing.T) {
	rec := MakeRecord([]any{int64(1), []byte("Grade 11"), nil})
	require.Equal(t, "Grade 11", rec[ColCourseName])
	require.Nil(t, rec[ColDescription])
	require.Contains(t, rec, ColDescription)
	require.Equal(t, "%grade%", LikeContains(" Grade "))
}

func TestSQLRepoStatements(t *testing.T) {
	r := NewSQLRepo(nil, "lms.course", Dialect{Placeholder: QuestionPlaceholder, Quote: DoubleQuote})
	require.Equal(t, `"lms"."course"`, r.table)
	require.True(t, strings.HasPrefix(r.cols, `"id", "course_name"`))
}
