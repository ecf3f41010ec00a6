package jobs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eduetl/internal/audit"
	"eduetl/internal/tabular"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newEnv(t *testing.T) Env {
	t.Helper()
	return Env{Logger: zaptest.NewLogger(t), Audit: audit.Discard()}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readSheet(t *testing.T, path string) tabular.Sheet {
	t.Helper()
	s, err := tabular.ReadFirstSheet(path)
	require.NoError(t, err)
	return s
}

const usersJSON = `[
  {"message": "ok", "data": {"token": "t1", "user": {"username": "a", "role": "student", "batchName": "Class 11",
    "courses": [], "questionBankCourses": [{"courseId": 1}]}}},
  {"message": "ok", "data": {"token": "t2", "user": {"username": "b", "role": "student", "batchName": "Class 11",
    "courses": [{"_id": "c11", "fee": 1200.50}], "questionBankCourses": [{"courseId": 9007199254740993}]}}},
  {"message": "ok", "data": {"token": "t3", "user": {"username": "c", "role": "student", "batchName": "Class 12",
    "courses": [{"_id": "c12"}], "questionBankCourses": []}}},
  {"message": "ok", "data": {"token": "t4", "user": {"username": "d", "role": "student", "batchName": "Class 12",
    "courses": [{"_id": "c11"}], "questionBankCourses": [{"courseId": 9007199254740993}]}}},
  {"message": "denied"}
]`

func TestPatchUsers(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "users.json"), filepath.Join(dir, "out", "patched.json")
	writeFile(t, in, usersJSON)

	res, err := PatchUsers(context.Background(), newEnv(t), PatchUsersOptions{Input: in, Output: out})
	require.NoError(t, err)
	require.Equal(t, 5, res.Read)
	require.Equal(t, 1, res.Skipped)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	// Large integers and decimals survive unchanged.
	require.Contains(t, string(b), "9007199254740993")
	require.Contains(t, string(b), "1200.50")

	var got []map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	require.Len(t, got, 5)
	require.Equal(t, "denied", got[4]["message"])

	courses := func(i int) []any { return userOf(got[i])["courses"].([]any) }
	qbs := func(i int) []any { return userOf(got[i])["questionBankCourses"].([]any) }

	require.Len(t, courses(2), 2, "c gets the reference course")
	require.Len(t, qbs(2), 1)
	require.Len(t, courses(3), 1, "d already has it")
	require.Len(t, qbs(3), 1)
	require.Len(t, courses(0), 0, "source batch untouched")
}

func TestPatchUsers_NoReference(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "users.json")
	writeFile(t, in, `[{"data": {"user": {"role": "student", "batchName": "Class 11", "courses": []}}}]`)

	_, err := PatchUsers(context.Background(), newEnv(t), PatchUsersOptions{Input: in, Output: filepath.Join(dir, "o.json")})
	require.ErrorIs(t, err, ErrNoReferenceStudent)
	require.NoFileExists(t, filepath.Join(dir, "o.json"))
}

func TestPatchUsers_NullReferenceCourseIsCopied(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "users.json"), filepath.Join(dir, "o.json")
	writeFile(t, in, `[
  {"data": {"user": {"role": "student", "batchName": "Class 11", "courses": [null], "questionBankCourses": [{"courseId": "qb1"}]}}},
  {"data": {"user": {"role": "student", "batchName": "Class 12", "courses": [], "questionBankCourses": []}}}
]`)

	res, err := PatchUsers(context.Background(), newEnv(t), PatchUsersOptions{Input: in, Output: out})
	require.NoError(t, err)
	require.Equal(t, Result{Read: 2, Written: 1}, res)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	u := userOf(got[1])
	require.Equal(t, []any{nil}, u["courses"])
	require.Equal(t, []any{map[string]any{"courseId": "qb1"}}, u["questionBankCourses"])
}

func TestPatchUsers_MissingInput(t *testing.T) {
	_, err := PatchUsers(context.Background(), newEnv(t), PatchUsersOptions{Input: filepath.Join(t.TempDir(), "nope.json")})
	require.ErrorIs(t, err, ErrInputNotFound)
}

func TestTopicsCSV(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "biology", "Cells.MP4"), "")
	writeFile(t, filepath.Join(base, "biology", "notes.txt"), "")
	writeFile(t, filepath.Join(base, "physics", "Motion.mp4"), "")
	writeFile(t, filepath.Join(base, "stray.mp4"), "")
	out := filepath.Join(t.TempDir(), "topics.csv")

	res, err := TopicsCSV(context.Background(), newEnv(t), TopicsCSVOptions{BaseDir: base, Output: out})
	require.NoError(t, err)
	require.Equal(t, 2, res.Read)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "subject,topic\nbiology,Cells.MP4\nphysics,Motion.mp4\n", string(b))
}

func TestTopicsCSV_MissingBase(t *testing.T) {
	_, err := TopicsCSV(context.Background(), newEnv(t), TopicsCSVOptions{BaseDir: filepath.Join(t.TempDir(), "x")})
	require.ErrorIs(t, err, ErrInputNotFound)
}

func TestCSVToXLSX(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(in, "a.csv"), "id,name\n1,Alpha\n,\n2,Beta\n")
	writeFile(t, filepath.Join(in, "nested", "deep", "B.CSV"), "x\ny\n")
	writeFile(t, filepath.Join(in, "skip.txt"), "nope")

	env := newEnv(t)
	res, err := CSVToXLSX(context.Background(), env, CSVToXLSXOptions{InputDir: in, OutputDir: out})
	require.NoError(t, err)
	require.Equal(t, 2, res.Read)
	require.Equal(t, 2, res.Written)
	require.Zero(t, res.Failed)

	a := readSheet(t, filepath.Join(out, "a.xlsx"))
	require.Equal(t, "Sheet1", a.Name)
	require.Equal(t, [][]string{{"id", "name"}, {"1", "Alpha"}, {"2", "Beta"}}, a.Rows)

	b := readSheet(t, filepath.Join(out, "nested", "deep", "B.xlsx"))
	require.Equal(t, [][]string{{"x"}, {"y"}}, b.Rows)
}

func TestCSVToXLSX_MissingInputDir(t *testing.T) {
	_, err := CSVToXLSX(context.Background(), newEnv(t), CSVToXLSXOptions{InputDir: filepath.Join(t.TempDir(), "none")})
	require.ErrorIs(t, err, ErrInputNotFound)
}

func TestCSVToXLSX_Cancelled(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "a.csv"), "x\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CSVToXLSX(ctx, newEnv(t), CSVToXLSXOptions{InputDir: in, OutputDir: t.TempDir()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestResultString(t *testing.T) {
	r := Result{Read: 3, Written: 2, Failed: 1}
	require.True(t, strings.HasPrefix(r.String(), "read=3 written=2 failed=1"))
}
