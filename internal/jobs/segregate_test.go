package jobs

import (
	"context"
	"path/filepath"
	"testing"

	"eduetl/internal/audit"
	"eduetl/internal/classify"

	"github.com/stretchr/testify/require"
)

const videosCSV = `id,video_url
q1,https://cdn.example.com/math/ch3/vid1.mp4
q2,https://cdn.example.com/math/ch3/vid2.mp4
q3,https://cdn.example.com/vid.mp4
q4,not a url
q5,
q6,https://cdn.example.com/a/b%20c/q.mp4
`

func TestSegregateURLs(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "videos.csv"), filepath.Join(dir, "out")
	writeFile(t, in, videosCSV)
	review := filepath.Join(dir, "review.xlsx")
	env := newEnv(t)

	res, err := SegregateURLs(context.Background(), env, SegregateOptions{Input: in, OutputDir: out, Review: review})
	require.NoError(t, err)
	require.Equal(t, Result{Read: 6, Written: 3, Skipped: 2}, res)
	require.Equal(t, 2, env.Audit.Count(audit.KindMalformedRecord))

	ch3 := readSheet(t, filepath.Join(out, "math", "ch3.xlsx"))
	require.Equal(t, "Videos", ch3.Name)
	require.Equal(t, [][]string{
		{"type", "qrCodeId", "filePath"},
		{"video", "q1", "https://cdn.example.com/math/ch3/vid1.mp4"},
		{"video", "q2", "https://cdn.example.com/math/ch3/vid2.mp4"},
	}, ch3.Rows)

	misc := readSheet(t, filepath.Join(out, "misc.xlsx"))
	require.Equal(t, []string{"video", "q3", "https://cdn.example.com/vid.mp4"}, misc.Rows[1])

	require.FileExists(t, filepath.Join(out, "a", "b-c.xlsx"))

	rv := readSheet(t, review)
	require.Equal(t, [][]string{{"id", "video_url", "row"}, {"q4", "not a url", "5"}, {"q5", "", "6"}}, rv.Rows)
}

func TestSegregateURLs_ReviewRowsMatchFileLines(t *testing.T) {
	dir := t.TempDir()
	in, review := filepath.Join(dir, "videos.csv"), filepath.Join(dir, "review.xlsx")
	writeFile(t, in, "id,title,video_url\nq1,\"Intro\npart 1\",https://cdn.example.com/math/ch3/vid1.mp4\nq2,bad\"quote,x\nq3,Later,not a url\n")
	env := newEnv(t)

	res, err := SegregateURLs(context.Background(), env, SegregateOptions{Input: in, OutputDir: filepath.Join(dir, "out"), Review: review})
	require.NoError(t, err)
	require.Equal(t, Result{Read: 2, Written: 1, Skipped: 1}, res)
	require.Equal(t, 2, env.Audit.Count(audit.KindMalformedRecord))
	require.FileExists(t, filepath.Join(dir, "out", "math", "ch3.xlsx"))

	rv := readSheet(t, review)
	require.Equal(t, [][]string{{"id", "video_url", "row"}, {"q3", "not a url", "5"}}, rv.Rows)
}

func TestSegregateURLs_MissingInput(t *testing.T) {
	_, err := SegregateURLs(context.Background(), newEnv(t), SegregateOptions{Input: filepath.Join(t.TempDir(), "none.csv")})
	require.ErrorIs(t, err, ErrInputNotFound)
}

func TestGroupPath(t *testing.T) {
	require.Equal(t, filepath.Join("o", "a", "b", "c.xlsx"), groupPath("o", classify.Key{Label: "a/b", Sub: "c"}))
	require.Equal(t, filepath.Join("o", "misc.xlsx"), groupPath("o", classify.Key{Sub: classify.MiscSub}))
	require.Equal(t, filepath.Join("o", "x", "my-file.xlsx"), groupPath("o", classify.Key{Label: "x/..", Sub: "my file?"}))
}

func TestSplitChapters(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "tlp.csv")
	writeFile(t, in, `#,name,url
1,a,https://x.com/tlp/BTLP12C10Q034.mp4
2,b,https://x.com/tlp/BTLP12C2Q001.mp4
3,c
4,d,https://x.com/tlp/BTLP12C10Q035.mp4
`)
	out := filepath.Join(dir, "out")
	env := newEnv(t)

	res, err := SplitChapters(context.Background(), env, SplitChaptersOptions{Input: in, OutputDir: out, Prefix: "math"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Written)
	require.Equal(t, 2, res.Skipped)
	require.Equal(t, 1, env.Audit.Count(audit.KindUnclassified))
	require.Equal(t, 1, env.Audit.Count(audit.KindSkipped))

	ch10 := readSheet(t, filepath.Join(out, "math_Chapter-10.xlsx"))
	require.Equal(t, "Sheet1", ch10.Name)
	require.Equal(t, [][]string{
		{"1", "a", "https://x.com/tlp/BTLP12C10Q034.mp4"},
		{"4", "d", "https://x.com/tlp/BTLP12C10Q035.mp4"},
	}, ch10.Rows)
	require.FileExists(t, filepath.Join(out, "math_Chapter-2.xlsx"))
}

func TestSplitChapters_DefaultPrefix(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "physics.csv")
	writeFile(t, in, "1,a,https://x.com/C7Q1.mp4\n")

	_, err := SplitChapters(context.Background(), newEnv(t), SplitChaptersOptions{Input: in, OutputDir: dir})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "physics_Chapter-7.xlsx"))
}
