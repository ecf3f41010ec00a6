package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"eduetl/internal/metrics"

	"go.uber.org/zap"
)

// PatchUsersOptions configures PatchUsers.
type PatchUsersOptions struct {
	Input       string
	Output      string
	SourceBatch string // default "Class 11"
	TargetBatch string // default "Class 12"
}

// ErrNoReferenceStudent means no student of the source batch has both a
// course and a question-bank course to copy.
var ErrNoReferenceStudent = errors.New("no reference student with courses and question bank courses")

// PatchUsers copies the first course and first question-bank course of a
// reference student onto every student of the target batch.
//
// The input is a JSON array of login envelopes ({message, data: {token,
// user}}); the output keeps every envelope and every field, with numbers
// written back exactly as read. A course is not added twice (matched on
// "_id"), nor a question-bank course (matched on "courseId").
func PatchUsers(ctx context.Context, env Env, opt PatchUsersOptions) (Result, error) {
	log := env.logger().With(zap.String("job", "patch-users"))
	done := metrics.Step("patch-users")
	var res Result

	src, tgt := opt.SourceBatch, opt.TargetBatch
	if src == "" {
		src = "Class 11"
	}
	if tgt == "" {
		tgt = "Class 12"
	}

	b, err := os.ReadFile(opt.Input)
	if err != nil {
		done(err)
		return res, inputErr(opt.Input, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var envelopes []map[string]any
	if err := dec.Decode(&envelopes); err != nil {
		done(err)
		return res, fmt.Errorf("decode %s: %w", opt.Input, err)
	}
	res.Read = len(envelopes)

	users := make([]map[string]any, len(envelopes))
	for i, e := range envelopes {
		users[i] = userOf(e)
	}

	var (
		course, qb any
		found      bool
	)
	for _, u := range users {
		if isStudentOf(u, src) && len(list(u, "courses")) > 0 && len(list(u, "questionBankCourses")) > 0 {
			course = list(u, "courses")[0]
			qb = list(u, "questionBankCourses")[0]
			found = true
			break
		}
	}
	if !found {
		done(ErrNoReferenceStudent)
		return res, fmt.Errorf("%w (batch %q)", ErrNoReferenceStudent, src)
	}

	for i, u := range users {
		if err := ctx.Err(); err != nil {
			done(err)
			return res, err
		}
		if u == nil {
			res.Skipped++
			log.Debug("envelope without data.user", zap.Int("index", i))
			continue
		}
		if !isStudentOf(u, tgt) {
			continue
		}
		name, _ := u["username"].(string)
		if appendUnique(u, "courses", course, "_id") {
			log.Info("added course", zap.String("user", name))
		}
		if appendUnique(u, "questionBankCourses", qb, "courseId") {
			log.Info("added question bank course", zap.String("user", name))
		}
	}

	if err := writeJSON(opt.Output, envelopes); err != nil {
		done(err)
		return res, err
	}
	res.Written = 1
	metrics.RecordRecords("read", res.Read)
	done(nil)
	return res, nil
}

func userOf(envelope map[string]any) map[string]any {
	data, _ := envelope["data"].(map[string]any)
	u, _ := data["user"].(map[string]any)
	return u
}

func isStudentOf(u map[string]any, batch string) bool {
	return u != nil && u["role"] == "student" && u["batchName"] == batch
}

func list(u map[string]any, field string) []any {
	l, _ := u[field].([]any)
	return l
}

// appendUnique appends item to u[field] unless an element with the same
// idField is already there.
func appendUnique(u map[string]any, field string, item any, idField string) bool {
	cur := list(u, field)
	want := fieldOf(item, idField)
	for _, c := range cur {
		if reflect.DeepEqual(fieldOf(c, idField), want) {
			return false
		}
	}
	u[field] = append(cur, item)
	return true
}

func fieldOf(v any, name string) any {
	m, _ := v.(map[string]any)
	if m == nil {
		return nil
	}
	return m[name]
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
