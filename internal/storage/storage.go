// Package storage reads the course hierarchy from a relational database.
//
// Backends register themselves from init() under a kind ("mysql",
// "postgres", "mssql", "sqlite"); import internal/storage/all to get every
// backend, or a single backend package to keep the binary small.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"eduetl/internal/record"
)

// Course columns, in export order.
const (
	ColID          = "id"
	ColCourseName  = "course_name"
	ColCreatedAt   = "created_at"
	ColParentID    = "parent_id"
	ColDescription = "description"
)

// CourseColumns is the column list selected and exported for every course.
var CourseColumns = []string{ColID, ColCourseName, ColCreatedAt, ColParentID, ColDescription}

// Config selects and configures a backend.
//
// Edge cases:
//   - Kind is normalized with NormalizeKind before lookup.
//   - Table defaults to "course".
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// CourseRepository is the read side of the course table.
//
// Every method returns records keyed by CourseColumns. Byte slices from the
// driver are converted to strings; other values are passed through as the
// driver returned them.
type CourseRepository interface {
	// TopLevel returns root courses whose lower-cased name contains nameLike
	// (lower-cased), ordered by id. A root has a NULL parent_id or one that
	// names no existing course.
	TopLevel(ctx context.Context, nameLike string) ([]record.Record, error)

	// ChildrenOf returns the direct children of parentID, ordered by id.
	ChildrenOf(ctx context.Context, parentID any) ([]record.Record, error)

	// ListAll returns every course, ordered by id.
	ListAll(ctx context.Context) ([]record.Record, error)

	Close()
}

type factory func(ctx context.Context, cfg Config) (CourseRepository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register makes a backend available under kind.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens the backend selected by cfg.Kind.
//
// Errors:
//   - cfg.Kind empty or not registered.
//   - whatever the backend returns while connecting.
func New(ctx context.Context, cfg Config) (CourseRepository, error) {
	kind := NormalizeKind(cfg.Kind)
	if kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}
	if cfg.Table == "" {
		cfg.Table = "course"
	}
	cfg.Kind = kind

	mu.RLock()
	f := factories[kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage kind=%s (registered: %s)", kind, strings.Join(Kinds(), ", "))
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backends, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizeKind maps aliases onto canonical backend kinds.
func NormalizeKind(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "postgresql", "pgx":
		return "postgres"
	case "sqlserver":
		return "mssql"
	case "mariadb":
		return "mysql"
	}
	return s
}
