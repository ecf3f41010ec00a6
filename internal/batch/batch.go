// Package batch hands grouped records to a sink, one call per group.
//
// WriteGroups is the only dispatcher the jobs use: it walks a classify.Group
// in key order, routes the Unclassified key to a review sink, and keeps going
// when a sink fails. Every failure ends up in three places: the audit log, the
// metrics backend and the returned Summary.
package batch

import (
	"context"
	"errors"
	"fmt"

	"eduetl/internal/audit"
	"eduetl/internal/classify"
	"eduetl/internal/metrics"
	"eduetl/internal/record"

	"go.uber.org/zap"
)

// ErrSinkWrite marks a group the sink could not persist.
var ErrSinkWrite = errors.New("sink write failed")

// WriteError carries the key of the group that failed.
type WriteError struct {
	Key classify.Key
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write group %s: %v", e.Key, e.Err)
}

func (e *WriteError) Is(target error) bool { return target == ErrSinkWrite }
func (e *WriteError) Unwrap() error        { return e.Err }

// GroupSink persists one group of T.
type GroupSink[T any] interface {
	WriteGroup(ctx context.Context, key classify.Key, members []T) error
}

// Sink is the record-oriented sink used by most jobs.
type Sink interface {
	GroupSink[record.Record]
}

// SinkFunc adapts a function to GroupSink.
type SinkFunc[T any] func(ctx context.Context, key classify.Key, members []T) error

func (f SinkFunc[T]) WriteGroup(ctx context.Context, key classify.Key, members []T) error {
	return f(ctx, key, members)
}

// Options tunes WriteGroups. The zero value is usable.
type Options[T any] struct {
	// Source names the input in audit entries.
	Source string

	// Review receives the Unclassified group. When nil the members are only
	// audited.
	Review GroupSink[T]

	// RecordID extracts the id logged for an unclassified member.
	RecordID func(T) any

	Audit  *audit.Log
	Logger *zap.Logger
}

// Summary counts what WriteGroups did.
type Summary struct {
	Groups  int // groups handed to a sink
	Written int // groups the sink accepted
	Failed  int // groups the sink rejected
	Records int // members of accepted groups
	Review  int // members routed to review (or only audited)

	Errors []error // one *WriteError per failed group
}

// WriteGroups calls sink.WriteGroup once per key of g, in g's key order.
//
// A failing group is wrapped in a *WriteError (errors.Is ErrSinkWrite), audited
// and counted; the remaining groups are still written. Nothing is retried.
//
// Errors:
//   - Only context cancellation is returned as an error. Sink failures are
//     reported through Summary.Errors.
func WriteGroups[T any](ctx context.Context, g *classify.Group[T], sink GroupSink[T], opts Options[T]) (Summary, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var sum Summary

	for _, k := range g.Keys() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		members := g.Get(k)
		if len(members) == 0 {
			continue
		}

		target := sink
		if k.IsUnclassified() {
			auditUnclassified(opts, members)
			sum.Review += len(members)
			metrics.RecordRecords("unclassified", len(members))
			if opts.Review == nil {
				log.Warn("unclassified records left for review",
					zap.String("source", opts.Source), zap.Int("count", len(members)))
				continue
			}
			target = opts.Review
		}

		sum.Groups++
		if err := target.WriteGroup(ctx, k, members); err != nil {
			werr := &WriteError{Key: k, Err: err}
			sum.Failed++
			sum.Errors = append(sum.Errors, werr)
			opts.Audit.Append(audit.Entry{
				Kind:   audit.KindSinkWrite,
				Source: opts.Source,
				Key:    k.String(),
				Err:    err,
			})
			metrics.RecordGroup(false)
			log.Warn("group write failed",
				zap.String("key", k.String()), zap.Int("records", len(members)), zap.Error(err))
			continue
		}
		sum.Written++
		sum.Records += len(members)
		metrics.RecordGroup(true)
		metrics.RecordRecords("written", len(members))
		log.Debug("group written", zap.String("key", k.String()), zap.Int("records", len(members)))
	}
	return sum, nil
}

func auditUnclassified[T any](opts Options[T], members []T) {
	for _, m := range members {
		var id any
		if opts.RecordID != nil {
			id = opts.RecordID(m)
		}
		opts.Audit.Append(audit.Entry{
			Kind:     audit.KindUnclassified,
			Source:   opts.Source,
			RecordID: id,
			Key:      classify.Unclassified.String(),
		})
	}
}
