package logging

import (
	"context"
	"log/slog"
	"slices"
	"strings"
)

// field is one leaf attribute and the group path leading to it.
type field struct {
	path  []string
	value slog.Value
}

func (f field) key(sep string) string {
	return strings.Join(f.path, sep)
}

// leafHandler holds the level, bound attributes and open groups shared by
// the buffer and journal sinks. emit receives every attribute of a record
// resolved to a leaf, bound ones first.
type leafHandler struct {
	level  slog.Leveler
	bound  []field
	groups []string
	emit   func(r slog.Record, fields []field) error
}

func (h *leafHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *leafHandler) Handle(_ context.Context, r slog.Record) error {
	fields := slices.Clip(h.bound)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendLeaves(fields, h.groups, a)
		return true
	})
	return h.emit(r, fields)
}

// WithAttrs qualifies attrs by the groups open now, not by ones opened later.
func (h *leafHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.bound = slices.Clip(h.bound)
	for _, a := range attrs {
		next.bound = appendLeaves(next.bound, h.groups, a)
	}
	return &next
}

func (h *leafHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(slices.Clip(h.groups), name)
	return &next
}

func appendLeaves(dst []field, groups []string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() != slog.KindGroup {
		return append(dst, field{path: append(slices.Clip(groups), a.Key), value: a.Value})
	}

	path := groups
	if a.Key != "" {
		path = append(slices.Clip(groups), a.Key)
	}
	for _, inner := range a.Value.Group() {
		dst = appendLeaves(dst, path, inner)
	}
	return dst
}
