package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type lineFormat string

const (
	lineJSON lineFormat = "json"
	lineKV   lineFormat = "kv"

	tsLayout = "2006-01-02T15:04:05.000Z07:00"
)

type handlerOptions struct {
	minLevel slog.Leveler
	out      *logSink
	format   lineFormat
	order    []string
}

// orderedHandler renders records as single lines with a stable key order,
// either JSON or key=value.
type orderedHandler struct {
	opts   handlerOptions
	bound  []slog.Attr
	groups []string
}

func newOrderedHandler(opts handlerOptions) *orderedHandler {
	if opts.minLevel == nil {
		opts.minLevel = slog.LevelInfo
	}
	if opts.order == nil {
		opts.order = append([]string(nil), defaultKeyOrder...)
	}
	return &orderedHandler{opts: opts}
}

func (h *orderedHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.minLevel.Level()
}

// Handle flattens the record into a field map, folds in context metadata
// and writes one line to the sink.
func (h *orderedHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.opts.out == nil {
		return fmt.Errorf("logger: sink not initialized")
	}

	asJSON := h.opts.format == lineJSON
	fields := make(map[string]any, 16)
	when := r.Time.UTC()
	fields["ts"] = when.Truncate(time.Millisecond).Format(tsLayout)
	fields["level"] = normalizeLevel(r.Level.String())
	if asJSON {
		fields["ts_unix_nano"] = when.UnixNano()
	}

	for _, a := range h.bound {
		h.absorb(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.absorb(fields, a)
		return true
	})

	foldContext(ctx, fields)

	if rid, ok := stringField(fields, "rid"); ok && rid != "" {
		compact := CompactRID(rid)
		if compact != "" && compact != rid {
			if asJSON {
				if _, seen := fields["rid_full"]; !seen {
					fields["rid_full"] = rid
				}
			}
			fields["rid"] = compact
		}
	}

	// Every line carries an event and a component even when the call
	// site forgot them.
	if event, ok := stringField(fields, "event"); !ok || event == "" {
		if r.Message != "" {
			fields["event"] = r.Message
		} else {
			fields["event"] = "unknown"
		}
	}
	if component, ok := stringField(fields, "component"); !ok || component == "" {
		fields["component"] = "app"
	}

	normalizeEnums(fields)
	dropEmpty(fields)

	var (
		line []byte
		err  error
	)
	if asJSON {
		line, err = renderJSON(fields, h.opts.order)
	} else {
		line = renderKV(fields, h.opts.order)
	}
	if err != nil {
		return err
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}
	return h.opts.out.Write(line)
}

func (h *orderedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.bound = append(append([]slog.Attr(nil), h.bound...), attrs...)
	return &clone
}

func (h *orderedHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *orderedHandler) absorb(fields map[string]any, attr slog.Attr) {
	prefix := strings.Join(h.groups, ".")
	walkAttr(prefix, attr, func(k string, v slog.Value) {
		key, val, ok := coerce(k, v)
		if !ok {
			return
		}
		fields[key] = val
	})
}

// walkAttr descends into groups, emitting dotted keys for leaves.
func walkAttr(prefix string, attr slog.Attr, emit func(string, slog.Value)) {
	key := attr.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, child := range attr.Value.Group() {
			walkAttr(key, child, emit)
		}
		return
	}
	if key != "" {
		emit(key, attr.Value)
	}
}

func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_duration"):
		return strings.TrimSuffix(key, "_duration") + "_duration_ms"
	case !strings.HasSuffix(key, "_ms"):
		return key + "_ms"
	}
	return key
}

// coerce converts a slog value into a plain field value. Durations are
// logged as integer milliseconds under a *_ms key.
func coerce(key string, val slog.Value) (string, any, bool) {
	if key == "" {
		return "", nil, false
	}
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		u := val.Uint64()
		if u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, u, true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	case slog.KindAny:
		switch x := val.Any().(type) {
		case error:
			return key, x.Error(), true
		case string:
			return key, strings.TrimSpace(x), true
		case time.Duration:
			return durationKey(key), RoundMS(x).Milliseconds(), true
		case fmt.Stringer:
			return key, x.String(), true
		case nil:
			return key, nil, false
		default:
			return key, fmt.Sprint(x), true
		}
	default:
		return key, val.Any(), true
	}
}

func normalizeEnums(fields map[string]any) {
	if level, ok := stringField(fields, "level"); ok {
		fields["level"] = normalizeLevel(level)
	}
	if s, ok := stringField(fields, "status"); ok && s != "" {
		if mapped, known := normalizeStatus(s); known {
			fields["status"] = mapped
		} else {
			fields["status"] = s
		}
	}
	if o, ok := stringField(fields, "outcome"); ok && o != "" {
		if mapped, known := normalizeOutcome(o); known {
			fields["outcome"] = mapped
		} else {
			delete(fields, "outcome")
		}
	}
}

func dropEmpty(fields map[string]any) {
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			if val == "" {
				delete(fields, k)
			}
		case fmt.Stringer:
			if val.String() == "" {
				delete(fields, k)
			}
		case nil:
			delete(fields, k)
		}
	}
}

func renderJSON(fields map[string]any, order []string) ([]byte, error) {
	var buf strings.Builder
	buf.WriteByte('{')
	first := true
	written := make(map[string]struct{}, len(fields))
	put := func(k string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
		written[k] = struct{}{}
		return nil
	}
	for _, key := range order {
		if val, ok := fields[key]; ok {
			if err := put(key, val); err != nil {
				return nil, err
			}
		}
	}
	rest := make([]string, 0, len(fields))
	for k := range fields {
		if _, seen := written[k]; !seen {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		if err := put(key, fields[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return []byte(buf.String()), nil
}

func renderKV(fields map[string]any, order []string) []byte {
	var b strings.Builder
	for i, key := range sortKeys(fields, order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(kvValue(fields[key]))
	}
	return []byte(b.String())
}

// sortKeys puts the well-known keys first in order, the rest alphabetically.
func sortKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, key := range order {
		if _, ok := fields[key]; ok {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}
	head := len(keys)
	for key := range fields {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys[head:])
	return keys
}

func kvValue(val any) string {
	switch v := val.(type) {
	case string:
		if v != "" && strings.IndexFunc(v, unsafeKVRune) >= 0 {
			return strconv.Quote(v)
		}
		return v
	case bool:
		return strconv.FormatBool(v)
	case int, int64, uint64, float64:
		return fmt.Sprint(v)
	default:
		s := fmt.Sprint(v)
		if strings.IndexFunc(s, unsafeKVRune) >= 0 {
			return strconv.Quote(s)
		}
		return s
	}
}

func unsafeKVRune(r rune) bool {
	return r <= 32 || r == '=' || r == '"'
}

func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}

// foldContext copies request metadata from the context into the field map
// without overriding explicit attributes.
func foldContext(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	setIfAbsent := func(key string, val any) {
		if _, ok := fields[key]; !ok {
			fields[key] = val
		}
	}
	if rid := RIDFrom(ctx); rid != "" {
		setIfAbsent("rid", rid)
	}
	if uid := UserIDFrom(ctx); uid != 0 {
		setIfAbsent("user_id", uid)
	}
	if updateID := UpdateIDFrom(ctx); updateID != 0 {
		setIfAbsent("update_id", updateID)
	}
	if cid := ChatIDFrom(ctx); cid != 0 {
		setIfAbsent("chat_id", cid)
	}
	if handler := HandlerFrom(ctx); handler != "" {
		setIfAbsent("handler", handler)
	}
}
