package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestOrderedHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := newLogSink([]io.Writer{buf}, 1024)
	handler := newOrderedHandler(handlerOptions{
		minLevel: slog.LevelInfo,
		out:      sink,
		format:   lineKV,
		order:    append([]string(nil), defaultKeyOrder...),
	})
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	log := slog.New(handler).With("component", "app")
	LogEvent(ctx, log, slog.LevelInfo, "test.event",
		slog.String("status", "ok"),
		slog.String("cause", "unit"),
	)
	if err := sink.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	tokens := strings.Split(line, " ")
	if len(tokens) < 6 {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	expected := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123"}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestOrderedHandlerJSONOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := newLogSink([]io.Writer{buf}, 1024)
	handler := newOrderedHandler(handlerOptions{
		minLevel: slog.LevelInfo,
		out:      sink,
		format:   lineJSON,
		order:    append([]string(nil), defaultKeyOrder...),
	})
	ctx := WithRID(context.Background(), "rid-json")
	ctx = WithUpdateMeta(ctx, 11, 22, 33)

	log := slog.New(handler).With("component", "svc.exchange")
	LogEvent(ctx, log, slog.LevelError, "refresh.failed",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
		slog.String("err_code", "TEST_FAIL"),
	)
	if err := sink.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"svc.exchange"`, `"event":"refresh.failed"`, `"status":"fail"`, `"rid":"rid-json"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestOrderedHandlerCompactRID(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := newLogSink([]io.Writer{buf}, 1024)
	handler := newOrderedHandler(handlerOptions{
		minLevel: slog.LevelInfo,
		out:      sink,
		format:   lineKV,
		order:    append([]string(nil), defaultKeyOrder...),
	})
	rawRID := "123:456:789"
	ctx := WithRID(context.Background(), rawRID)
	log := slog.New(handler).With("component", "app")
	LogEvent(ctx, log, slog.LevelInfo, "rid.test",
		slog.String("status", "ok"),
	)
	if err := sink.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", line)
	}
	if strings.Contains(line, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", line)
	}
}

func TestCompactRIDPassthrough(t *testing.T) {
	for _, rid := range []string{"", "not-a-rid", "1:2", "a:b:c"} {
		if got := CompactRID(rid); got != rid {
			t.Fatalf("CompactRID(%q) = %q, want unchanged", rid, got)
		}
	}
}

func TestOrderedHandlerDomainKeys(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := newLogSink([]io.Writer{buf}, 1024)
	handler := newOrderedHandler(handlerOptions{
		minLevel: slog.LevelInfo,
		out:      sink,
		format:   lineKV,
		order:    append([]string(nil), defaultKeyOrder...),
	})
	log := slog.New(handler).With("component", "store")
	LogEvent(context.Background(), log, slog.LevelInfo, "scan",
		slog.String("status", "ok"),
		slog.String("table", "shares"),
		slog.Int("count", 120),
		slog.Int("page", 2),
		slog.Int("pages", 3),
	)
	if err := sink.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	// table must be ordered before page/pages/count per the key schema
	ti := strings.Index(line, "table=shares")
	pi := strings.Index(line, "page=2")
	ci := strings.Index(line, "count=120")
	if ti == -1 || pi == -1 || ci == -1 {
		t.Fatalf("missing keys in %s", line)
	}
	if !(ti < pi && pi < ci) {
		t.Fatalf("unexpected key order in %s", line)
	}
}
