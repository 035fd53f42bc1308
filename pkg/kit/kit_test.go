package kit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestChainOrder(t *testing.T) {
	var calls []string
	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				calls = append(calls, name)
				return next(ctx, req)
			}
		}
	}
	ep := Chain(mw("a"), mw("b"), mw("c"))(func(_ context.Context, req any) (any, error) {
		calls = append(calls, "endpoint")
		return req, nil
	})
	resp, err := ep(context.Background(), 42)
	if err != nil || resp != 42 {
		t.Fatalf("resp = %v, err = %v", resp, err)
	}
	if got := strings.Join(calls, ","); got != "a,b,c,endpoint" {
		t.Errorf("calls = %s", got)
	}
}

func TestTransportDefault(t *testing.T) {
	ctx := context.Background()
	if got := GetTransport(ctx); got != TransportHTTP {
		t.Errorf("default transport = %q", got)
	}
	if got := GetTransport(WithTransport(ctx, TransportMCP)); got != TransportMCP {
		t.Errorf("transport = %q", got)
	}
	if got := GetRequestID(WithRequestID(ctx, "r1")); got != "r1" {
		t.Errorf("request id = %q", got)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ok := Logging(logger, "classify")(func(context.Context, any) (any, error) { return "x", nil })
	if _, err := ok(WithRequestID(context.Background(), "r1"), nil); err != nil {
		t.Fatalf("ok: %v", err)
	}
	failing := Logging(logger, "trend")(func(context.Context, any) (any, error) { return nil, errors.New("boom") })
	if _, err := failing(context.Background(), nil); err == nil {
		t.Fatal("expected the error to pass through")
	}

	out := buf.String()
	for _, want := range []string{"endpoint=classify", "request_id=r1", "level=WARN", "endpoint=trend", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestArgs(t *testing.T) {
	args := map[string]any{
		"codes":   " 75, 92 ,, 2A ",
		"list":    []any{"a", " b ", 3.0, ""},
		"annee":   2022.0,
		"prix":    "1 500",
		"virgule": "0,5",
		"bad":     true,
	}

	if got := ListArg(args, "codes"); strings.Join(got, "|") != "75|92|2A" {
		t.Errorf("codes = %q", got)
	}
	if got := ListArg(args, "list"); strings.Join(got, "|") != "a|b" {
		t.Errorf("list = %q", got)
	}
	if got := ListArg(args, "absent"); got != nil {
		t.Errorf("absent = %q", got)
	}
	if got := StringArg(args, "annee"); got != "2022" {
		t.Errorf("annee as string = %q", got)
	}

	tests := []struct {
		name    string
		want    float64
		wantErr bool
	}{
		{"annee", 2022, false},
		{"virgule", 0.5, false},
		{"absent", 0, false},
		{"prix", 0, true},
		{"bad", 0, true},
	}
	for _, tt := range tests {
		got, err := NumberArg(args, tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("NumberArg(%s) = %v, %v; want %v, err %v", tt.name, got, err, tt.want, tt.wantErr)
		}
	}
}
