package sqlcollector

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestToInt64(t *testing.T) {
	cases := []struct {
		in   any
		want int64
		ok   bool
	}{
		{int64(42), 42, true},
		{int32(7), 7, true},
		{int(3), 3, true},
		{float64(9), 9, true},
		{[]byte("123"), 123, true},
		{"not a number", 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := toInt64(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("toInt64(%#v) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestToTime(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	if got, ok := toTime(now); !ok || !got.Equal(now) {
		t.Fatalf("expected a direct time.Time to pass through, got %v ok=%v", got, ok)
	}
	if got, ok := toTime(now.Format(time.RFC3339)); !ok || !got.Equal(now) {
		t.Fatalf("expected RFC3339 string to parse, got %v ok=%v", got, ok)
	}
	if got, ok := toTime([]byte("2024-01-15 10:00:00")); !ok || !got.Equal(now) {
		t.Fatalf("expected space-separated timestamp to parse, got %v ok=%v", got, ok)
	}
	if _, ok := toTime(42); ok {
		t.Fatalf("expected an unsupported type to fail")
	}
}

func TestClassify(t *testing.T) {
	if classify(context.DeadlineExceeded) != "TIMEOUT" {
		t.Fatalf("expected context.DeadlineExceeded to classify as TIMEOUT")
	}
	if classify(sql.ErrConnDone) != "CONNECTION_FAILED" {
		t.Fatalf("expected sql.ErrConnDone to classify as CONNECTION_FAILED")
	}
	if classify(errors.New("boom")) != "QUERY_FAILED" {
		t.Fatalf("expected an unrecognized error to classify as QUERY_FAILED")
	}
}
