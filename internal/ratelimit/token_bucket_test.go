package ratelimit

import (
	"testing"
	"time"
)

func TestNewRedisTokenBucketValidates(t *testing.T) {
	if _, err := NewRedisTokenBucket(nil, 10, time.Minute, ""); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestUploadCost(t *testing.T) {
	cases := []struct {
		size, unit int64
		want       int
	}{
		{0, 1 << 20, 1},
		{1, 1 << 20, 1},
		{1 << 20, 1 << 20, 1},
		{1<<20 + 1, 1 << 20, 2},
		{5_000_000, 1 << 20, 5},
		{100, 0, 1},
	}
	for _, tc := range cases {
		if got := UploadCost(tc.size, tc.unit); got != tc.want {
			t.Fatalf("UploadCost(%d, %d) = %d, want %d", tc.size, tc.unit, got, tc.want)
		}
	}
}

func TestToInt64(t *testing.T) {
	for _, in := range []any{int64(7), 7, float64(7), "7"} {
		got, err := toInt64(in)
		if err != nil || got != 7 {
			t.Fatalf("toInt64(%#v) = %d, %v", in, got, err)
		}
	}
	if _, err := toInt64([]byte("7")); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
