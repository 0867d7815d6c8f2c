package models

import (
	"strings"
	"testing"
	"time"
)

func TestBuildReferralCode_Format(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	code := BuildReferralCode(7, 42, at)
	if code != "AFF-7-42-1700000000000" {
		t.Fatalf("unexpected code: %q", code)
	}
	if !strings.HasPrefix(code, "AFF-") {
		t.Fatalf("code must carry the AFF prefix: %q", code)
	}
}

func TestBuildReferralCode_DistinctAcrossTime(t *testing.T) {
	base := time.UnixMilli(1700000000000)
	a := BuildReferralCode(1, 2, base)
	b := BuildReferralCode(1, 2, base.Add(time.Millisecond))
	if a == b {
		t.Fatalf("same affiliate/product at different instants must differ: %q", a)
	}
}

func TestAppendReferralParam(t *testing.T) {
	cases := []struct {
		url  string
		code string
		want string
	}{
		{"https://shop.test/p/1", "AFF-1-1-9", "https://shop.test/p/1?ref=AFF-1-1-9"},
		{"https://shop.test/p/1?color=red", "AFF-1-1-9", "https://shop.test/p/1?color=red&ref=AFF-1-1-9"},
	}
	for _, tc := range cases {
		if got := AppendReferralParam(tc.url, tc.code); got != tc.want {
			t.Fatalf("AppendReferralParam(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
