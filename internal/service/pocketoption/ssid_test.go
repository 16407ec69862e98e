package pocketoption

import (
	"strings"
	"testing"
)

func TestPreprocessSSIDQuotedUID(t *testing.T) {
	in := `42["auth",{"session":"abc123","isDemo":1,"uid":"118330943","platform":2}]`
	got, err := PreprocessSSID(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `42["auth",{"session":"abc123","isDemo":1,"uid":118330943,"platform":2}]`
	if got != want {
		t.Fatalf("got %s", got)
	}
}

func TestPreprocessSSIDBareUIDUnchanged(t *testing.T) {
	in := `42["auth",{"session":"abc123","isDemo":1,"uid":118330943,"platform":2}]`
	got, err := PreprocessSSID(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != in {
		t.Fatalf("expected input unchanged, got %s", got)
	}
}

func TestPreprocessSSIDKeepsKeyOrder(t *testing.T) {
	in := `42["auth",{"uid":"7","session":"s1","platform":2,"isDemo":0}]`
	got, err := PreprocessSSID(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, `42["auth",{"uid":7,"session":"s1"`) {
		t.Fatalf("key order not preserved: %s", got)
	}
}

func TestPreprocessSSIDRejectsBadFrame(t *testing.T) {
	cases := []string{
		"",
		"not a frame",
		`42["auth",{"isDemo":1}]`,
		`42["auth",{"session":"s","uid":"abc"}]`,
	}
	for _, in := range cases {
		if _, err := PreprocessSSID(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}
