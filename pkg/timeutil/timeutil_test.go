package timeutil

import (
	"testing"
	"time"
)

func TestEpochRoundTrip(t *testing.T) {
	now := time.Now().In(time.Local).Round(time.Microsecond)
	epoch := LocalToEpoch(now)
	back := EpochToLocal(epoch)

	if diff := now.Sub(back); diff > time.Microsecond || diff < -time.Microsecond {
		t.Fatalf("round trip drifted: %v -> %v (diff %v)", now, back, diff)
	}
}

func TestTokenizeSeparatesHyphenAdjacentToLetters(t *testing.T) {
	tokens := Tokenize("proxy-s1/squid.20140101.gz")
	want := []string{"proxy", "s1", "squid", "20140101", "gz"}

	if len(tokens) != len(want) {
		t.Fatalf("got %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("got %v, want %v", tokens, want)
		}
	}
}

func TestTokenizeKeepsHyphenBetweenDigits(t *testing.T) {
	tokens := Tokenize("2014-01-31_08-00-00.log")
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %v", tokens)
	}
	if tokens[0] != "2014-01-31" || tokens[1] != "08-00-00" || tokens[2] != "log" {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
}

func TestExtractDefaultEpochShortcut(t *testing.T) {
	got, ok := ExtractDefault("@1400000000")
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	want := ToLocal(time.Unix(1400000000, 0))
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExtractDefaultTokenBased(t *testing.T) {
	got, ok := ExtractDefault("squid.20140101.gz")
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	want := time.Date(2014, 1, 1, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExtractDefaultFails(t *testing.T) {
	if _, ok := ExtractDefault("readme.txt"); ok {
		t.Fatal("expected extraction to fail for a non-temporal filename")
	}
}
