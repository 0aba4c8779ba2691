package watch

import (
	"reflect"
	"testing"
)

func TestMatchVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		text     string
		keywords []string
		want     []string
	}{
		{name: "simple hit", text: "I sell BTC now", keywords: []string{"btc"}, want: []string{"btc"}},
		{name: "no hit", text: "hello", keywords: []string{"btc"}, want: nil},
		{name: "case insensitive", text: "BiTcOiN deals", keywords: []string{"bitcoin"}, want: []string{"bitcoin"}},
		{name: "multiple hits keep keyword order", text: "selling eth and btc", keywords: []string{"btc", "eth"}, want: []string{"btc", "eth"}},
		{name: "substring containment", text: "airdropping", keywords: []string{"drop"}, want: []string{"drop"}},
		{name: "empty text", text: "", keywords: []string{"btc"}, want: nil},
		{name: "empty keyword set", text: "anything", keywords: nil, want: nil},
		{name: "duplicate keywords match twice", text: "btc", keywords: []string{"btc", "btc"}, want: []string{"btc", "btc"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.text, tt.keywords)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Match(%q, %v) = %v, want %v", tt.text, tt.keywords, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	got := Normalize([]string{" BTC ", "", "Eth", "  ", "продам"})
	want := []string{"btc", "eth", "продам"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize = %v, want %v", got, want)
	}
}

func TestKeywordsSetSnapshot(t *testing.T) {
	t.Parallel()
	k := NewKeywords(nil, nopLogger())
	k.Set([]string{"BTC", " eth "})

	snap := k.Snapshot()
	want := []string{"btc", "eth"}
	if !reflect.DeepEqual(snap, want) {
		t.Fatalf("Snapshot = %v, want %v", snap, want)
	}

	// Mutating the snapshot must not leak into the set.
	snap[0] = "mutated"
	if got := k.Snapshot()[0]; got != "btc" {
		t.Fatalf("snapshot mutation leaked into set: %q", got)
	}
}
