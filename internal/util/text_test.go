package util

import "testing"

func TestCleanAmount(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "currency and thousands", input: "$1,234.56 total", want: "1234.56"},
		{name: "plain", input: "45.00", want: "45.00"},
		{name: "rupee abbreviation", input: "Rs. 45.00", want: "45.00"},
		{name: "no digits", input: "free", want: ""},
		{name: "euro comma", input: "€12", want: "12"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanAmount(tc.input); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	if v, ok := ParseAmount("1234.56"); !ok || v != 1234.56 {
		t.Fatalf("got %v %v", v, ok)
	}
	if _, ok := ParseAmount(""); ok {
		t.Fatal("empty must not parse")
	}
	if _, ok := ParseAmount("."); ok {
		t.Fatal("lone dot must not parse")
	}
	if _, ok := ParseAmount("-5"); ok {
		t.Fatal("negative must not parse")
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	if got := Truncate("café au lait", 4); got != "café" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("short", 50); got != "short" {
		t.Fatalf("got %q", got)
	}
}

func TestFirstWords(t *testing.T) {
	if got := FirstWords("  coffee   maker deluxe edition", 2); got != "coffee maker" {
		t.Fatalf("got %q", got)
	}
	if got := FirstWords("kettle", 2); got != "kettle" {
		t.Fatalf("got %q", got)
	}
}

func TestStripURLsAndSpaces(t *testing.T) {
	in := "Thanks!\n\nVisit https://store.example.com/r/1 or www.example.com   today"
	got := NormalizeSpaces(StripURLs(in))
	if got != "Thanks! Visit or today" {
		t.Fatalf("got %q", got)
	}
}

func TestIsPlaceholder(t *testing.T) {
	for _, v := range []string{"", " Unknown ", "N/A", "null"} {
		if !IsPlaceholder(v) {
			t.Fatalf("%q should be a placeholder", v)
		}
	}
	if IsPlaceholder("98-123") {
		t.Fatal("real receipt number flagged as placeholder")
	}
}

func TestDiceCoefficient(t *testing.T) {
	if DiceCoefficient("equipment", "equipment") != 1 {
		t.Fatal("identical strings must score 1")
	}
	if DiceCoefficient("equipment", "equipmnt") <= DiceCoefficient("equipment", "carpenter") {
		t.Fatal("near miss should outscore unrelated word")
	}
}
