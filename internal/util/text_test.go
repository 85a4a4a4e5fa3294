package util

import "testing"

func TestDigitsOnly(t *testing.T) {
	cases := map[string]string{
		"12":       "12",
		`ID-0017"`: "0017",
		"a1b2c3":   "123",
		"none":     "",
		"١٢":       "",
	}
	for in, want := range cases {
		if got := DigitsOnly(in); got != want {
			t.Fatalf("DigitsOnly(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsDigits(t *testing.T) {
	if !IsDigits("0042") {
		t.Fatal("expected digits")
	}
	for _, s := range []string{"", " 42", "4 2", "-1", "42a"} {
		if IsDigits(s) {
			t.Fatalf("%q should not be digits", s)
		}
	}
}

func TestUnquote(t *testing.T) {
	cases := map[string]string{
		` "Printer A" `: "Printer A",
		`""x""`:         "x",
		`"`:             "",
		`a"b`:           `a"b`,
	}
	for in, want := range cases {
		if got := Unquote(in); got != want {
			t.Fatalf("Unquote(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	got, cut := TruncateRunes("héllo", 3)
	if got != "hél" || !cut {
		t.Fatalf("got %q %v", got, cut)
	}
	got, cut = TruncateRunes("abc", 3)
	if got != "abc" || cut {
		t.Fatalf("got %q %v", got, cut)
	}
	got, cut = TruncateRunes("abc", -1)
	if got != "" || !cut {
		t.Fatalf("got %q %v", got, cut)
	}
}
