package normalize

import "testing"

func TestNormalizeIdempotent(t *testing.T) {
	cases := []string{
		"What is the refund policy?",
		"  The REFUND   policy, please!! ",
		"an employee's leave entitlement",
		"",
		"???",
	}
	for _, c := range cases {
		once := Normalize(c)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: once=%q twice=%q", c, once, twice)
		}
	}
}

func TestNormalizeCollapsesVariants(t *testing.T) {
	got := Normalize("The REFUND policy?")
	want := Normalize("the refund   policy?")
	if got != want {
		t.Errorf("expected equivalent normalization, got %q vs %q", got, want)
	}
}

func TestNormalizeStripsLeadingArticle(t *testing.T) {
	if got := Normalize("The leave policy"); got != "leave policy" {
		t.Errorf("expected leading article stripped, got %q", got)
	}
	if got := Normalize("a leave policy"); got != "leave policy" {
		t.Errorf("expected leading article stripped, got %q", got)
	}
	if got := Normalize("an employee leave policy"); got != "employee leave policy" {
		t.Errorf("expected leading article stripped, got %q", got)
	}
}

func TestNormalizeKeepsQuestionMark(t *testing.T) {
	if got := Normalize("Is this covered?"); got != "is this covered?" {
		t.Errorf("expected question mark retained, got %q", got)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if got := Normalize("   "); got != "" {
		t.Errorf("expected empty result for whitespace-only input, got %q", got)
	}
}
