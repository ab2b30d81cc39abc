package scrapeerrors

import "testing"

func TestValidateCategoryName(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"Resistors", false},
		{"Capacitors / Ceramic", false},
		{"", true},
		{"../etc/passwd", true},
		{"a//b", true},
		{"null\x00byte", true},
	}
	for _, tc := range cases {
		err := ValidateCategoryName(tc.name)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateCategoryName(%q) error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestValidateCategoryNameTooLong(t *testing.T) {
	long := make([]byte, 257)
	for i := range long {
		long[i] = 'a'
	}
	if err := ValidateCategoryName(string(long)); err == nil {
		t.Fatalf("expected error for over-long category name")
	}
}

func TestValidateAttributeName(t *testing.T) {
	if err := ValidateAttributeName(""); err == nil {
		t.Fatalf("expected error for empty attribute name")
	}
	if err := ValidateAttributeName("Resistance"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateSaveDir(t *testing.T) {
	cases := []struct {
		path    string
		wantErr bool
	}{
		{"./output", false},
		{"/abs/output", false},
		{"", true},
		{"../escape", true},
	}
	for _, tc := range cases {
		err := ValidateSaveDir(tc.path)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateSaveDir(%q) error = %v, wantErr %v", tc.path, err, tc.wantErr)
		}
	}
}

func TestSanitizeCategoryFilename(t *testing.T) {
	// Every non-alphanumeric codepoint becomes its own underscore — runs
	// are never collapsed and edges are never trimmed (spec.md §6).
	cases := map[string]string{
		"Resistors":             "resistors",
		"Capacitors / Ceramic":  "capacitors___ceramic",
		"  Leading/Trailing  ":  "__leading_trailing__",
		"Multi---Dash__Spaces":  "multi___dash__spaces",
	}
	for in, want := range cases {
		if got := SanitizeCategoryFilename(in); got != want {
			t.Errorf("SanitizeCategoryFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeCategoryFilenameIsIdempotent(t *testing.T) {
	inputs := []string{"Resistors", "Capacitors / Ceramic", "  Leading/Trailing  ", "Multi---Dash__Spaces"}
	for _, in := range inputs {
		once := SanitizeCategoryFilename(in)
		twice := SanitizeCategoryFilename(once)
		if once != twice {
			t.Errorf("Sanitize(Sanitize(%q)) = %q, want %q (idempotence)", in, twice, once)
		}
	}
}
