package pkgconfig

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		// Basic version comparisons
		{"7.0", "7.1", -1},
		{"7.1", "7.0", 1},
		{"7.0", "7.0", 0},

		// Multi-part versions
		{"7.0.10", "7.0", 1},
		{"7.1.1", "7.1", 1},
		{"7.1.0", "7.1", 1},
		{"6.9.12", "7.0", -1},
		{"7.2", "7.1", 1},

		// Numeric comparison (not lexicographic)
		{"1.10", "1.9", 1},
		{"1.2", "1.10", -1},
		{"10", "9", 1},

		// Leading zeros
		{"1.01", "1.1", 0},
		{"01", "1", 0},

		// Empty strings
		{"", "", 0},
		{"1", "", 1},
		{"", "1", -1},

		// Separators only split segments
		{"1.0-1", "1.0.1", 0},
		{"7.1.1-29", "7.1.1-3", 1},

		// Letters vs numbers
		{"a", "1", -1},
		{"1", "a", 1},
		{"1.0a", "1.0", 1},
		{"1.0alpha", "1.0beta", -1},
		{"1.0alpha1", "1.0alpha2", -1},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareAntisymmetric(t *testing.T) {
	vs := []string{"", "1", "7.0", "7.0.10", "7.1", "7.1.1", "7.1.1-29", "7.2", "1.0a", "a"}
	for _, a := range vs {
		for _, b := range vs {
			if Compare(a, b) != -Compare(b, a) {
				t.Errorf("Compare(%q, %q) = %d but Compare(%q, %q) = %d", a, b, Compare(a, b), b, a, Compare(b, a))
			}
		}
	}
}

func TestNewRange(t *testing.T) {
	r, err := NewRange(MinVersion, MaxVersion)
	if err != nil {
		t.Fatalf("NewRange(%s, %s): %v", MinVersion, MaxVersion, err)
	}
	if r.String() != "[7.0, 7.1]" {
		t.Errorf("String() = %q", r)
	}
	for _, bad := range [][2]string{{"7.1", "7.0"}, {"seven", "7.1"}, {"7.0", ""}} {
		if _, err := NewRange(bad[0], bad[1]); err == nil {
			t.Errorf("NewRange(%q, %q) succeeded", bad[0], bad[1])
		}
	}
}

func TestRangeContains(t *testing.T) {
	r := Range{Min: "7.0", Max: "7.1"}
	tests := map[string]bool{
		"6.9.13": false,
		"7.0":    true,
		"7.0.11": true,
		"7.1":    true,
		"7.1.1":  false,
		"7.2":    false,
	}
	for v, want := range tests {
		if got := r.Contains(v); got != want {
			t.Errorf("Contains(%q) = %v, want %v", v, got, want)
		}
	}
}
