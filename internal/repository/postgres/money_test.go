package postgres

import "testing"

func TestNumericStringToCents(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"100.00", 10000, false},
		{"0.05", 5, false},
		{"-12.34", -1234, false},
		{" 7.5 ", 750, false},
		{"100", 10000, false},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := numericStringToCents(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("numericStringToCents(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("numericStringToCents(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("numericStringToCents(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCentsToNumericString(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{10000, "100.00"},
		{5, "0.05"},
		{-1234, "-12.34"},
		{0, "0.00"},
	}
	for _, tt := range tests {
		if got := centsToNumericString(tt.in); got != tt.want {
			t.Errorf("centsToNumericString(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMoneyRoundTrip(t *testing.T) {
	for _, cents := range []int64{1, 99, 100, 12345, 1000000} {
		s := centsToNumericString(cents)
		back, err := numericStringToCents(s)
		if err != nil {
			t.Fatalf("round trip %d: %v", cents, err)
		}
		if back != cents {
			t.Errorf("round trip %d -> %q -> %d", cents, s, back)
		}
	}
}
