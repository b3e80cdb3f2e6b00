package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		{"", 50, 50},          // absent query param
		{"25", 0, 25},         // plain int
		{"-1", 7, -1},         // negatives parse; clamping is the caller's job
		{"007", 99, 7},        // leading zeros are fine
		{"all", 50, 50},       // junk falls back
		{" 25", 50, 50},       // no trimming
		{"99999999999999999999", 3, 3}, // overflow falls back
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d, want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestClampLimit(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"", 50},     // default page size
		{"10", 10},   // in range
		{"0", 1},     // floor
		{"-5", 1},    // floor
		{"9999", 200}, // cap
		{"junk", 50}, // unparsable falls back before clamping
	}
	for _, tc := range cases {
		if got := ClampLimit(tc.raw, 50, 200); got != tc.want {
			t.Fatalf("ClampLimit(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
