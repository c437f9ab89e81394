package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out Cents
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half away from zero
		{"-1.005", -101, true},
		{" 2.50 ", 250, true},
		{"-4.99", -499, true},
		{"+3", 300, true},
		{"$12.30", 1230, true},
		{"-$5", -500, true},
		{"(7.25)", -725, true},
		{"", 0, true},
		{"   ", 0, true},
		{"0", 0, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"--1", 0, false},
		{"$", 0, false},
		{"$1,234.50", 123450, true},
		{"-1,234,567.89", -123456789, true},
		{"1,234", 0, false},
		{"-1,500", 0, false},
		{"1,2,3", 0, false},
		{"12,34.5", 0, false},
		{"1.234,5", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error, got %d", tc.in, got)
			}
		}
	}
}

func TestFromFloat(t *testing.T) {
	cases := []struct {
		in  float64
		out Cents
	}{
		{0.1 + 0.2, 30},
		{-4.99, -499},
		{12.345, 1235},
		{1994, 199400},
	}
	for _, tc := range cases {
		got, err := FromFloat(tc.in)
		if err != nil || got != tc.out {
			t.Fatalf("%v expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
		}
	}
}

func TestCentsString(t *testing.T) {
	cases := map[Cents]string{
		0:     "0.00",
		1:     "0.01",
		1230:  "12.30",
		-400:  "-4.00",
		-5:    "-0.05",
		99999: "999.99",
	}
	for in, want := range cases {
		if got := in.String(); got != want {
			t.Errorf("Cents(%d).String() = %q, want %q", int64(in), got, want)
		}
	}
}
