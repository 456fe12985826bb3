package canon

import (
	"testing"
	"time"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		in   any
		def  bool
		want bool
	}{
		{true, false, true},
		{false, true, false},
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"y", false, true},
		{"t", false, true},
		{"si", false, true},
		{"sí", false, true},
		{" Si ", false, true},
		{"no", true, false},
		{"0", true, false},
		{"false", true, false},
		{"", true, true},
		{"", false, false},
		{nil, true, true},
		{nil, false, false},
		{float64(1), false, true},
		{float64(0), true, false},
	}
	for _, c := range cases {
		if got := Truthy(c.in, c.def); got != c.want {
			t.Errorf("Truthy(%#v, %v) = %v, want %v", c.in, c.def, got, c.want)
		}
	}
}

func TestKey(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{" P-100 ", "P-100"},
		{float64(1), "1"},
		{float64(10042), "10042"},
		{float64(1.5), "1.5"},
		{42, "42"},
		{int64(7), "7"},
		{nil, ""},
	}
	for _, c := range cases {
		if got := Key(c.in); got != c.want {
			t.Errorf("Key(%#v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	iso, ok := ParseDate("2025-01-02")
	if !ok || iso.Format("2006-01-02") != "2025-01-02" {
		t.Fatalf("ISO form not accepted: %v %v", iso, ok)
	}

	dmy, ok := ParseDate("2/1/2025")
	if !ok {
		t.Fatalf("D/M/YYYY form not accepted")
	}
	if !dmy.Equal(iso) {
		t.Errorf("2/1/2025 parsed as %v, want %v", dmy, iso)
	}

	if _, ok := ParseDate("2025/01/02"); ok {
		t.Errorf("slash-ISO should be rejected")
	}
	if _, ok := ParseDate("01-02-2025"); ok {
		t.Errorf("dashed D-M-YYYY should be rejected")
	}
	if _, ok := ParseDate(""); ok {
		t.Errorf("empty string should be rejected")
	}
	if _, ok := ParseDate(nil); ok {
		t.Errorf("nil should be rejected")
	}
}

func TestISODate(t *testing.T) {
	if got := ISODate("31/12/2024"); got != "2024-12-31" {
		t.Errorf("ISODate D/M form = %q", got)
	}
	if got := ISODate("2024-12-31"); got != "2024-12-31" {
		t.Errorf("ISODate ISO form = %q", got)
	}
	if got := ISODate("garbage"); got != "" {
		t.Errorf("ISODate garbage = %q", got)
	}
}

func TestDMY(t *testing.T) {
	d := time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC)
	if got := DMY(d); got != "7/3/2025" {
		t.Errorf("DMY = %q, want 7/3/2025", got)
	}
}

func TestUpper(t *testing.T) {
	if got := Upper(" activa "); got != "ACTIVA" {
		t.Errorf("Upper = %q", got)
	}
	if got := Upper(nil); got != "" {
		t.Errorf("Upper(nil) = %q", got)
	}
}
