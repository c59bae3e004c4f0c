package tle

import (
	"strings"
	"testing"
	"time"
)

func TestParseMixedForms(t *testing.T) {
	data := strings.Join([]string{
		noaa19Name,
		noaa19Line1,
		noaa19Line2,
		"",
		hiberLine1,
		hiberLine2,
	}, "\r\n")

	entries, err := Parse(strings.NewReader(data), testLogger())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].NORADID != 33591 || entries[0].Name != noaa19Name {
		t.Errorf("entry 0 = %d %q", entries[0].NORADID, entries[0].Name)
	}
	if entries[1].NORADID != 43744 || entries[1].Name != "" {
		t.Errorf("entry 1 = %d %q", entries[1].NORADID, entries[1].Name)
	}
	if entries[0].Line1 != noaa19Line1 || entries[0].Line2 != noaa19Line2 {
		t.Error("entry 0 lines not preserved")
	}
}

func TestParseSkipsInvalidEntries(t *testing.T) {
	badChecksum := noaa19Line2[:68] + "0"
	data := strings.Join([]string{
		"GARBAGE LINE",
		noaa19Name,
		noaa19Line1,
		badChecksum,
		"HIBER-1",
		hiberLine1,
		hiberLine2,
	}, "\n")

	entries, err := Parse(strings.NewReader(data), testLogger())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].NORADID != 43744 || entries[0].Name != "HIBER-1" {
		t.Errorf("entry = %d %q, want 43744 HIBER-1", entries[0].NORADID, entries[0].Name)
	}

	_, skipped, err := ParseCounted(strings.NewReader(data), testLogger())
	if err != nil {
		t.Fatalf("ParseCounted: %v", err)
	}
	// The garbage line and the NOAA 19 set with the bad checksum.
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
}

func TestParseEmpty(t *testing.T) {
	entries, err := Parse(strings.NewReader(""), testLogger())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestParseEpoch(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"24001.00000000", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"24100.50000000", time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC), false},
		{"57001.00000000", time.Date(1957, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"56366.00000000", time.Date(2056, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{"24000.50000000", time.Time{}, true},
		{"24", time.Time{}, true},
		{"xx001.0", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseEpoch(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEpoch: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRangeOf(t *testing.T) {
	entries, err := Parse(strings.NewReader(noaa19Line1+"\n"+noaa19Line2+"\n"+hiberLine1+"\n"+hiberLine2), testLogger())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r := RangeOf(entries)
	if !r.Min.Equal(entries[1].Epoch) || !r.Max.Equal(entries[0].Epoch) {
		t.Errorf("RangeOf = %v..%v, want %v..%v", r.Min, r.Max, entries[1].Epoch, entries[0].Epoch)
	}
}
