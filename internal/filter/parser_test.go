package filter

import (
	"testing"
	"time"
)

func TestParseDateRange(t *testing.T) {
	ref := time.Date(2025, 11, 16, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    string
		wantFrom string
		wantTo   string
		wantErr  bool
	}{
		{"same month", "1-15 décembre", "2025-12-01", "2025-12-15", false},
		{"same month with er and au", "1er au 15 déc.", "2025-12-01", "2025-12-15", false},
		{"past month is next year", "3-5 mars", "2026-03-03", "2026-03-05", false},
		{"cross month", "20 novembre - 5 décembre", "2025-11-20", "2025-12-05", false},
		{"cross year", "20 décembre - 5 janvier", "2025-12-20", "2026-01-05", false},
		{"whole month", "février", "2026-02-01", "2026-02-28", false},
		{"unaccented month", "fevrier", "2026-02-01", "2026-02-28", false},
		{"current month", "novembre", "2025-11-01", "2025-11-30", false},
		{"iso range", "2025-12-01..2025-12-31", "2025-12-01", "2025-12-31", false},
		{"iso day", "2025-12-24", "2025-12-24", "2025-12-24", false},
		{"empty", "", "", "", true},
		{"reversed", "15-1 mars", "", "", true},
		{"unknown month", "1-5 brumaire", "", "", true},
		{"bad day", "0-5 mars", "", "", true},
		{"reversed iso", "2025-12-31..2025-12-01", "", "", true},
		{"garbage", "next weekend please", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := ParseDateRange(tt.input, ref, time.UTC)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDateRange(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := from.Format("2006-01-02"); got != tt.wantFrom {
				t.Errorf("from = %s, want %s", got, tt.wantFrom)
			}
			if got := to.Format("2006-01-02"); got != tt.wantTo {
				t.Errorf("to = %s, want %s", got, tt.wantTo)
			}
			if from.Hour() != 0 || to.Hour() != 23 || to.Minute() != 59 || to.Second() != 59 {
				t.Errorf("unexpected bounds %v - %v", from, to)
			}
		})
	}
}

func TestParseDateRangeLocation(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	ref := time.Date(2025, 11, 16, 8, 0, 0, 0, time.UTC)

	from, to, err := ParseDateRange("2025-12-24", ref, paris)
	if err != nil {
		t.Fatal(err)
	}
	if !from.Equal(time.Date(2025, 12, 23, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v", from.UTC())
	}
	if to.Location() != paris {
		t.Errorf("to should be in the given location, got %v", to.Location())
	}
}
