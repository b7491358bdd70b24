package models

import (
	"errors"
	"testing"
)

func TestCategoryFromLabel(t *testing.T) {
	cases := []struct {
		label string
		want  ReportCategory
		ok    bool
	}{
		{"gem", ReportCategoryGem, true},
		{"rudraksha", ReportCategoryRudraksha, true},
		{"Gem", ReportCategoryGem, true},
		{" RUDRAKSHA ", ReportCategoryRudraksha, true},
		{"diamond", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := CategoryFromLabel(tc.label)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Errorf("CategoryFromLabel(%q) = (%v, %v), want %v", tc.label, got, err, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrUnknownCategory) {
			t.Errorf("CategoryFromLabel(%q) expected ErrUnknownCategory, got %v", tc.label, err)
		}
	}
}

func TestCategoryFromReportNumber(t *testing.T) {
	if got, err := CategoryFromReportNumber("G10001"); err != nil || got != ReportCategoryGem {
		t.Fatalf("G prefix should route to gem, got (%v, %v)", got, err)
	}
	if got, err := CategoryFromReportNumber("R10001"); err != nil || got != ReportCategoryRudraksha {
		t.Fatalf("R prefix should route to rudraksha, got (%v, %v)", got, err)
	}
	for _, bad := range []string{"", "X10001", "g10001", "10001"} {
		if _, err := CategoryFromReportNumber(bad); !errors.Is(err, ErrUnknownCategory) {
			t.Errorf("CategoryFromReportNumber(%q) expected ErrUnknownCategory, got %v", bad, err)
		}
	}
}

func TestCategoryPrefixAndTableStayInLockstep(t *testing.T) {
	for _, category := range AllReportCategories {
		if category.Prefix() == "" || category.TableName() == "" {
			t.Fatalf("category %q missing prefix or table", category)
		}
		roundTripped, err := CategoryFromReportNumber(category.Prefix() + "10001")
		if err != nil || roundTripped != category {
			t.Fatalf("prefix %q does not route back to %q", category.Prefix(), category)
		}
	}
}
