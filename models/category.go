package models

import (
	"errors"
	"strings"
)

// ReportCategory selects which report table a request addresses. Every
// category has its own backing table and a single-character number prefix;
// the two are kept in lockstep here so routing stays total over the enum.
type ReportCategory string

const (
	ReportCategoryGem       ReportCategory = "gem"
	ReportCategoryRudraksha ReportCategory = "rudraksha"
)

const (
	gemPrefix       = "G"
	rudrakshaPrefix = "R"
)

var ErrUnknownCategory = errors.New("unknown report category")

// AllReportCategories lists every category, used by migrations and tests.
var AllReportCategories = []ReportCategory{ReportCategoryGem, ReportCategoryRudraksha}

func (c ReportCategory) Valid() bool {
	return c == ReportCategoryGem || c == ReportCategoryRudraksha
}

func (c ReportCategory) Prefix() string {
	switch c {
	case ReportCategoryGem:
		return gemPrefix
	case ReportCategoryRudraksha:
		return rudrakshaPrefix
	}
	return ""
}

func (c ReportCategory) TableName() string {
	switch c {
	case ReportCategoryGem:
		return "gem_reports"
	case ReportCategoryRudraksha:
		return "rudraksha_reports"
	}
	return ""
}

// CategoryFromLabel resolves the explicit label carried by bulk import
// requests. Labels are matched case-insensitively against the enumeration;
// anything else is a client error.
func CategoryFromLabel(label string) (ReportCategory, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case string(ReportCategoryGem):
		return ReportCategoryGem, nil
	case string(ReportCategoryRudraksha):
		return ReportCategoryRudraksha, nil
	}
	return "", ErrUnknownCategory
}

// CategoryFromReportNumber routes an already-issued report number to its
// category by prefix character. An unrecognized prefix is a defined error,
// never a silent fallthrough.
func CategoryFromReportNumber(reportNumber string) (ReportCategory, error) {
	if reportNumber == "" {
		return "", ErrUnknownCategory
	}
	switch reportNumber[:1] {
	case gemPrefix:
		return ReportCategoryGem, nil
	case rudrakshaPrefix:
		return ReportCategoryRudraksha, nil
	}
	return "", ErrUnknownCategory
}
