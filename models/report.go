package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gemcertify/certify_backend/config"
	"github.com/gemcertify/certify_backend/utils"
	"gorm.io/gorm"
)

// ReportAttributes is the free-form attribute set an admin supplies for a
// certificate (stone type, weight, dimensions, mukhi count, ...). Stored as
// a JSON column; keys are not interpreted by the backend.
type ReportAttributes map[string]string

func (a ReportAttributes) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (a *ReportAttributes) Scan(value interface{}) error {
	if value == nil {
		*a = ReportAttributes{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	}
	return fmt.Errorf("unsupported type %T for ReportAttributes", value)
}

// Report is the shared row shape of gem_reports and rudraksha_reports.
// The two tables are structurally identical; the category (and so the table)
// is selected by the report number's prefix character.
type Report struct {
	ID           int              `gorm:"primary_key" json:"id"`
	ReportNumber string           `gorm:"size:20;not null;uniqueIndex" json:"report_number"`
	Attributes   ReportAttributes `gorm:"type:json" json:"attributes"`
	ImageUrl     string           `gorm:"size:500" json:"image_url"`
	ThumbnailUrl string           `gorm:"size:500" json:"thumbnail_url"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewReport is the admin-supplied payload for a single create.
// ReportNumber is optional; when empty the allocator mints one.
type NewReport struct {
	ReportNumber string           `json:"report_number"`
	Attributes   ReportAttributes `json:"attributes"`
	ImageUrl     string           `json:"image_url"`
	ThumbnailUrl string           `json:"thumbnail_url"`
}

var (
	ErrDuplicateReportNumber = errors.New("report number already exists")
	ErrInvalidReportNumber   = errors.New("invalid report number")
)

// CreateReport persists a new certificate in the category's table.
// Allocation and insert run behind the category's allocation lock; when the
// lock cannot be held the unique index still rejects the losing insert, which
// is surfaced as ErrDuplicateReportNumber.
func CreateReport(ctx context.Context, category ReportCategory, input *NewReport) (*Report, error) {
	if !category.Valid() {
		return nil, ErrUnknownCategory
	}

	db := config.GetDB()
	var created Report

	err := WithReportNumberLock(ctx, category, 10*time.Second, func() error {
		reportNumber := input.ReportNumber
		if reportNumber == "" {
			var err error
			reportNumber, err = NextReportNumber(ctx, category)
			if err != nil {
				return err
			}
		} else {
			// An admin-supplied number must route back to the table it
			// lives in, and must not collide with an issued one.
			numberCategory, err := CategoryFromReportNumber(reportNumber)
			if err != nil {
				return err
			}
			if numberCategory != category {
				return ErrUnknownCategory
			}
			// The allocator derives the next number from the latest row,
			// so a supplied number must keep the series well-formed and
			// moving forward: a non-numeric suffix would floor every later
			// allocation, and a suffix at or below the latest would hand
			// out an already-issued number next.
			suffix, ok := parseReportSuffix(reportNumber)
			if !ok {
				return ErrInvalidReportNumber
			}
			latest, err := latestReportSuffix(ctx, category)
			if err != nil {
				return err
			}
			if suffix <= latest {
				return ErrInvalidReportNumber
			}
			var count int64
			if err := db.WithContext(ctx).Table(category.TableName()).
				Where("report_number = ?", reportNumber).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateReportNumber
			}
		}

		created = Report{
			ReportNumber: reportNumber,
			Attributes:   input.Attributes,
			ImageUrl:     input.ImageUrl,
			ThumbnailUrl: input.ThumbnailUrl,
		}
		if created.Attributes == nil {
			created.Attributes = ReportAttributes{}
		}
		if err := db.WithContext(ctx).Table(category.TableName()).Create(&created).Error; err != nil {
			if utils.IsDuplicateKeyError(err) {
				return ErrDuplicateReportNumber
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ReportNumberEntry is the list projection: numbers only, newest first.
type ReportNumberEntry struct {
	ReportNumber string `json:"report_number"`
}

func ListReportNumbers(ctx context.Context, category ReportCategory) ([]ReportNumberEntry, error) {
	if !category.Valid() {
		return nil, ErrUnknownCategory
	}

	db := config.GetDB()
	results := make([]ReportNumberEntry, 0)
	err := db.WithContext(ctx).Table(category.TableName()).
		Select("report_number").Order("id desc").Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetReportDetail fetches the full record behind a report number, routing to
// the category's table by prefix.
func GetReportDetail(ctx context.Context, reportNumber string) (*Report, error) {
	category, err := CategoryFromReportNumber(reportNumber)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var report Report
	err = db.WithContext(ctx).Table(category.TableName()).
		Where("report_number = ?", reportNumber).Take(&report).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &report, nil
}

// UpdateReport merges a partial attribute set (and optional replacement
// image) into an existing record. An empty image URL preserves the stored
// one. Missing records yield ErrorRecordNotFound with nothing mutated.
func UpdateReport(ctx context.Context, reportNumber string, attributes ReportAttributes, imageUrl string, thumbnailUrl string) (*Report, error) {
	category, err := CategoryFromReportNumber(reportNumber)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var report Report
	err = db.WithContext(ctx).Table(category.TableName()).
		Where("report_number = ?", reportNumber).Take(&report).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	if report.Attributes == nil {
		report.Attributes = ReportAttributes{}
	}
	for k, v := range attributes {
		report.Attributes[k] = v
	}
	if imageUrl != "" {
		report.ImageUrl = imageUrl
	}
	if thumbnailUrl != "" {
		report.ThumbnailUrl = thumbnailUrl
	}

	err = db.WithContext(ctx).Table(category.TableName()).
		Where("report_number = ?", reportNumber).
		Updates(map[string]interface{}{
			"attributes":    report.Attributes,
			"image_url":     report.ImageUrl,
			"thumbnail_url": report.ThumbnailUrl,
		}).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// DeleteReport removes the record behind a report number.
func DeleteReport(ctx context.Context, reportNumber string) error {
	category, err := CategoryFromReportNumber(reportNumber)
	if err != nil {
		return err
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Table(category.TableName()).
		Where("report_number = ?", reportNumber).Delete(&Report{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
