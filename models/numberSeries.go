package models

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bsm/redislock"
	"github.com/gemcertify/certify_backend/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// reportNumberFloor seeds a category's series: the first issued number is
// <Prefix>(floor+1).
const reportNumberFloor = 10000

// parseReportSuffix extracts the numeric suffix of a stored report number.
// Returns false when the number has no prefix or a non-numeric tail.
func parseReportSuffix(reportNumber string) (int, bool) {
	if len(reportNumber) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(reportNumber[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func formatReportNumber(category ReportCategory, suffix int) string {
	return category.Prefix() + strconv.Itoa(suffix)
}

// latestReportSuffix reads the numeric suffix of the most recently created
// record in the category (by surrogate id, descending). Empty table, or a
// latest record whose number is malformed, yields the floor.
func latestReportSuffix(ctx context.Context, category ReportCategory) (int, error) {
	db := config.GetDB()

	var latest Report
	err := db.WithContext(ctx).Table(category.TableName()).
		Order("id desc").Limit(1).Take(&latest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return reportNumberFloor, nil
		}
		return 0, err
	}

	suffix, ok := parseReportSuffix(latest.ReportNumber)
	if !ok {
		return reportNumberFloor, nil
	}
	return suffix, nil
}

// NextReportNumber mints the next report number for the category:
// the latest issued suffix plus one, floored at 10000 for an empty table.
// Callers that go on to insert should hold the category's allocation lock
// (see WithReportNumberLock) so two concurrent creates don't read the same
// latest value.
func NextReportNumber(ctx context.Context, category ReportCategory) (string, error) {
	suffix, err := latestReportSuffix(ctx, category)
	if err != nil {
		return "", err
	}
	return formatReportNumber(category, suffix+1), nil
}

// AllocateReportNumbers returns n consecutive numbers from one base read.
// Bulk import uses this so K rows get K consecutive identifiers without
// re-querying the store per row.
func AllocateReportNumbers(ctx context.Context, category ReportCategory, n int) ([]string, error) {
	suffix, err := latestReportSuffix(ctx, category)
	if err != nil {
		return nil, err
	}
	numbers := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		numbers = append(numbers, formatReportNumber(category, suffix+i))
	}
	return numbers, nil
}

// WithReportNumberLock serializes fn behind a per-category redis lock so the
// read-latest/insert pair cannot interleave across requests.
// The lock is a best-effort optimization: if redis is unavailable fn still
// runs, and the unique index on report_number rejects the losing insert.
func WithReportNumberLock(ctx context.Context, category ReportCategory, ttl time.Duration, fn func() error) error {
	locker := config.GetRedisLock()
	if locker == nil {
		return fn()
	}

	lockKey := fmt.Sprintf("lock:reportNumber:%s", category)
	lock, err := locker.Obtain(ctx, lockKey, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 40),
	})
	if err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field":    "WithReportNumberLock",
			"category": category,
		}).Warn("could not obtain allocation lock; proceeding without it: " + err.Error())
		return fn()
	}
	defer func() {
		if releaseErr := lock.Release(ctx); releaseErr != nil {
			config.GetLogger().WithFields(logrus.Fields{
				"field":    "WithReportNumberLock",
				"category": category,
			}).Warn("failed to release allocation lock: " + releaseErr.Error())
		}
	}()

	return fn()
}
