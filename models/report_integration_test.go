package models_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gemcertify/certify_backend/config"
	"github.com/gemcertify/certify_backend/middlewares"
	"github.com/gemcertify/certify_backend/models"
	"github.com/gemcertify/certify_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

func TestReportLifecycleAgainstMySQL(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers. Redis stays unset: allocation
	// must remain correct on the unique-index fallback path alone.
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "certify_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedis()
	models.MigrateTable()

	// First number in an empty gem table starts right above the floor.
	first, err := models.CreateReport(ctx, models.ReportCategoryGem, &models.NewReport{
		Attributes: models.ReportAttributes{"stoneType": "Ruby", "weight": "2.31 ct"},
		ImageUrl:   "https://storage.googleapis.com/certify-images/reports/gem/ruby.png",
	})
	if err != nil {
		t.Fatalf("CreateReport(first gem): %v", err)
	}
	if first.ReportNumber != "G10001" {
		t.Fatalf("expected first gem report number G10001; got %s", first.ReportNumber)
	}

	second, err := models.CreateReport(ctx, models.ReportCategoryGem, &models.NewReport{
		Attributes: models.ReportAttributes{"stoneType": "Emerald"},
	})
	if err != nil {
		t.Fatalf("CreateReport(second gem): %v", err)
	}
	if second.ReportNumber != "G10002" {
		t.Fatalf("expected second gem report number G10002; got %s", second.ReportNumber)
	}

	// The rudraksha series is independent of the gem series.
	bead, err := models.CreateReport(ctx, models.ReportCategoryRudraksha, &models.NewReport{
		Attributes: models.ReportAttributes{"mukhi": "5", "origin": "Nepal"},
	})
	if err != nil {
		t.Fatalf("CreateReport(rudraksha): %v", err)
	}
	if bead.ReportNumber != "R10001" {
		t.Fatalf("expected first rudraksha report number R10001; got %s", bead.ReportNumber)
	}

	// A supplied number that is already issued must be rejected.
	if _, err := models.CreateReport(ctx, models.ReportCategoryGem, &models.NewReport{
		ReportNumber: "G10001",
		Attributes:   models.ReportAttributes{"stoneType": "Sapphire"},
	}); !errors.Is(err, models.ErrDuplicateReportNumber) {
		t.Fatalf("expected ErrDuplicateReportNumber for reused number; got %v", err)
	}

	// A supplied number must route to the table it is created in.
	if _, err := models.CreateReport(ctx, models.ReportCategoryGem, &models.NewReport{
		ReportNumber: "R20001",
	}); !errors.Is(err, models.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory for cross-category number; got %v", err)
	}

	// Lookup routes by prefix.
	detail, err := models.GetReportDetail(ctx, "G10001")
	if err != nil {
		t.Fatalf("GetReportDetail: %v", err)
	}
	if detail.Attributes["stoneType"] != "Ruby" {
		t.Fatalf("expected stoneType=Ruby; got %+v", detail.Attributes)
	}

	// Update merges attributes; an empty image URL preserves the stored one.
	updated, err := models.UpdateReport(ctx, "G10001", models.ReportAttributes{"weight": "2.35 ct", "cut": "Oval"}, "", "")
	if err != nil {
		t.Fatalf("UpdateReport: %v", err)
	}
	if updated.Attributes["stoneType"] != "Ruby" || updated.Attributes["weight"] != "2.35 ct" || updated.Attributes["cut"] != "Oval" {
		t.Fatalf("attribute merge mismatch: %+v", updated.Attributes)
	}
	if updated.ImageUrl != first.ImageUrl {
		t.Fatalf("expected image url preserved on update; got %q", updated.ImageUrl)
	}

	// Numbers list newest first.
	numbers, err := models.ListReportNumbers(ctx, models.ReportCategoryGem)
	if err != nil {
		t.Fatalf("ListReportNumbers: %v", err)
	}
	if len(numbers) != 2 || numbers[0].ReportNumber != "G10002" || numbers[1].ReportNumber != "G10001" {
		t.Fatalf("unexpected gem number listing: %+v", numbers)
	}

	// Delete and verify the record is gone.
	if err := models.DeleteReport(ctx, "G10002"); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
	if _, err := models.GetReportDetail(ctx, "G10002"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound after delete; got %v", err)
	}
	if err := models.DeleteReport(ctx, "G10002"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound on second delete; got %v", err)
	}

	// The allocator resumes after the latest issued number, deleted or not.
	next, err := models.CreateReport(ctx, models.ReportCategoryGem, &models.NewReport{
		Attributes: models.ReportAttributes{"stoneType": "Topaz"},
	})
	if err != nil {
		t.Fatalf("CreateReport(after delete): %v", err)
	}
	if next.ReportNumber != "G10003" {
		t.Fatalf("expected G10003 after G10002 was issued and deleted; got %s", next.ReportNumber)
	}

	// A supplied number with a non-numeric suffix must be rejected: it would
	// become the latest row and floor every later allocation.
	if _, err := models.CreateReport(ctx, models.ReportCategoryGem, &models.NewReport{
		ReportNumber: "Gabc",
	}); !errors.Is(err, models.ErrInvalidReportNumber) {
		t.Fatalf("expected ErrInvalidReportNumber for non-numeric suffix; got %v", err)
	}

	// A supplied number at or below the latest issued one rewinds the series
	// and must be rejected too.
	if _, err := models.CreateReport(ctx, models.ReportCategoryGem, &models.NewReport{
		ReportNumber: "G9000",
	}); !errors.Is(err, models.ErrInvalidReportNumber) {
		t.Fatalf("expected ErrInvalidReportNumber for rewound number; got %v", err)
	}
	if _, err := models.CreateReport(ctx, models.ReportCategoryGem, &models.NewReport{
		ReportNumber: "G10003",
	}); !errors.Is(err, models.ErrInvalidReportNumber) {
		t.Fatalf("expected ErrInvalidReportNumber for current latest number; got %v", err)
	}

	// A supplied number ahead of the series is accepted, and the allocator
	// continues from it.
	ahead, err := models.CreateReport(ctx, models.ReportCategoryGem, &models.NewReport{
		ReportNumber: "G10010",
		Attributes:   models.ReportAttributes{"stoneType": "Opal"},
	})
	if err != nil {
		t.Fatalf("CreateReport(supplied ahead): %v", err)
	}
	if ahead.ReportNumber != "G10010" {
		t.Fatalf("expected supplied number G10010; got %s", ahead.ReportNumber)
	}
	afterAhead, err := models.CreateReport(ctx, models.ReportCategoryGem, &models.NewReport{
		Attributes: models.ReportAttributes{"stoneType": "Garnet"},
	})
	if err != nil {
		t.Fatalf("CreateReport(after supplied): %v", err)
	}
	if afterAhead.ReportNumber != "G10011" {
		t.Fatalf("expected allocation to resume at G10011 after supplied G10010; got %s", afterAhead.ReportNumber)
	}
}

func TestExcelImportAllocatesConsecutiveNumbers(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "certify_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedis()
	models.MigrateTable()

	// Seed one record so the import continues a live series rather than
	// starting at the floor.
	seeded, err := models.CreateReport(ctx, models.ReportCategoryRudraksha, &models.NewReport{
		Attributes: models.ReportAttributes{"mukhi": "1"},
	})
	if err != nil {
		t.Fatalf("CreateReport(seed): %v", err)
	}
	if seeded.ReportNumber != "R10001" {
		t.Fatalf("expected seed number R10001; got %s", seeded.ReportNumber)
	}

	sheet := buildReportSheet(t,
		[]string{"mukhi", "origin", "weight"},
		[][]string{
			{"5", "Nepal", "12.4 g"},
			{"7", "Indonesia", "9.8 g"},
			{"", "", ""}, // blank rows are skipped
			{"14", "Nepal", "15.1 g"},
		},
	)

	summary, err := models.ImportReportsFromExcel(ctx, models.ReportCategoryRudraksha, bytes.NewReader(sheet))
	if err != nil {
		t.Fatalf("ImportReportsFromExcel: %v", err)
	}
	if summary.Imported != 3 {
		t.Fatalf("expected 3 imported rows; got %d", summary.Imported)
	}
	if summary.FirstReportNumber != "R10002" || summary.LastReportNumber != "R10004" {
		t.Fatalf("expected consecutive numbers R10002..R10004; got %s..%s", summary.FirstReportNumber, summary.LastReportNumber)
	}

	detail, err := models.GetReportDetail(ctx, "R10003")
	if err != nil {
		t.Fatalf("GetReportDetail(imported): %v", err)
	}
	if detail.Attributes["origin"] != "Indonesia" {
		t.Fatalf("expected second imported row at R10003; got %+v", detail.Attributes)
	}

	// A header-only sheet is an error, and nothing gets written.
	empty := buildReportSheet(t, []string{"mukhi"}, nil)
	if _, err := models.ImportReportsFromExcel(ctx, models.ReportCategoryRudraksha, bytes.NewReader(empty)); !errors.Is(err, models.ErrEmptySheet) {
		t.Fatalf("expected ErrEmptySheet for header-only sheet; got %v", err)
	}
	numbers, err := models.ListReportNumbers(ctx, models.ReportCategoryRudraksha)
	if err != nil {
		t.Fatalf("ListReportNumbers: %v", err)
	}
	if len(numbers) != 4 {
		t.Fatalf("expected 4 rudraksha records after failed import; got %d", len(numbers))
	}
}

func TestAdminLoginAgainstMySQL(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "certify_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedis()
	models.MigrateTable()

	if _, err := models.UpsertAdmin(ctx, "admin", "s3cret-password"); err != nil {
		t.Fatalf("UpsertAdmin: %v", err)
	}

	admin, err := models.AdminLogin(ctx, "admin", "s3cret-password")
	if err != nil {
		t.Fatalf("AdminLogin: %v", err)
	}
	if admin.Username != "admin" {
		t.Fatalf("unexpected admin: %+v", admin)
	}

	if _, err := models.AdminLogin(ctx, "admin", "wrong-password"); !errors.Is(err, models.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword; got %v", err)
	}
	if _, err := models.AdminLogin(ctx, "nobody", "s3cret-password"); !errors.Is(err, models.ErrAdminNotFound) {
		t.Fatalf("expected ErrAdminNotFound; got %v", err)
	}

	// Upsert rotates the password in place.
	if _, err := models.UpsertAdmin(ctx, "admin", "rotated-password"); err != nil {
		t.Fatalf("UpsertAdmin(rotate): %v", err)
	}
	if _, err := models.AdminLogin(ctx, "admin", "rotated-password"); err != nil {
		t.Fatalf("AdminLogin after rotation: %v", err)
	}

	if _, err := models.GetAdmin(ctx, admin.ID); err != nil {
		t.Fatalf("GetAdmin: %v", err)
	}
	if _, err := models.GetAdmin(ctx, admin.ID+1000); !errors.Is(err, models.ErrAdminNotFound) {
		t.Fatalf("expected ErrAdminNotFound for unknown id; got %v", err)
	}

	// The auth gate requires the token subject to still exist: a token minted
	// for a since-deleted admin is rejected even though its signature and
	// expiry are fine.
	t.Setenv("JWT_SECRET_KEY", "integration-secret")
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", middlewares.AuthMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	liveToken, err := utils.JwtGenerate(admin.ID, admin.Username)
	if err != nil {
		t.Fatalf("JwtGenerate(live): %v", err)
	}
	ghostToken, err := utils.JwtGenerate(admin.ID+1000, "ghost")
	if err != nil {
		t.Fatalf("JwtGenerate(ghost): %v", err)
	}

	doAuthed := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	if code := doAuthed(liveToken); code != http.StatusNoContent {
		t.Fatalf("expected 204 for an existing admin's token; got %d", code)
	}
	if code := doAuthed(ghostToken); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a token whose admin no longer exists; got %d", code)
	}
}

func buildReportSheet(t *testing.T, headers []string, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			t.Fatalf("set header cell: %v", err)
		}
	}
	for r, row := range rows {
		for c, v := range row {
			if v == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("set data cell: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write sheet: %v", err)
	}
	return buf.Bytes()
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("certify-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=certify_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
