package main

import (
	"errors"
	"net/http"

	"github.com/gemcertify/certify_backend/config"
	"github.com/gemcertify/certify_backend/models"
	"github.com/gin-gonic/gin"
)

// uploadExcelHandler bulk-imports reports from an .xlsx file. The category
// comes from the explicit reportType label ("gem"/"rudraksha"), never from a
// prefix: these rows have no numbers yet.
func uploadExcelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		category, err := models.CategoryFromLabel(c.PostForm("reportType"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report type"})
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			config.LogError(logger, "excelUpload.go", "uploadExcelHandler", "open upload", fileHeader.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occured"})
			return
		}
		defer file.Close()

		summary, err := models.ImportReportsFromExcel(c.Request.Context(), category, file)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrEmptySheet), errors.Is(err, models.ErrMissingHeaderRow):
				c.JSON(http.StatusBadRequest, gin.H{"error": "Spreadsheet has no data"})
			case errors.Is(err, models.ErrDuplicateReportNumber):
				c.JSON(http.StatusConflict, gin.H{"error": "Report number already exists"})
			default:
				config.LogError(logger, "excelUpload.go", "uploadExcelHandler", "ImportReportsFromExcel", fileHeader.Filename, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occured"})
			}
			return
		}

		c.JSON(http.StatusOK, summary)
	}
}
