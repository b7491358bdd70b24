package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gemcertify/certify_backend/config"
	"github.com/gemcertify/certify_backend/models"
	"github.com/gemcertify/certify_backend/utils"
	"github.com/gin-gonic/gin"
)

const maxImageSizeBytes int64 = 5 * 1024 * 1024

// reportErrorResponse converts model-layer failures to the REST taxonomy:
// unknown prefix -> 400, missing record -> 404, duplicate number -> 409,
// everything else -> 500.
func reportErrorResponse(c *gin.Context, funcName string, err error) {
	logger := config.GetLogger()
	switch {
	case errors.Is(err, models.ErrUnknownCategory), errors.Is(err, models.ErrInvalidReportNumber):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report number"})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found, Please enter valid Report Number"})
	case errors.Is(err, models.ErrDuplicateReportNumber):
		c.JSON(http.StatusConflict, gin.H{"error": "Report with this Report ID already exists"})
	default:
		config.LogError(logger, "reports.go", funcName, "report operation", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occured"})
	}
}

// parseReportForm extracts the attribute set (and optional reserved fields)
// from either a JSON body or a multipart form. In multipart form, every
// value field except "image" and "reportNumber" becomes an attribute.
func parseReportForm(c *gin.Context) (models.ReportAttributes, string, *multipart.FileHeader, error) {
	contentType := c.ContentType()

	if strings.HasPrefix(contentType, "multipart/form-data") {
		form, err := c.MultipartForm()
		if err != nil {
			return nil, "", nil, err
		}

		attributes := models.ReportAttributes{}
		reportNumber := ""
		for key, values := range form.Value {
			if len(values) == 0 {
				continue
			}
			if key == "reportNumber" {
				reportNumber = strings.TrimSpace(values[0])
				continue
			}
			// A "data" field may carry the whole attribute set as JSON.
			if key == "data" {
				var fromJSON map[string]string
				if err := json.Unmarshal([]byte(values[0]), &fromJSON); err != nil {
					return nil, "", nil, fmt.Errorf("invalid data field: %w", err)
				}
				for k, v := range fromJSON {
					attributes[k] = v
				}
				continue
			}
			attributes[key] = values[0]
		}

		var image *multipart.FileHeader
		if files := form.File["image"]; len(files) > 0 {
			image = files[0]
		}
		return attributes, reportNumber, image, nil
	}

	var body struct {
		ReportNumber string           `json:"reportNumber"`
		Attributes   map[string]string `json:"attributes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, "", nil, err
	}
	return models.ReportAttributes(body.Attributes), strings.TrimSpace(body.ReportNumber), nil, nil
}

// uploadReportImage stores the image and a 200px thumbnail in the asset
// store and returns their public URLs. This runs BEFORE the record persists;
// a blob orphaned by a later persistence failure is accepted.
func uploadReportImage(ctx context.Context, category models.ReportCategory, file *multipart.FileHeader) (string, string, error) {
	if file.Size > maxImageSizeBytes {
		return "", "", errors.New("image exceeds 5MB limit")
	}

	src, err := file.Open()
	if err != nil {
		return "", "", err
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	baseName := utils.GenerateUniqueFilename()
	objectKey := path.Join("reports", string(category), baseName+ext)

	if err := utils.UploadImageToGCS(ctx, objectKey, src); err != nil {
		return "", "", err
	}

	// Thumbnail from a fresh reader; the original was consumed by the upload.
	thumbSrc, err := file.Open()
	if err != nil {
		return "", "", err
	}
	defer thumbSrc.Close()

	img, err := imaging.Decode(thumbSrc)
	if err != nil {
		return "", "", err
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return "", "", err
	}
	thumbnailKey := path.Join("reports", string(category), baseName+"_thumb.jpg")
	if err := utils.UploadBytesToGCS(ctx, thumbnailKey, buf.Bytes(), "image/jpeg"); err != nil {
		return "", "", err
	}

	return utils.BuildObjectAccessURL(objectKey), utils.BuildObjectAccessURL(thumbnailKey), nil
}

func addRecordHandler(category models.ReportCategory) gin.HandlerFunc {
	return func(c *gin.Context) {
		attributes, reportNumber, image, err := parseReportForm(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		input := models.NewReport{
			ReportNumber: reportNumber,
			Attributes:   attributes,
		}
		if image != nil {
			imageURL, thumbURL, err := uploadReportImage(c.Request.Context(), category, image)
			if err != nil {
				config.LogError(config.GetLogger(), "reports.go", "addRecordHandler", "uploadReportImage", image.Filename, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save the report."})
				return
			}
			input.ImageUrl = imageURL
			input.ThumbnailUrl = thumbURL
		}

		report, err := models.CreateReport(c.Request.Context(), category, &input)
		if err != nil {
			reportErrorResponse(c, "addRecordHandler", err)
			return
		}
		c.JSON(http.StatusCreated, report)
	}
}

func fetchAllHandler(category models.ReportCategory) gin.HandlerFunc {
	return func(c *gin.Context) {
		reports, err := models.ListReportNumbers(c.Request.Context(), category)
		if err != nil {
			reportErrorResponse(c, "fetchAllHandler", err)
			return
		}
		c.JSON(http.StatusOK, reports)
	}
}

func reportDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reportNumber := c.Param("reportNumber")
		report, err := models.GetReportDetail(c.Request.Context(), reportNumber)
		if err != nil {
			reportErrorResponse(c, "reportDetailHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func updateReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reportNumber := c.Param("reportNumber")

		attributes, _, image, err := parseReportForm(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		imageURL, thumbURL := "", ""
		if image != nil {
			category, err := models.CategoryFromReportNumber(reportNumber)
			if err != nil {
				reportErrorResponse(c, "updateReportHandler", err)
				return
			}
			imageURL, thumbURL, err = uploadReportImage(c.Request.Context(), category, image)
			if err != nil {
				config.LogError(config.GetLogger(), "reports.go", "updateReportHandler", "uploadReportImage", image.Filename, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update report"})
				return
			}
		}

		report, err := models.UpdateReport(c.Request.Context(), reportNumber, attributes, imageURL, thumbURL)
		if err != nil {
			reportErrorResponse(c, "updateReportHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Report updated successfully", "updatedReport": report})
	}
}

func deleteReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reportNumber := c.Param("reportNumber")

		report, err := models.GetReportDetail(c.Request.Context(), reportNumber)
		if err != nil {
			reportErrorResponse(c, "deleteReportHandler", err)
			return
		}
		if err := models.DeleteReport(c.Request.Context(), reportNumber); err != nil {
			reportErrorResponse(c, "deleteReportHandler", err)
			return
		}

		// Best-effort blob cleanup; the record is already gone.
		for _, rawURL := range []string{report.ImageUrl, report.ThumbnailUrl} {
			objectKey := utils.ExtractObjectKeyFromURL(rawURL)
			if objectKey == "" {
				continue
			}
			if err := utils.DeleteObjectFromGCS(c.Request.Context(), objectKey); err != nil {
				config.LogError(config.GetLogger(), "reports.go", "deleteReportHandler", "DeleteObjectFromGCS", objectKey, err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"message": "Report deleted successfully"})
	}
}

type publicLookupRequest struct {
	ReportNumber string `json:"reportNumber"`
	MobileNumber string `json:"mobileNumber"`
	Otp          string `json:"otp"`
}

// publicReportDetailsHandler is the only unauthenticated read: a report
// number plus a phone-number OTP challenge verified by the external
// provider. It never creates or mutates records.
func publicReportDetailsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req publicLookupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required!"})
			return
		}
		if req.ReportNumber == "" || req.MobileNumber == "" || req.Otp == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required!"})
			return
		}

		if err := utils.ValidatePhoneNumber(req.MobileNumber, utils.CountryCode); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mobile number"})
			return
		}

		valid, err := config.VerifyOTP(req.MobileNumber, req.Otp)
		if err != nil {
			config.LogError(logger, "reports.go", "publicReportDetailsHandler", "VerifyOTP", req.MobileNumber, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occured"})
			return
		}
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired OTP"})
			return
		}

		report, err := models.GetReportDetail(c.Request.Context(), req.ReportNumber)
		if err != nil {
			reportErrorResponse(c, "publicReportDetailsHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
