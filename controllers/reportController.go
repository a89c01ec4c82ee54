package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streetlight-watch/apperrors"
	"streetlight-watch/media"
	"streetlight-watch/models"
	"streetlight-watch/services"
)

const imagesField = "images"

// ReportController serves the report endpoints.
type ReportController struct {
	reports       *services.ReportService
	maxImageBytes int64
	log           *zap.Logger
}

func NewReportController(reports *services.ReportService, maxImageBytes int64, log *zap.Logger) *ReportController {
	if maxImageBytes <= 0 {
		maxImageBytes = services.DefaultReportConfig().MaxImageBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportController{reports: reports, maxImageBytes: maxImageBytes, log: log}
}

type createReportRequest struct {
	Title          string   `form:"title" json:"title"`
	Description    string   `form:"description" json:"description"`
	Latitude       *float64 `form:"latitude" json:"latitude"`
	Longitude      *float64 `form:"longitude" json:"longitude"`
	LightCondition string   `form:"lightCondition" json:"lightCondition"`
	Severity       string   `form:"severity" json:"severity"`
	PoleNumber     string   `form:"poleNumber" json:"poleNumber"`
	Address        string   `form:"address" json:"address"`
	City           string   `form:"city" json:"city"`
	Pincode        string   `form:"pincode" json:"pincode"`
	Source         string   `form:"source" json:"source"`
}

// readImages loads the uploaded files of the images field with their
// content type sniffed from the bytes. Files over the size limit are
// returned with their declared size so the service can reject them.
func (rc *ReportController) readImages(c *gin.Context) ([]services.ImageFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, apperrors.Validation("Invalid multipart form", err.Error())
	}

	headers := form.File[imagesField]
	files := make([]services.ImageFile, 0, len(headers))
	for _, fh := range headers {
		file, err := rc.readImage(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func (rc *ReportController) readImage(fh *multipart.FileHeader) (services.ImageFile, error) {
	file := services.ImageFile{Filename: fh.Filename, Size: fh.Size}
	if fh.Size > rc.maxImageBytes {
		return file, nil
	}

	f, err := fh.Open()
	if err != nil {
		return file, apperrors.Validation(fmt.Sprintf("Could not read file %s", fh.Filename))
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, rc.maxImageBytes+1))
	if err != nil {
		return file, apperrors.Validation(fmt.Sprintf("Could not read file %s", fh.Filename))
	}
	file.Data = data
	file.Size = int64(len(data))
	file.ContentType = media.Sniff(data)
	file.Width, file.Height, _ = media.Dimensions(data)
	return file, nil
}

func deviceInfo(c *gin.Context) *models.DeviceInfo {
	device := "desktop"
	if c.GetHeader("Sec-CH-UA-Mobile") == "?1" {
		device = "mobile"
	}
	return &models.DeviceInfo{
		Browser: c.GetHeader("User-Agent"),
		OS:      c.GetHeader("Sec-CH-UA-Platform"),
		Device:  device,
	}
}

func (rc *ReportController) CreateReport(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req createReportRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, apperrors.Validation("Invalid request body", err.Error()))
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		respondError(c, apperrors.Validation("Title, location coordinates, and light condition are required"))
		return
	}

	images, err := rc.readImages(c)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := rc.reports.CreateReport(c.Request.Context(), actor, services.CreateReportInput{
		Title:          req.Title,
		Description:    req.Description,
		Latitude:       *req.Latitude,
		Longitude:      *req.Longitude,
		LightCondition: models.LightCondition(req.LightCondition),
		Severity:       models.Severity(req.Severity),
		PoleNumber:     req.PoleNumber,
		Address:        req.Address,
		City:           req.City,
		Pincode:        req.Pincode,
		Source:         models.Source(req.Source),
		DeviceInfo:     deviceInfo(c),
		IPAddress:      c.ClientIP(),
		Images:         images,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	data := gin.H{"report": result.Report, "warnings": nil}
	if result.Warning != "" {
		data["warnings"] = result.Warning
	}
	if result.DuplicateInfo != "" {
		data["duplicateInfo"] = result.DuplicateInfo
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Report created successfully", "data": data})
}

func (rc *ReportController) GetReports(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var q services.ReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, apperrors.Validation("Invalid query parameters", err.Error()))
		return
	}

	page, err := rc.reports.ListReports(c.Request.Context(), actor, q)
	if err != nil {
		respondError(c, err)
		return
	}

	data := gin.H{"reports": page.Reports, "pagination": page.Pagination}
	if page.Stats != nil {
		data["stats"] = page.Stats
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": len(page.Reports), "data": data})
}

func (rc *ReportController) GetReport(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	report, err := rc.reports.GetReport(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"report": report}})
}

func (rc *ReportController) UpdateReport(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var update services.ReportUpdate
	if !bindJSON(c, &update) {
		return
	}

	report, err := rc.reports.UpdateReport(c.Request.Context(), actor, c.Param("id"), update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Report updated successfully", "data": gin.H{"report": report}})
}

func (rc *ReportController) DeleteReport(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := rc.reports.DeleteReport(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Report deleted successfully"})
}

func (rc *ReportController) GetNearbyReports(c *gin.Context) {
	var q struct {
		Lat    *float64 `form:"lat"`
		Lng    *float64 `form:"lng"`
		Radius float64  `form:"radius"`
		Limit  int64    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, apperrors.Validation("Invalid query parameters", err.Error()))
		return
	}
	if q.Lat == nil || q.Lng == nil {
		respondError(c, apperrors.Validation("Latitude and longitude are required"))
		return
	}

	reports, err := rc.reports.NearbyReports(c.Request.Context(), services.NearbyQuery{
		Lat:    *q.Lat,
		Lng:    *q.Lng,
		Radius: q.Radius,
		Limit:  q.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": len(reports), "data": gin.H{"reports": reports}})
}

func (rc *ReportController) GetStats(c *gin.Context) {
	stats, err := rc.reports.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

func (rc *ReportController) AddImages(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	images, err := rc.readImages(c)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := rc.reports.AddImages(c.Request.Context(), actor, c.Param("id"), images)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Images uploaded successfully",
		"data":    gin.H{"images": result.Images, "totalImages": result.TotalImages},
	})
}
