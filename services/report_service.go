package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"streetlight-watch/apperrors"
	"streetlight-watch/geo"
	"streetlight-watch/metrics"
	"streetlight-watch/models"
	"streetlight-watch/repository"
)

type ReportConfig struct {
	DuplicateRadiusMeters float64
	DuplicateLimit        int64
	MaxImages             int
	MaxImageBytes         int64
	MaxImagePixels        int64
	GeocodeTimeout        time.Duration

	NearbyDefaultRadius float64
	NearbyMaxRadius     float64
	NearbyDefaultLimit  int64
	NearbyMaxLimit      int64
}

func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		DuplicateRadiusMeters: 50,
		DuplicateLimit:        5,
		MaxImages:             5,
		MaxImageBytes:         5 << 20,
		MaxImagePixels:        DefaultMaxImagePixels,
		GeocodeTimeout:        5 * time.Second,
		NearbyDefaultRadius:   1000,
		NearbyMaxRadius:       50000,
		NearbyDefaultLimit:    20,
		NearbyMaxLimit:        100,
	}
}

// AllowedImageTypes are the detected content types accepted for upload.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

const qualityUnavailable = "Image quality could not be assessed"

// DefaultMaxImagePixels caps the declared width x height of an upload.
const DefaultMaxImagePixels = 50_000_000

// ErrTooManyPixels is returned by image handlers asked to decode an image
// whose declared dimensions exceed the pixel cap.
var ErrTooManyPixels = errors.New("image dimensions exceed the pixel limit")

type ReportService struct {
	cfg      ReportConfig
	reports  repository.ReportRepository
	users    repository.UserRepository
	media    MediaStore
	assessor ImageAssessor
	geocoder Geocoder
	log      *zap.Logger
	now      func() time.Time
}

func NewReportService(
	cfg ReportConfig,
	reports repository.ReportRepository,
	users repository.UserRepository,
	media MediaStore,
	assessor ImageAssessor,
	geocoder Geocoder,
	log *zap.Logger,
) *ReportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportService{
		cfg:      cfg,
		reports:  reports,
		users:    users,
		media:    media,
		assessor: assessor,
		geocoder: geocoder,
		log:      log.Named("reports"),
		now:      time.Now,
	}
}

// WithClock replaces the service clock.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

type CreateReportInput struct {
	Title          string                `json:"title" validate:"required,min=5,max=100"`
	Description    string                `json:"description" validate:"max=500"`
	Latitude       float64               `json:"latitude"`
	Longitude      float64               `json:"longitude"`
	LightCondition models.LightCondition `json:"lightCondition" validate:"required,oneof=working not_working flickering broken_pole damaged_head partial_fault"`
	Severity       models.Severity       `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	PoleNumber     string                `json:"poleNumber" validate:"max=50"`
	Address        string                `json:"address" validate:"max=200"`
	City           string                `json:"city" validate:"max=100"`
	Pincode        string                `json:"pincode" validate:"max=10"`

	Source     models.Source      `json:"source" validate:"omitempty,oneof=web mobile api"`
	DeviceInfo *models.DeviceInfo `json:"-" validate:"-"`
	IPAddress  string             `json:"-"`
	Images     []ImageFile        `json:"-" validate:"-"`
}

type CreateReportResult struct {
	Report *models.Report
	// Warning is set when the report needs manual review.
	Warning string
	// DuplicateInfo is set when similar reports exist nearby.
	DuplicateInfo string
}

// CreateReport validates a new report, runs the duplicate search and the
// review decision against it and stores it in a single write.
func (s *ReportService) CreateReport(ctx context.Context, actor Actor, in CreateReportInput) (*CreateReportResult, error) {
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	if err := geo.ValidateCoordinates(in.Latitude, in.Longitude); err != nil {
		return nil, err
	}
	if in.City != "" {
		within, known := geo.WithinCity(in.Latitude, in.Longitude, in.City)
		if !known {
			s.log.Debug("no service bounds for city", zap.String("city", in.City))
		} else if !within {
			return nil, apperrors.New(apperrors.KindOutOfServiceArea, "Location is outside our service area")
		}
	}
	if err := s.validateImages(in.Images); err != nil {
		return nil, err
	}

	images := s.processImages(ctx, in.Images)

	location := models.NewLocation(in.Latitude, in.Longitude)
	location.Address, location.City, location.Pincode = in.Address, in.City, in.Pincode
	if in.Address == "" || in.City == "" {
		s.enrichAddress(ctx, &location)
	}

	severity := in.Severity
	if severity == "" {
		severity = models.SeverityMedium
	}
	source := in.Source
	if source == "" {
		source = models.SourceWeb
	}

	report := &models.Report{
		ID:             primitive.NewObjectID(),
		Title:          in.Title,
		Description:    in.Description,
		Location:       location,
		Images:         images,
		LightCondition: in.LightCondition,
		Severity:       severity,
		PoleNumber:     in.PoleNumber,
		Status:         models.StatusPending,
		ReportedBy:     actor.ID,
		Source:         source,
		DeviceInfo:     in.DeviceInfo,
		IPAddress:      in.IPAddress,
	}

	dup := DecideDuplicate(s.findDuplicates(ctx, report))
	if dup.IsDuplicate {
		report.IsDuplicate = true
		report.DuplicateOf = dup.DuplicateOf
		report.DuplicateCount = dup.Count
	}

	review := DecideReview(report)
	if review.RequiresReview {
		report.RequiresReview = true
		report.Status = review.Status
	}

	if err := s.reports.InsertReport(ctx, report); err != nil {
		s.log.Error("failed to insert report", zap.Error(err))
		return nil, apperrors.Internal(err)
	}

	if dup.IsDuplicate {
		metrics.ReportDuplicates.Inc()
		if err := s.reports.IncrementDuplicateCount(ctx, *dup.DuplicateOf); err != nil {
			s.log.Warn("failed to increment duplicate count",
				zap.String("report_id", dup.DuplicateOf.Hex()), zap.Error(err))
		}
	}

	if err := s.users.IncrementReportsSubmitted(ctx, actor.ID); err != nil {
		s.log.Warn("failed to increment reports submitted", zap.String("user_id", actor.ID.Hex()), zap.Error(err))
	}

	metrics.ReportsCreated.WithLabelValues(string(report.Status)).Inc()
	s.log.Info("report created",
		zap.String("report_id", report.ID.Hex()),
		zap.String("status", string(report.Status)),
		zap.Bool("duplicate", report.IsDuplicate),
		zap.Strings("review_reasons", review.Reasons),
		zap.Int("images", len(report.Images)),
	)

	result := &CreateReportResult{Report: report}
	if report.RequiresReview {
		result.Warning = ReviewWarning
	}
	if report.IsDuplicate {
		result.DuplicateInfo = DuplicateNotice(report.DuplicateCount)
	}
	return result, nil
}

// findDuplicates looks for open reports near the new one. Failures are
// logged and treated as no match.
func (s *ReportService) findDuplicates(ctx context.Context, report *models.Report) []models.Report {
	matches, err := s.reports.FindNear(ctx, repository.NearQuery{
		Lat:          report.Location.Lat(),
		Lng:          report.Location.Lng(),
		RadiusMeters: s.cfg.DuplicateRadiusMeters,
		Limit:        s.cfg.DuplicateLimit,
		ExcludeID:    &report.ID,
		Statuses:     models.OpenStatuses,
	})
	if err != nil {
		s.log.Warn("duplicate search failed", zap.String("report_id", report.ID.Hex()), zap.Error(err))
		return nil
	}
	return matches
}

func (s *ReportService) validateImages(files []ImageFile) error {
	if len(files) > s.cfg.MaxImages {
		return apperrors.Validation(fmt.Sprintf("You can upload at most %d images", s.cfg.MaxImages))
	}
	for _, f := range files {
		if f.Size > s.cfg.MaxImageBytes || int64(len(f.Data)) > s.cfg.MaxImageBytes {
			return apperrors.Validation(fmt.Sprintf("Image %s exceeds the %d MB limit", f.Filename, s.cfg.MaxImageBytes>>20))
		}
		if s.cfg.MaxImagePixels > 0 && int64(f.Width)*int64(f.Height) > s.cfg.MaxImagePixels {
			return apperrors.Validation(fmt.Sprintf("Image %s exceeds the %d megapixel limit", f.Filename, s.cfg.MaxImagePixels/1_000_000))
		}
		if !AllowedImageTypes[f.ContentType] {
			return apperrors.Validation("Only image files are allowed (jpeg, jpg, png, gif, webp)")
		}
	}
	return nil
}

// processImages assesses and uploads each file. A failed upload skips that
// image; a failed assessment is recorded as a quality warning.
func (s *ReportService) processImages(ctx context.Context, files []ImageFile) []models.Image {
	images := []models.Image{}
	for _, f := range files {
		quality, err := s.assessor.Assess(ctx, f)
		if err != nil {
			s.log.Warn("image quality assessment failed", zap.String("file", f.Filename), zap.Error(err))
			quality = &QualityReport{Warnings: []string{qualityUnavailable}}
		}
		if len(quality.Warnings) > 0 {
			s.log.Info("image quality warnings", zap.String("file", f.Filename), zap.Strings("warnings", quality.Warnings))
		}

		uploaded, err := s.media.Upload(ctx, f)
		metrics.RecordImageUpload(err)
		if err != nil {
			s.log.Warn("image upload failed", zap.String("file", f.Filename), zap.Error(err))
			continue
		}

		images = append(images, models.Image{
			PublicID:     uploaded.PublicID,
			URL:          uploaded.URL,
			ThumbnailURL: uploaded.ThumbnailURL,
			Width:        uploaded.Width,
			Height:       uploaded.Height,
			Format:       uploaded.Format,
			UploadedAt:   s.now(),
			Quality: &models.ImageQuality{
				Brightness:  quality.Brightness,
				Resolution:  quality.Resolution,
				Orientation: quality.Orientation,
				Warnings:    quality.Warnings,
			},
		})
	}
	return images
}

// enrichAddress fills blank address fields from the geocoder. Lookup
// failures leave the location as it is.
func (s *ReportService) enrichAddress(ctx context.Context, loc *models.Location) {
	if s.geocoder == nil {
		return
	}
	if s.cfg.GeocodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GeocodeTimeout)
		defer cancel()
	}

	addr, err := s.geocoder.Lookup(ctx, loc.Lat(), loc.Lng())
	if err != nil {
		s.log.Warn("reverse geocoding failed", zap.Float64("lat", loc.Lat()), zap.Float64("lng", loc.Lng()), zap.Error(err))
		return
	}
	if addr == nil {
		return
	}
	if loc.Address == "" {
		loc.Address = addr.FormattedAddress
	}
	if loc.City == "" {
		loc.City = addr.City
	}
	if loc.Pincode == "" {
		loc.Pincode = addr.Pincode
	}
}

func (s *ReportService) loadReport(ctx context.Context, id string) (*models.Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NotFound("Report not found")
	}
	report, err := s.reports.FindReportByID(ctx, oid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Report not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return report, nil
}

// GetReport returns a report and counts the view. Citizens may only read
// their own reports.
func (s *ReportService) GetReport(ctx context.Context, actor Actor, id string) (*models.Report, error) {
	report, err := s.loadReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleCitizen && report.ReportedBy != actor.ID {
		return nil, apperrors.Forbidden("Not authorized to view this report")
	}

	if err := s.reports.IncrementViewCount(ctx, report.ID); err != nil {
		s.log.Warn("failed to increment view count", zap.String("report_id", report.ID.Hex()), zap.Error(err))
	} else {
		report.ViewCount++
	}
	return report, nil
}

type ReportQuery struct {
	Page           int    `form:"page" validate:"omitempty,min=1"`
	Limit          int    `form:"limit" validate:"omitempty,min=1,max=100"`
	Status         string `form:"status" validate:"omitempty,oneof=pending under_review assigned in_progress resolved verified closed rejected"`
	LightCondition string `form:"lightCondition" validate:"omitempty,oneof=working not_working flickering broken_pole damaged_head partial_fault"`
	Severity       string `form:"severity" validate:"omitempty,oneof=low medium high critical"`
	City           string `form:"city"`
	Search         string `form:"search" validate:"max=100"`
	SortBy         string `form:"sortBy"`
	SortOrder      string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

type ReportPage struct {
	Reports    []models.Report
	Pagination Pagination
	// Stats is only filled for admins.
	Stats []repository.StatusCount
}

// ListReports pages through reports visible to the actor. Citizens see
// their own reports; workers see assigned work.
func (s *ReportService) ListReports(ctx context.Context, actor Actor, q ReportQuery) (*ReportPage, error) {
	if err := ValidateStruct(q); err != nil {
		return nil, err
	}
	page := q.Page
	if page == 0 {
		page = 1
	}
	limit := q.Limit
	if limit == 0 {
		limit = 10
	}

	filter := repository.ReportFilter{
		Status:         models.Status(q.Status),
		LightCondition: models.LightCondition(q.LightCondition),
		Severity:       models.Severity(q.Severity),
		City:           q.City,
		Search:         q.Search,
		SortBy:         q.SortBy,
		SortDesc:       q.SortOrder != "asc",
		Skip:           int64(page-1) * int64(limit),
		Limit:          int64(limit),
	}
	switch actor.Role {
	case models.RoleCitizen:
		filter.ReportedBy = &actor.ID
	case models.RoleWorker:
		filter.WorkerID = &actor.ID
	}

	reports, total, err := s.reports.ListReports(ctx, filter)
	if err != nil {
		s.log.Error("failed to list reports", zap.Error(err))
		return nil, apperrors.Internal(err)
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	result := &ReportPage{
		Reports: reports,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
	}

	if actor.Role == models.RoleAdmin {
		stats, err := s.reports.CountByStatus(ctx)
		if err != nil {
			s.log.Warn("failed to load report statistics", zap.Error(err))
		} else {
			result.Stats = stats
		}
	}
	return result, nil
}

// ReportUpdate carries the fields of a partial update. Nil means unchanged.
type ReportUpdate struct {
	Title                   *string                `json:"title" validate:"omitempty,min=5,max=100"`
	Description             *string                `json:"description" validate:"omitempty,max=500"`
	Status                  *models.Status         `json:"status" validate:"omitempty,oneof=pending under_review assigned in_progress resolved verified closed rejected"`
	Severity                *models.Severity       `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	LightCondition          *models.LightCondition `json:"lightCondition" validate:"omitempty,oneof=working not_working flickering broken_pole damaged_head partial_fault"`
	PoleNumber              *string                `json:"poleNumber" validate:"omitempty,max=50"`
	AssignedTo              *primitive.ObjectID    `json:"assignedTo" validate:"-"`
	ResolutionNotes         *string                `json:"resolutionNotes" validate:"omitempty,max=1000"`
	ReviewNotes             *string                `json:"reviewNotes" validate:"omitempty,max=1000"`
	RequiresReview          *bool                  `json:"requiresReview"`
	EstimatedResolutionTime *time.Time             `json:"estimatedResolutionTime" validate:"-"`
}

// Fields lists the names of the fields set on the update.
func (u ReportUpdate) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(u.Title != nil, FieldTitle)
	add(u.Description != nil, FieldDescription)
	add(u.Status != nil, FieldStatus)
	add(u.Severity != nil, FieldSeverity)
	add(u.LightCondition != nil, FieldLightCondition)
	add(u.PoleNumber != nil, FieldPoleNumber)
	add(u.AssignedTo != nil, FieldAssignedTo)
	add(u.ResolutionNotes != nil, FieldResolutionNotes)
	add(u.ReviewNotes != nil, FieldReviewNotes)
	add(u.RequiresReview != nil, FieldRequiresReview)
	add(u.EstimatedResolutionTime != nil, FieldEstimatedResolutionTime)
	return fields
}

// UpdateReport applies a partial update after checking the actor's
// capabilities. Status changes follow the lifecycle table.
func (s *ReportService) UpdateReport(ctx context.Context, actor Actor, id string, upd ReportUpdate) (*models.Report, error) {
	if err := ValidateStruct(upd); err != nil {
		return nil, err
	}
	if len(upd.Fields()) == 0 {
		return nil, apperrors.Validation("No updatable fields provided")
	}

	report, err := s.loadReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckUpdate(actor, report, upd); err != nil {
		return nil, err
	}
	if upd.AssignedTo != nil {
		if err := checkAssignmentTarget(report.Status, upd.Status); err != nil {
			return nil, err
		}
		if err := s.checkAssignee(ctx, *upd.AssignedTo); err != nil {
			return nil, err
		}
	}

	if upd.Title != nil {
		report.Title = *upd.Title
	}
	if upd.Description != nil {
		report.Description = *upd.Description
	}
	if upd.Severity != nil {
		report.Severity = *upd.Severity
	}
	if upd.LightCondition != nil {
		report.LightCondition = *upd.LightCondition
	}
	if upd.PoleNumber != nil {
		report.PoleNumber = *upd.PoleNumber
	}
	if upd.RequiresReview != nil {
		report.RequiresReview = *upd.RequiresReview
	}
	if upd.EstimatedResolutionTime != nil {
		report.EstimatedResolutionTime = upd.EstimatedResolutionTime
	}
	if upd.ResolutionNotes != nil {
		report.ResolutionNotes = *upd.ResolutionNotes
	}
	if upd.ReviewNotes != nil {
		report.ReviewNotes = *upd.ReviewNotes
	}

	transitioned := false
	from := report.Status
	if upd.Status != nil && *upd.Status != report.Status {
		in := TransitionInput{Actor: actor, AssignTo: upd.AssignedTo, Now: s.now()}
		switch *upd.Status {
		case models.StatusResolved:
			in.Notes = report.ResolutionNotes
		case models.StatusRejected:
			in.Notes = report.ReviewNotes
		}
		if err := ApplyTransition(report, *upd.Status, in); err != nil {
			return nil, err
		}
		transitioned = true
	} else if upd.AssignedTo != nil {
		assignee := *upd.AssignedTo
		report.AssignedTo = &assignee
		now := s.now()
		report.AssignedAt = &now
	}

	if err := s.reports.SaveReport(ctx, report); err != nil {
		s.log.Error("failed to save report", zap.String("report_id", report.ID.Hex()), zap.Error(err))
		return nil, apperrors.Internal(err)
	}

	if transitioned {
		metrics.ReportTransitions.WithLabelValues(string(from), string(report.Status)).Inc()
		s.log.Info("report status changed",
			zap.String("report_id", report.ID.Hex()),
			zap.String("from", string(from)),
			zap.String("to", string(report.Status)),
			zap.String("actor", actor.ID.Hex()),
		)
		if report.Status == models.StatusResolved {
			if err := s.users.IncrementReportsResolved(ctx, actor.ID); err != nil {
				s.log.Warn("failed to increment reports resolved", zap.String("user_id", actor.ID.Hex()), zap.Error(err))
			}
		}
	}
	return report, nil
}

// checkAssignmentTarget accepts assignedTo only when the report moves into
// assigned, or is reassigned while assigned or in progress.
func checkAssignmentTarget(current models.Status, next *models.Status) error {
	if next != nil && *next != current {
		if *next == models.StatusAssigned {
			return nil
		}
		return apperrors.Validation("assignedTo can only be set when assigning the report")
	}
	switch current {
	case models.StatusAssigned, models.StatusInProgress:
		return nil
	}
	return apperrors.Validation(fmt.Sprintf("Cannot reassign a report in %s status", current))
}

func (s *ReportService) checkAssignee(ctx context.Context, id primitive.ObjectID) error {
	user, err := s.users.FindUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.Validation("Assigned user not found")
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	if !user.Role.IsStaff() {
		return apperrors.Validation("Reports can only be assigned to workers or admins")
	}
	return nil
}

// DeleteReport removes a report and its images. Only admins may delete;
// image deletion failures are logged.
func (s *ReportService) DeleteReport(ctx context.Context, actor Actor, id string) error {
	if actor.Role != models.RoleAdmin {
		return apperrors.Forbidden("You do not have permission to perform this action")
	}
	report, err := s.loadReport(ctx, id)
	if err != nil {
		return err
	}

	for _, img := range report.Images {
		if err := s.media.Delete(ctx, img.PublicID); err != nil {
			s.log.Warn("failed to delete report image",
				zap.String("report_id", report.ID.Hex()), zap.String("public_id", img.PublicID), zap.Error(err))
		}
	}

	if err := s.reports.DeleteReport(ctx, report.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("Report not found")
		}
		return apperrors.Internal(err)
	}
	s.log.Info("report deleted", zap.String("report_id", report.ID.Hex()), zap.String("actor", actor.ID.Hex()))
	return nil
}

type NearbyQuery struct {
	Lat    float64
	Lng    float64
	Radius float64
	Limit  int64
}

// NearbyReports returns reports of any status near a point, nearest first.
func (s *ReportService) NearbyReports(ctx context.Context, q NearbyQuery) ([]models.Report, error) {
	if err := geo.ValidateCoordinates(q.Lat, q.Lng); err != nil {
		return nil, err
	}
	if q.Radius < 0 || q.Limit < 0 {
		return nil, apperrors.Validation("Radius and limit must be positive")
	}

	radius := q.Radius
	if radius == 0 {
		radius = s.cfg.NearbyDefaultRadius
	}
	radius = math.Min(radius, s.cfg.NearbyMaxRadius)

	limit := q.Limit
	if limit == 0 {
		limit = s.cfg.NearbyDefaultLimit
	}
	if limit > s.cfg.NearbyMaxLimit {
		limit = s.cfg.NearbyMaxLimit
	}

	reports, err := s.reports.FindNear(ctx, repository.NearQuery{
		Lat:          q.Lat,
		Lng:          q.Lng,
		RadiusMeters: radius,
		Limit:        limit,
	})
	if err != nil {
		s.log.Error("nearby search failed", zap.Error(err))
		return nil, apperrors.Internal(err)
	}
	return reports, nil
}

type AddImagesResult struct {
	Images      []models.Image
	TotalImages int
}

// AddImages attaches more images to an existing report. The owner and
// staff may add images.
func (s *ReportService) AddImages(ctx context.Context, actor Actor, id string, files []ImageFile) (*AddImagesResult, error) {
	if len(files) == 0 {
		return nil, apperrors.Validation("No images uploaded")
	}
	report, err := s.loadReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleCitizen && report.ReportedBy != actor.ID {
		return nil, apperrors.Forbidden("Not authorized to add images to this report")
	}
	if err := s.validateImages(files); err != nil {
		return nil, err
	}

	added := s.processImages(ctx, files)
	if len(added) == 0 {
		return nil, apperrors.New(apperrors.KindUpstreamFailure, "No images could be uploaded")
	}

	report.Images = append(report.Images, added...)
	if err := s.reports.SaveReport(ctx, report); err != nil {
		s.log.Error("failed to save report images", zap.String("report_id", report.ID.Hex()), zap.Error(err))
		return nil, apperrors.Internal(err)
	}
	return &AddImagesResult{Images: added, TotalImages: len(report.Images)}, nil
}

type ReportStats struct {
	Total   int64                    `json:"total"`
	Overall []repository.StatusCount `json:"overall"`
	Daily   []repository.DailyCount  `json:"daily"`
	Users   []repository.RoleCount   `json:"users"`
}

// Statistics summarises reports by status, by day over the last week and
// users by role.
func (s *ReportService) Statistics(ctx context.Context) (*ReportStats, error) {
	overall, err := s.reports.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -6)
	daily, err := s.reports.DailyCounts(ctx, since)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	users, err := s.users.CountUsersByRole(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	var total int64
	for _, c := range overall {
		total += c.Count
	}
	return &ReportStats{Total: total, Overall: overall, Daily: daily, Users: users}, nil
}
