package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status enum
type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusAssigned    Status = "assigned"
	StatusInProgress  Status = "in_progress"
	StatusResolved    Status = "resolved"
	StatusVerified    Status = "verified"
	StatusClosed      Status = "closed"
	StatusRejected    Status = "rejected"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPending, StatusUnderReview, StatusAssigned, StatusInProgress,
	StatusResolved, StatusVerified, StatusClosed, StatusRejected,
}

// OpenStatuses are the statuses of reports still being worked on.
var OpenStatuses = []Status{StatusPending, StatusUnderReview, StatusAssigned, StatusInProgress}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// LightCondition enum
type LightCondition string

const (
	ConditionWorking      LightCondition = "working"
	ConditionNotWorking   LightCondition = "not_working"
	ConditionFlickering   LightCondition = "flickering"
	ConditionBrokenPole   LightCondition = "broken_pole"
	ConditionDamagedHead  LightCondition = "damaged_head"
	ConditionPartialFault LightCondition = "partial_fault"
)

func (c LightCondition) Valid() bool {
	switch c {
	case ConditionWorking, ConditionNotWorking, ConditionFlickering,
		ConditionBrokenPole, ConditionDamagedHead, ConditionPartialFault:
		return true
	}
	return false
}

// Severity enum
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Source enum
type Source string

const (
	SourceWeb    Source = "web"
	SourceMobile Source = "mobile"
	SourceAPI    Source = "api"
)

// Location is a GeoJSON point plus the postal address it resolves to.
type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"` // [lng, lat]
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	City        string    `bson:"city,omitempty" json:"city,omitempty"`
	Pincode     string    `bson:"pincode,omitempty" json:"pincode,omitempty"`
}

func NewLocation(lat, lng float64) Location {
	return Location{Type: "Point", Coordinates: []float64{lng, lat}}
}

func (l Location) Lat() float64 {
	if len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[1]
}

func (l Location) Lng() float64 {
	if len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[0]
}

type ImageQuality struct {
	Brightness  int      `bson:"brightness" json:"brightness"`
	Resolution  string   `bson:"resolution" json:"resolution"`
	Orientation string   `bson:"orientation" json:"orientation"`
	Warnings    []string `bson:"warnings,omitempty" json:"warnings,omitempty"`
}

type Image struct {
	PublicID     string        `bson:"public_id" json:"publicId"`
	URL          string        `bson:"url" json:"url"`
	ThumbnailURL string        `bson:"thumbnail_url,omitempty" json:"thumbnailUrl,omitempty"`
	Width        int           `bson:"width,omitempty" json:"width,omitempty"`
	Height       int           `bson:"height,omitempty" json:"height,omitempty"`
	Format       string        `bson:"format,omitempty" json:"format,omitempty"`
	UploadedAt   time.Time     `bson:"uploadedAt" json:"uploadedAt"`
	Quality      *ImageQuality `bson:"qualityCheck,omitempty" json:"qualityCheck,omitempty"`
}

func (i Image) HasWarnings() bool {
	return i.Quality != nil && len(i.Quality.Warnings) > 0
}

type DeviceInfo struct {
	Browser string `bson:"browser,omitempty" json:"browser,omitempty"`
	OS      string `bson:"os,omitempty" json:"os,omitempty"`
	Device  string `bson:"device,omitempty" json:"device,omitempty"`
}

// Report represents a streetlight fault filed by a citizen
type Report struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title          string             `bson:"title" json:"title"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	Location       Location           `bson:"location" json:"location"`
	Images         []Image            `bson:"images" json:"images"`
	LightCondition LightCondition     `bson:"lightCondition" json:"lightCondition"`
	Severity       Severity           `bson:"severity" json:"severity"`
	PoleNumber     string             `bson:"poleNumber,omitempty" json:"poleNumber,omitempty"`
	Status         Status             `bson:"status" json:"status"`

	IsDuplicate    bool                `bson:"isDuplicate" json:"isDuplicate"`
	DuplicateOf    *primitive.ObjectID `bson:"duplicateOf,omitempty" json:"duplicateOf,omitempty"`
	DuplicateCount int                 `bson:"duplicateCount" json:"duplicateCount"`

	RequiresReview bool                `bson:"requiresReview" json:"requiresReview"`
	ReviewNotes    string              `bson:"reviewNotes,omitempty" json:"reviewNotes,omitempty"`
	ReviewedBy     *primitive.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time          `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`

	AssignedTo *primitive.ObjectID `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	AssignedAt *time.Time          `bson:"assignedAt,omitempty" json:"assignedAt,omitempty"`

	ResolvedBy      *primitive.ObjectID `bson:"resolvedBy,omitempty" json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time          `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	ResolutionNotes string              `bson:"resolutionNotes,omitempty" json:"resolutionNotes,omitempty"`

	VerifiedBy *primitive.ObjectID `bson:"verifiedBy,omitempty" json:"verifiedBy,omitempty"`
	VerifiedAt *time.Time          `bson:"verifiedAt,omitempty" json:"verifiedAt,omitempty"`

	ReportedBy primitive.ObjectID `bson:"reportedBy" json:"reportedBy"`

	EstimatedResolutionTime *time.Time `bson:"estimatedResolutionTime,omitempty" json:"estimatedResolutionTime,omitempty"`
	ActualResolutionTime    *time.Time `bson:"actualResolutionTime,omitempty" json:"actualResolutionTime,omitempty"`

	ViewCount  int         `bson:"viewCount" json:"viewCount"`
	Source     Source      `bson:"source" json:"source"`
	DeviceInfo *DeviceInfo `bson:"deviceInfo,omitempty" json:"deviceInfo,omitempty"`
	IPAddress  string      `bson:"ipAddress,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (r *Report) IsResolved() bool {
	switch r.Status {
	case StatusResolved, StatusVerified, StatusClosed:
		return true
	}
	return false
}

func (r *Report) IsActive() bool {
	for _, s := range OpenStatuses {
		if r.Status == s {
			return true
		}
	}
	return false
}

func (r *Report) HasImages() bool {
	return len(r.Images) > 0
}

func (r *Report) AgeInDays(now time.Time) int {
	return int(now.Sub(r.CreatedAt).Hours() / 24)
}

func (r *Report) FormattedAddress() string {
	var parts []string
	for _, p := range []string{r.Location.Address, r.Location.City, r.Location.Pincode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
