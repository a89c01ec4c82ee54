package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"streetlight-watch/models"
)

var (
	ErrNotFound       = errors.New("document not found")
	ErrDuplicateEmail = errors.New("user with this email already exists")
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// FindUserByResetToken matches the stored digest and an expiry after now.
	FindUserByResetToken(ctx context.Context, digest string, now time.Time) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	// IncrementLoginAttempts adds one failed attempt and, when lockUntil is
	// non-nil, locks the account until then.
	IncrementLoginAttempts(ctx context.Context, id primitive.ObjectID, lockUntil *time.Time) error
	// ResetLoginAttempts sets the attempt counter and clears any lock.
	ResetLoginAttempts(ctx context.Context, id primitive.ObjectID, attempts int) error
	// RecordLogin clears attempts and lock and stamps the last login.
	RecordLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error

	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string, changedAt time.Time) error
	SetPasswordResetToken(ctx context.Context, id primitive.ObjectID, digest string, expires time.Time) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*models.User, error)

	IncrementReportsSubmitted(ctx context.Context, id primitive.ObjectID) error
	IncrementReportsResolved(ctx context.Context, id primitive.ObjectID) error
	CountUsersByRole(ctx context.Context) ([]RoleCount, error)
}

type ReportRepository interface {
	InsertReport(ctx context.Context, report *models.Report) error
	FindReportByID(ctx context.Context, id primitive.ObjectID) (*models.Report, error)
	// SaveReport replaces the stored document; last write wins.
	SaveReport(ctx context.Context, report *models.Report) error
	DeleteReport(ctx context.Context, id primitive.ObjectID) error
	ListReports(ctx context.Context, filter ReportFilter) ([]models.Report, int64, error)
	// FindNear returns reports within the radius, nearest first.
	FindNear(ctx context.Context, q NearQuery) ([]models.Report, error)
	IncrementDuplicateCount(ctx context.Context, id primitive.ObjectID) error
	IncrementViewCount(ctx context.Context, id primitive.ObjectID) error
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	DailyCounts(ctx context.Context, since time.Time) ([]DailyCount, error)
}

// Store is a full document store backend.
type Store interface {
	UserRepository
	ReportRepository
	Ping(ctx context.Context) error
}

type ProfileUpdate struct {
	Name    *string
	Phone   *string
	Address *string
}

// ReportFilter selects reports for listing. Zero values mean "any".
type ReportFilter struct {
	Status         models.Status
	LightCondition models.LightCondition
	Severity       models.Severity
	City           string
	Search         string

	ReportedBy *primitive.ObjectID
	// WorkerID restricts to reports assigned to the worker or in an
	// assigned/in_progress state.
	WorkerID *primitive.ObjectID

	SortBy   string
	SortDesc bool
	Skip     int64
	Limit    int64
}

type NearQuery struct {
	Lat          float64
	Lng          float64
	RadiusMeters float64
	Limit        int64
	ExcludeID    *primitive.ObjectID
	// Statuses restricts matches; empty means any status.
	Statuses []models.Status
}

type StatusCount struct {
	Status models.Status `bson:"_id" json:"status"`
	Count  int64         `bson:"count" json:"count"`
}

type DailyCount struct {
	Date     string `bson:"date" json:"date"`
	Count    int64  `bson:"count" json:"count"`
	Resolved int64  `bson:"resolved" json:"resolved"`
	Pending  int64  `bson:"pending" json:"pending"`
}

type RoleCount struct {
	Role             models.Role `bson:"_id" json:"role"`
	Count            int64       `bson:"count" json:"count"`
	ReportsSubmitted int64       `bson:"reportsSubmitted" json:"reportsSubmitted"`
	ReportsResolved  int64       `bson:"reportsResolved" json:"reportsResolved"`
}

// SortableFields are the report fields accepted as sort keys.
var SortableFields = map[string]bool{
	"createdAt":      true,
	"updatedAt":      true,
	"title":          true,
	"status":         true,
	"severity":       true,
	"viewCount":      true,
	"duplicateCount": true,
}

var resolvedStatuses = []models.Status{models.StatusResolved, models.StatusVerified, models.StatusClosed}

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
