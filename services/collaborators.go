package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"streetlight-watch/models"
)

//go:generate mockgen -source=collaborators.go -destination=mocks/mock_collaborators.go -package=mocks

// ImageFile is an uploaded image held in memory. Width and Height are the
// dimensions declared by the image header, zero when unknown.
type ImageFile struct {
	Filename    string
	ContentType string
	Size        int64
	Width       int
	Height      int
	Data        []byte
}

type UploadResult struct {
	PublicID     string
	URL          string
	ThumbnailURL string
	Width        int
	Height       int
	Format       string
}

type QualityReport struct {
	Brightness  int
	Width       int
	Height      int
	Resolution  string
	Orientation string
	Warnings    []string
}

// MediaStore stores report images.
type MediaStore interface {
	Upload(ctx context.Context, file ImageFile) (*UploadResult, error)
	Delete(ctx context.Context, publicID string) error
}

type ImageAssessor interface {
	Assess(ctx context.Context, file ImageFile) (*QualityReport, error)
}

type Address struct {
	FormattedAddress string
	City             string
	Pincode          string
}

// Geocoder resolves a coordinate to a postal address. A nil address with a
// nil error means the provider had no result.
type Geocoder interface {
	Lookup(ctx context.Context, lat, lng float64) (*Address, error)
}

type TokenClaims struct {
	UserID   string
	Role     models.Role
	IssuedAt time.Time
}

// TokenService signs and verifies session tokens.
type TokenService interface {
	Sign(userID string, role models.Role) (string, error)
	Verify(token string) (*TokenClaims, error)
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   primitive.ObjectID
	Role models.Role
}

func ActorFromUser(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
