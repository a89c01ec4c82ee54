package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"google.golang.org/api/option"

	"streetlight-watch/breaker"
	"streetlight-watch/services"
)

const (
	Folder         = "streetlight-reports"
	ThumbnailWidth = 300
	thumbSuffix    = "_thumb.jpg"
)

// ObjectStore is the subset of a bucket the media store writes to.
type ObjectStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) error
	Remove(ctx context.Context, name string) error
}

// bucketObjects adapts a GCS bucket handle to ObjectStore.
type bucketObjects struct {
	bucket *storage.BucketHandle
}

func (b *bucketObjects) Put(ctx context.Context, name, contentType string, data []byte) error {
	w := b.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

func (b *bucketObjects) Remove(ctx context.Context, name string) error {
	err := b.bucket.Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

type GCSConfig struct {
	Bucket          string
	CredentialsFile string
	BaseURL         string
	Timeout         time.Duration
	// MaxPixels bounds the images decoded for thumbnails.
	MaxPixels int64
}

// GCSStore keeps report images and their thumbnails in a Cloud Storage
// bucket behind a circuit breaker.
type GCSStore struct {
	objects   ObjectStore
	baseURL   string
	timeout   time.Duration
	maxPixels int64
	cb        *gobreaker.CircuitBreaker[struct{}]
	log       *zap.Logger
	newID     func() string
	close     func() error
}

// NewGCSClient opens a storage client, using the credentials file when one
// is configured and application default credentials otherwise.
func NewGCSClient(ctx context.Context, credentialsFile string) (*storage.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

func NewGCSStore(client *storage.Client, cfg GCSConfig, log *zap.Logger) *GCSStore {
	s := NewObjectMediaStore(&bucketObjects{bucket: client.Bucket(cfg.Bucket)}, cfg, log)
	s.close = client.Close
	return s
}

// NewObjectMediaStore builds the store over any ObjectStore.
func NewObjectMediaStore(objects ObjectStore, cfg GCSConfig, log *zap.Logger) *GCSStore {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://storage.googleapis.com/" + cfg.Bucket
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &GCSStore{
		objects:   objects,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		timeout:   cfg.Timeout,
		maxPixels: pixelCap(cfg.MaxPixels),
		cb:        breaker.New[struct{}]("media-store", breaker.Settings{}, log),
		log:       log.Named("media"),
		newID:     func() string { return uuid.New().String() },
	}
}

func (s *GCSStore) Upload(ctx context.Context, file services.ImageFile) (*services.UploadResult, error) {
	contentType := file.ContentType
	if contentType == "" {
		contentType = Sniff(file.Data)
	}

	var thumb []byte
	cfg, err := checkPixels(file.Data, s.maxPixels)
	switch {
	case errors.Is(err, services.ErrTooManyPixels):
		s.log.Warn("skipping thumbnail", zap.String("file", file.Filename), zap.Error(err))
	case err != nil:
		return nil, fmt.Errorf("decode %s: %w", file.Filename, err)
	default:
		thumb, err = thumbnail(file.Data)
		if err != nil {
			s.log.Warn("thumbnail generation failed", zap.String("file", file.Filename), zap.Error(err))
		}
	}

	publicID := Folder + "/" + s.newID()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.cb.Execute(func() (struct{}, error) {
		if err := s.objects.Put(ctx, publicID, contentType, file.Data); err != nil {
			return struct{}{}, err
		}
		if thumb != nil {
			if err := s.objects.Put(ctx, publicID+thumbSuffix, "image/jpeg", thumb); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		s.log.Error("image upload failed", zap.String("file", file.Filename), zap.Error(err))
		return nil, fmt.Errorf("upload %s: %w", file.Filename, err)
	}

	res := &services.UploadResult{
		PublicID: publicID,
		URL:      s.baseURL + "/" + publicID,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Format:   formatOf(contentType),
	}
	if thumb != nil {
		res.ThumbnailURL = res.URL + thumbSuffix
	} else {
		res.ThumbnailURL = res.URL
	}
	return res, nil
}

// Delete removes the image and its thumbnail. Missing objects are not an error.
func (s *GCSStore) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.cb.Execute(func() (struct{}, error) {
		if err := s.objects.Remove(ctx, publicID); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.objects.Remove(ctx, publicID+thumbSuffix)
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", publicID, err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// thumbnail scales the image to ThumbnailWidth wide, keeping the aspect
// ratio, and encodes it as JPEG. Images already narrower are re-encoded as is.
func thumbnail(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > ThumbnailWidth {
		h = max(1, h*ThumbnailWidth/w)
		w = ThumbnailWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ services.MediaStore = (*GCSStore)(nil)
