package media

import (
	"context"
	"errors"

	"streetlight-watch/services"
)

var ErrStorageDisabled = errors.New("media storage is not configured")

// DisabledStore rejects every upload. Reports submitted with images are
// then stored without them and sent to review.
type DisabledStore struct{}

func (DisabledStore) Upload(context.Context, services.ImageFile) (*services.UploadResult, error) {
	return nil, ErrStorageDisabled
}

func (DisabledStore) Delete(context.Context, string) error {
	return nil
}

var _ services.MediaStore = DisabledStore{}
