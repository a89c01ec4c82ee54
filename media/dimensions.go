package media

import (
	"bytes"
	"fmt"
	"image"

	"streetlight-watch/services"
)

// Dimensions reads the width and height declared by the image header
// without decoding pixel data.
func Dimensions(data []byte) (width, height int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// checkPixels returns the header config of data and fails with
// services.ErrTooManyPixels when it declares more than maxPixels pixels.
func checkPixels(data []byte, maxPixels int64) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return cfg, err
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return cfg, fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, services.ErrTooManyPixels)
	}
	return cfg, nil
}

func pixelCap(maxPixels int64) int64 {
	if maxPixels <= 0 {
		return services.DefaultMaxImagePixels
	}
	return maxPixels
}
