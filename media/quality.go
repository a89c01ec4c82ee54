package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"streetlight-watch/services"
)

const (
	MinBrightness = 50
	MinWidth      = 640
	MinHeight     = 480

	WarnTooDark   = "Image may be too dark. Try capturing with better lighting."
	WarnLowRes    = "Image resolution is low. Try getting closer to the streetlight."
	WarnPortrait  = "Portrait orientation detected. Landscape is better for streetlight photos."
	sampleGridMax = 64
)

// QualityAssessor inspects decoded pixels for brightness, resolution and
// orientation problems. Images declaring more than maxPixels pixels are
// refused before decoding.
type QualityAssessor struct {
	maxPixels int64
}

func NewQualityAssessor(maxPixels int64) *QualityAssessor {
	return &QualityAssessor{maxPixels: pixelCap(maxPixels)}
}

func (a *QualityAssessor) Assess(ctx context.Context, file services.ImageFile) (*services.QualityReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := checkPixels(file.Data, a.maxPixels); err != nil {
		return nil, fmt.Errorf("decode %s: %w", file.Filename, err)
	}

	img, _, err := image.Decode(bytes.NewReader(file.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", file.Filename, err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	report := &services.QualityReport{
		Brightness:  meanBrightness(img),
		Width:       w,
		Height:      h,
		Resolution:  fmt.Sprintf("%dx%d", w, h),
		Orientation: orientation(w, h),
	}

	if report.Brightness < MinBrightness {
		report.Warnings = append(report.Warnings, WarnTooDark)
	}
	if w < MinWidth || h < MinHeight {
		report.Warnings = append(report.Warnings, WarnLowRes)
	}
	if h > w {
		report.Warnings = append(report.Warnings, WarnPortrait)
	}
	return report, nil
}

func orientation(w, h int) string {
	switch {
	case h > w:
		return "portrait"
	case w > h:
		return "landscape"
	}
	return "square"
}

// meanBrightness averages luma (0-255) over a grid of at most
// sampleGridMax x sampleGridMax pixels.
func meanBrightness(img image.Image) int {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}

	stepX := max(1, b.Dx()/sampleGridMax)
	stepY := max(1, b.Dy()/sampleGridMax)

	var sum float64
	var n int
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
			n++
		}
	}
	return int(sum/float64(n) + 0.5)
}

var _ services.ImageAssessor = (*QualityAssessor)(nil)
