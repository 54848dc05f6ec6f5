package export

import (
	"fmt"
	"time"

	"github.com/banshee-data/welldash/internal/render"
)

// PNGFilename names a chart image after its well and the export date.
func PNGFilename(wellID string, now time.Time) string {
	return fmt.Sprintf("chart_%s_%s.png", sanitize(wellID), now.UTC().Format("2006-01-02"))
}

// PNG draws c and saves it through sink.
func PNG(sink Sink, wellID string, c render.Chart, now time.Time) (string, error) {
	data, err := render.PNG(c)
	if err != nil {
		return "", fmt.Errorf("render png: %w", err)
	}
	return sink.Save(PNGFilename(wellID, now), data)
}
