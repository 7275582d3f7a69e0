package extract

import (
	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"

	"github.com/LeviWoodfall/Regia/internal/config"
)

// OCREngine recognizes text in rendered image bytes. Engines can be
// disabled; callers must check Enabled before rendering work they would
// otherwise waste.
type OCREngine interface {
	ImageText(img []byte) (string, error)
	Enabled() bool
}

// TesseractEngine is the gosseract-backed OCREngine.
type TesseractEngine struct {
	enabled  bool
	language string
	log      *logrus.Logger
}

// NewTesseractEngine creates an engine from OCR configuration.
func NewTesseractEngine(cfg config.OCRConfig, log *logrus.Logger) *TesseractEngine {
	return &TesseractEngine{
		enabled:  cfg.Enabled,
		language: cfg.Language,
		log:      log,
	}
}

// Enabled reports whether OCR should run at all.
func (e *TesseractEngine) Enabled() bool {
	return e.enabled
}

// ImageText runs Tesseract over one image. A fresh client per call keeps
// the engine safe for use from concurrent account runs.
func (e *TesseractEngine) ImageText(img []byte) (string, error) {
	if !e.enabled {
		return "", nil
	}

	client := gosseract.NewClient()
	defer client.Close()

	if e.language != "" {
		if err := client.SetLanguage(e.language); err != nil {
			return "", err
		}
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return "", err
	}
	return client.Text()
}
