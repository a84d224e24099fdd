package eligibility

import (
	"time"

	"github.com/citydesk/citydesk/app/models"
)

// DefaultWindow applies to document types without a configured window.
const DefaultWindow = 90 * 24 * time.Hour

// Config holds the per-document-type re-request windows. It is passed to the
// engine at construction time so tests can run with arbitrary windows.
type Config struct {
	Windows       map[string]time.Duration
	DefaultWindow time.Duration
}

// DefaultConfig returns the production window schedule.
func DefaultConfig() Config {
	return Config{
		Windows: map[string]time.Duration{
			models.DocumentTypeResidencyCertificate: 180 * 24 * time.Hour,
			models.DocumentTypeTaxCertificate:       365 * 24 * time.Hour,
			models.DocumentTypeFamilyStatus:         180 * 24 * time.Hour,
		},
		DefaultWindow: DefaultWindow,
	}
}

// WindowFor returns the re-request window for a document type.
func (c Config) WindowFor(documentType string) time.Duration {
	if w, ok := c.Windows[documentType]; ok && w > 0 {
		return w
	}
	if c.DefaultWindow > 0 {
		return c.DefaultWindow
	}
	return DefaultWindow
}
