package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/passagehq/passage/pkg/rag"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against the declared field constraints plus the
// cross-field rules validator tags cannot express. All failures wrap
// rag.ErrConfiguration so callers can test with errors.Is.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", rag.ErrConfiguration)
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", rag.ErrConfiguration, err)
	}

	if cfg.Chunking.Size > 0 && cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return fmt.Errorf("%w: chunking.overlap (%d) must be smaller than chunking.size (%d)",
			rag.ErrConfiguration, cfg.Chunking.Overlap, cfg.Chunking.Size)
	}

	if cfg.Events.Provider == "kafka" && cfg.Events.Brokers == "" {
		return fmt.Errorf("%w: events.provider %q requires events.brokers", rag.ErrConfiguration, cfg.Events.Provider)
	}

	return nil
}
