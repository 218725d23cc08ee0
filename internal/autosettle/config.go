// Package autosettle creates settlements automatically when contract
// completion notifications arrive.
package autosettle

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cargosettle/internal/config"
	"github.com/smallbiznis/cargosettle/internal/settlement/domain"
)

// Config controls the auto-creation behaviour.
type Config struct {
	Enabled        bool
	AutoCalculate  bool
	AutoTransition bool
	// FailOnError propagates handler failures back to the dispatcher instead
	// of swallowing them after logging.
	FailOnError bool
	Timeout     time.Duration

	DefaultDocumentType    domain.DocumentType
	DefaultCurrency        string
	DefaultConversionRatio decimal.Decimal
}

// LoadConfig reads the auto-settlement options from the environment.
func LoadConfig() (Config, error) {
	cfg := Config{
		Enabled:        config.GetenvBool("AUTOSETTLE_ENABLED", true),
		AutoCalculate:  config.GetenvBool("AUTOSETTLE_AUTO_CALCULATE", false),
		AutoTransition: config.GetenvBool("AUTOSETTLE_AUTO_TRANSITION", false),
		FailOnError:    config.GetenvBool("AUTOSETTLE_FAIL_ON_ERROR", false),
		Timeout:        config.GetenvDuration("AUTOSETTLE_TIMEOUT", 10*time.Second),

		DefaultDocumentType: domain.DocumentType(config.Getenv("AUTOSETTLE_DOCUMENT_TYPE", string(domain.DocumentTypeBillOfLading))),
		DefaultCurrency:     config.Getenv("AUTOSETTLE_CURRENCY", ""),
	}

	ratio, err := decimal.NewFromString(config.Getenv("AUTOSETTLE_CONVERSION_RATIO", "7.33"))
	if err != nil {
		return Config{}, domain.ErrInvalidConfiguration
	}
	cfg.DefaultConversionRatio = ratio

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects option combinations that would produce broken settlements.
func (c Config) Validate() error {
	if !c.DefaultConversionRatio.IsPositive() {
		return domain.ErrInvalidConfiguration
	}
	switch c.DefaultDocumentType {
	case domain.DocumentTypeBillOfLading, domain.DocumentTypeInvoice, domain.DocumentTypeOther:
	default:
		return domain.ErrInvalidConfiguration
	}
	if c.Timeout <= 0 {
		return domain.ErrInvalidConfiguration
	}
	return nil
}
