package config

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Declarative validation runs first via go-playground/validator tags,
// followed by rules that cannot be expressed in tags. Log level
// normalization happens in ApplyDefaults, not here; validation accepts
// both cases.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !filepath.IsAbs(cfg.Storage.Root) {
		return fmt.Errorf("storage.root: must be an absolute path, got %q", cfg.Storage.Root)
	}

	if cfg.Store.Type == "badger" && cfg.Store.Badger.Path == "" {
		return fmt.Errorf("store.badger.path: required when store.type is badger")
	}

	// A seeded admin needs both halves of the credential.
	if (cfg.Admin.Username == "") != (cfg.Admin.Password == "") {
		return fmt.Errorf("admin: username and password must be set together")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
