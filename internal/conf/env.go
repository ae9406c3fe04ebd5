// env.go - Environment variable configuration and validation for MenuLens
package conf

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every automatically bound environment variable,
// so generation.ratelimit.budget reads MENULENS_GENERATION_RATELIMIT_BUDGET.
const EnvPrefix = "MENULENS"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVars   []string           // Environment variable names, first set wins
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the explicit environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"ocr.provider", []string{"MENULENS_OCR_PROVIDER", "OCR_PROVIDER"}, validateEnvOCRProvider},
		{"ocr.fallback", []string{"MENULENS_OCR_FALLBACK"}, validateEnvOCRFallback},
		{"ocr.vision.apikey", []string{"MENULENS_OCR_VISION_APIKEY", "GOOGLE_VISION_API_KEY"}, nil},
		{"ocr.gemini.apikey", []string{"MENULENS_OCR_GEMINI_APIKEY", "GEMINI_API_KEY"}, nil},

		{"translate.provider", []string{"MENULENS_TRANSLATE_PROVIDER"}, validateEnvTranslateProvider},
		{"translate.target", []string{"MENULENS_TRANSLATE_TARGET"}, nil},
		{"translate.google.apikey", []string{"MENULENS_TRANSLATE_GOOGLE_APIKEY", "GOOGLE_TRANSLATE_API_KEY"}, nil},
		{"translate.gemini.apikey", []string{"MENULENS_TRANSLATE_GEMINI_APIKEY", "GEMINI_API_KEY"}, nil},

		{"details.provider", []string{"MENULENS_DETAILS_PROVIDER"}, validateEnvDetailsProvider},
		{"details.gemini.apikey", []string{"MENULENS_DETAILS_GEMINI_APIKEY", "GEMINI_API_KEY"}, nil},

		{"generation.provider", []string{"MENULENS_GENERATION_PROVIDER"}, validateEnvGenerationProvider},
		{"generation.gemini.apikey", []string{"MENULENS_GENERATION_GEMINI_APIKEY", "GEMINI_API_KEY"}, nil},
		{"generation.timeout", []string{"MENULENS_GENERATION_TIMEOUT"}, validateEnvDuration},
		{"generation.ratelimit.budget", []string{"MENULENS_GENERATION_RATELIMIT_BUDGET"}, validateEnvPositiveInt},
		{"generation.ratelimit.window", []string{"MENULENS_GENERATION_RATELIMIT_WINDOW"}, validateEnvDuration},
		{"generation.ratelimit.policy", []string{"MENULENS_GENERATION_RATELIMIT_POLICY"}, validateEnvRatePolicy},

		{"datastore.enabled", []string{"MENULENS_DATASTORE_ENABLED"}, validateEnvBool},
		{"datastore.mysql.dsn", []string{"MENULENS_DATASTORE_MYSQL_DSN"}, nil},

		{"sentry.enabled", []string{"MENULENS_SENTRY_ENABLED"}, validateEnvBool},
		{"sentry.dsn", []string{"MENULENS_SENTRY_DSN", "SENTRY_DSN"}, nil},

		{"webserver.listen", []string{"MENULENS_WEBSERVER_LISTEN"}, nil},
		{"debug", []string{"MENULENS_DEBUG"}, validateEnvBool},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var warnings []string
	for _, binding := range getEnvBindings() {
		args := append([]string{binding.ConfigKey}, binding.EnvVars...)
		if err := v.BindEnv(args...); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", strings.Join(binding.EnvVars, ","), err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		for _, name := range binding.EnvVars {
			envValue := os.Getenv(name)
			if envValue == "" {
				continue
			}
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", name, envValue, err))
			}
			break
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func oneOf(valid ...string) func(string) error {
	return func(value string) error {
		if slices.Contains(valid, strings.ToLower(value)) {
			return nil
		}
		return fmt.Errorf("must be one of: %s", strings.Join(valid, ", "))
	}
}

var (
	validateEnvOCRProvider        = oneOf(OCRProviders...)
	validateEnvOCRFallback        = oneOf(append([]string{"none"}, OCRProviders...)...)
	validateEnvTranslateProvider  = oneOf(TranslateProviders...)
	validateEnvDetailsProvider    = oneOf(DetailsProviders...)
	validateEnvGenerationProvider = oneOf(GenerationProviders...)
	validateEnvRatePolicy         = oneOf(RatePolicies...)
)
