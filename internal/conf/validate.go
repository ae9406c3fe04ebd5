// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"regexp"
	"slices"
	"strings"
	"text/template"
)

// Known provider and policy names
var (
	OCRProviders        = []string{"mock", "vision", "gemini", "tesseract"}
	TranslateProviders  = []string{"none", "dictionary", "google", "gemini"}
	DetailsProviders    = []string{"none", "mock", "gemini"}
	GenerationProviders = []string{"mock", "gemini"}
	RatePolicies        = []string{"block", "failfast"}
	DatastoreTypes      = []string{"sqlite", "mysql"}
)

// styleVersionPattern matches style versions that are safe as file name parts
var styleVersionPattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateOCRSettings(&s.OCR) },
		func(s *Settings) error { return validateTranslateSettings(&s.Translate) },
		func(s *Settings) error { return validateExtractSettings(&s.Extract) },
		func(s *Settings) error { return validateDetailsSettings(&s.Details) },
		func(s *Settings) error { return validateGenerationSettings(&s.Generation) },
		func(s *Settings) error { return validateDatastoreSettings(&s.Datastore) },
		func(s *Settings) error { return validateWebServerSettings(&s.WebServer) },
		func(s *Settings) error { return validateSentrySettings(&s.Sentry) },
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateOCRSettings(settings *OCRSettings) error {
	var errs []string

	if !slices.Contains(OCRProviders, settings.Provider) {
		errs = append(errs, fmt.Sprintf("unknown OCR provider %q, expected one of %s", settings.Provider, strings.Join(OCRProviders, ", ")))
	}
	// a fallback equal to the primary is ignored
	if settings.Fallback != "" && settings.Fallback != "none" && !slices.Contains(OCRProviders, settings.Fallback) {
		errs = append(errs, fmt.Sprintf("unknown OCR fallback provider %q", settings.Fallback))
	}
	if settings.MaxImageBytes <= 0 {
		errs = append(errs, "maximagebytes must be positive")
	}
	if settings.FetchTimeout <= 0 {
		errs = append(errs, "fetchtimeout must be positive")
	}
	if settings.Provider == "vision" && settings.Vision.APIKey == "" {
		errs = append(errs, "vision OCR provider requires an API key")
	}
	if settings.Provider == "gemini" && settings.Gemini.APIKey == "" {
		errs = append(errs, "gemini OCR provider requires an API key")
	}

	if len(errs) > 0 {
		return fmt.Errorf("OCR settings errors: %v", errs)
	}
	return nil
}

func validateTranslateSettings(settings *TranslateSettings) error {
	var errs []string

	if !slices.Contains(TranslateProviders, settings.Provider) {
		errs = append(errs, fmt.Sprintf("unknown translation provider %q, expected one of %s", settings.Provider, strings.Join(TranslateProviders, ", ")))
	}
	if settings.Target == "" {
		errs = append(errs, "target language must be set")
	}
	if settings.CacheTTL < 0 {
		errs = append(errs, "cachettl must not be negative")
	}
	if settings.Provider == "google" && settings.Google.APIKey == "" {
		errs = append(errs, "google translation provider requires an API key")
	}
	if settings.Provider == "gemini" && settings.Gemini.APIKey == "" {
		errs = append(errs, "gemini translation provider requires an API key")
	}

	if len(errs) > 0 {
		return fmt.Errorf("translation settings errors: %v", errs)
	}
	return nil
}

func validateExtractSettings(settings *ExtractSettings) error {
	var errs []string

	ratios := map[string]float64{
		"priceratio":       settings.PriceRatio,
		"headerwidthratio": settings.HeaderWidthRatio,
		"headerconfidence": settings.HeaderConfidence,
		"minconfidence":    settings.MinConfidence,
	}
	for _, name := range []string{"priceratio", "headerwidthratio", "headerconfidence", "minconfidence"} {
		if v := ratios[name]; v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 1, got %g", name, v))
		}
	}
	if settings.PriceRatio == 0 {
		errs = append(errs, "priceratio must be greater than 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("extract settings errors: %v", errs)
	}
	return nil
}

func validateGenerationSettings(settings *GenerationSettings) error {
	var errs []string

	if !slices.Contains(GenerationProviders, settings.Provider) {
		errs = append(errs, fmt.Sprintf("unknown generation provider %q", settings.Provider))
	}
	if settings.Provider == "gemini" && settings.Gemini.APIKey == "" {
		errs = append(errs, "gemini generation provider requires an API key")
	}
	if strings.TrimSpace(settings.StyleVersion) == "" {
		errs = append(errs, "styleversion must be set")
	}
	if settings.StyleVersion != "" && !styleVersionPattern.MatchString(settings.StyleVersion) {
		errs = append(errs, "styleversion may only contain letters, digits, '-', '_' and '.', and must not start with '.'")
	}
	if _, err := template.New("prompt").Parse(settings.PromptTemplate); err != nil {
		errs = append(errs, fmt.Sprintf("invalid prompt template: %v", err))
	}
	if settings.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if settings.WarmConcurrency < 1 {
		errs = append(errs, "warmconcurrency must be at least 1")
	}

	r := settings.Retry
	if r.MaxRetries < 0 {
		errs = append(errs, "retry.maxretries must not be negative")
	}
	if r.InitialBackoff < 0 || r.MaxBackoff < 0 {
		errs = append(errs, "retry backoff durations must not be negative")
	}
	if r.MaxBackoff > 0 && r.InitialBackoff > r.MaxBackoff {
		errs = append(errs, "retry.initialbackoff must not exceed retry.maxbackoff")
	}
	if r.Multiplier < 1 {
		errs = append(errs, "retry.multiplier must be at least 1")
	}

	rl := settings.RateLimit
	if rl.Budget < 1 {
		errs = append(errs, "ratelimit.budget must be at least 1")
	}
	if rl.Window <= 0 {
		errs = append(errs, "ratelimit.window must be positive")
	}
	if !slices.Contains(RatePolicies, rl.Policy) {
		errs = append(errs, fmt.Sprintf("ratelimit.policy must be one of %s, got %q", strings.Join(RatePolicies, ", "), rl.Policy))
	}
	if rl.MaxConcurrent < 0 {
		errs = append(errs, "ratelimit.maxconcurrent must not be negative")
	}
	if rl.Policy == "block" && rl.MaxWait <= 0 {
		errs = append(errs, "ratelimit.maxwait must be positive with the block policy")
	}

	if settings.Artifacts.Dir == "" {
		errs = append(errs, "artifacts.dir must be set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("generation settings errors: %v", errs)
	}
	return nil
}

func validateDatastoreSettings(settings *DatastoreSettings) error {
	if !settings.Enabled {
		return nil
	}
	var errs []string

	switch settings.Type {
	case "sqlite":
		if settings.SQLite.Path == "" {
			errs = append(errs, "sqlite.path must be set")
		}
	case "mysql":
		if settings.MySQL.DSN == "" {
			errs = append(errs, "mysql.dsn must be set")
		}
	default:
		errs = append(errs, fmt.Sprintf("datastore type must be one of %s, got %q", strings.Join(DatastoreTypes, ", "), settings.Type))
	}

	if len(errs) > 0 {
		return fmt.Errorf("datastore settings errors: %v", errs)
	}
	return nil
}

func validateDetailsSettings(settings *DetailsSettings) error {
	var errs []string

	if !slices.Contains(DetailsProviders, settings.Provider) {
		errs = append(errs, fmt.Sprintf("unknown details provider %q, expected one of %s", settings.Provider, strings.Join(DetailsProviders, ", ")))
	}
	if settings.CacheTTL < 0 {
		errs = append(errs, "cachettl must not be negative")
	}
	if settings.MaxBatch <= 0 {
		errs = append(errs, "maxbatch must be positive")
	}
	if settings.Provider == "gemini" && settings.Gemini.APIKey == "" {
		errs = append(errs, "gemini details provider requires an API key")
	}

	if len(errs) > 0 {
		return fmt.Errorf("details settings errors: %v", errs)
	}
	return nil
}

func validateWebServerSettings(settings *WebServerSettings) error {
	var errs []string

	if _, port, err := net.SplitHostPort(settings.Listen); err != nil || port == "" {
		errs = append(errs, fmt.Sprintf("invalid listen address %q", settings.Listen))
	}
	if settings.MaxBodyBytes <= 0 {
		errs = append(errs, "maxbodybytes must be positive")
	}
	if settings.MaxBatchDishes <= 0 {
		errs = append(errs, "maxbatchdishes must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("webserver settings errors: %v", errs)
	}
	return nil
}

func validateSentrySettings(settings *SentrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return fmt.Errorf("sentry settings errors: [dsn must be set when sentry is enabled]")
	}
	if settings.SampleRate < 0 || settings.SampleRate > 1 {
		return fmt.Errorf("sentry settings errors: [samplerate must be between 0 and 1]")
	}
	return nil
}
