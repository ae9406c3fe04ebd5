// config.go: settings struct for MenuLens and the functions to load it.
package conf

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/menulens/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings holds process-wide identity settings
type MainSettings struct {
	Name string `mapstructure:"name" yaml:"name"` // instance name, used as user agent suffix
}

// SentrySettings configures optional error telemetry
type SentrySettings struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	DSN         string  `mapstructure:"dsn" yaml:"dsn"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
	SampleRate  float64 `mapstructure:"samplerate" yaml:"samplerate"`
}

// VisionSettings configures the Google Vision REST provider
type VisionSettings struct {
	APIKey        string   `mapstructure:"apikey" yaml:"apikey"`
	Endpoint      string   `mapstructure:"endpoint" yaml:"endpoint"`
	MaxResults    int      `mapstructure:"maxresults" yaml:"maxresults"`
	LanguageHints []string `mapstructure:"languagehints" yaml:"languagehints"`
}

// GeminiSettings configures a Gemini model used by one of the providers
type GeminiSettings struct {
	APIKey string `mapstructure:"apikey" yaml:"apikey"`
	Model  string `mapstructure:"model" yaml:"model"`
}

// TesseractSettings configures the local OCR engine
type TesseractSettings struct {
	Languages []string `mapstructure:"languages" yaml:"languages"`
}

// OCRSettings configures text recognition
type OCRSettings struct {
	Provider      string            `mapstructure:"provider" yaml:"provider"` // mock, vision, gemini, tesseract
	Fallback      string            `mapstructure:"fallback" yaml:"fallback"` // provider used when the primary is unavailable, "" disables
	MaxImageBytes int64             `mapstructure:"maximagebytes" yaml:"maximagebytes"`
	FetchTimeout  time.Duration     `mapstructure:"fetchtimeout" yaml:"fetchtimeout"`
	Vision        VisionSettings    `mapstructure:"vision" yaml:"vision"`
	Gemini        GeminiSettings    `mapstructure:"gemini" yaml:"gemini"`
	Tesseract     TesseractSettings `mapstructure:"tesseract" yaml:"tesseract"`
}

// GoogleTranslateSettings configures the Cloud Translation v2 REST provider
type GoogleTranslateSettings struct {
	APIKey   string `mapstructure:"apikey" yaml:"apikey"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// TranslateSettings configures language detection and translation
type TranslateSettings struct {
	Provider       string                  `mapstructure:"provider" yaml:"provider"` // none, dictionary, google, gemini
	Target         string                  `mapstructure:"target" yaml:"target"`     // default target language
	CacheTTL       time.Duration           `mapstructure:"cachettl" yaml:"cachettl"`
	DictionaryPath string                  `mapstructure:"dictionarypath" yaml:"dictionarypath"`
	Google         GoogleTranslateSettings `mapstructure:"google" yaml:"google"`
	Gemini         GeminiSettings          `mapstructure:"gemini" yaml:"gemini"`
}

// DetailsSettings configures dish detail enrichment
type DetailsSettings struct {
	Provider string         `mapstructure:"provider" yaml:"provider"` // none, mock, gemini
	CacheTTL time.Duration  `mapstructure:"cachettl" yaml:"cachettl"`
	MaxBatch int            `mapstructure:"maxbatch" yaml:"maxbatch"` // dishes per provider call
	Gemini   GeminiSettings `mapstructure:"gemini" yaml:"gemini"`
}

// ExtractSettings tunes the dish extraction heuristics
type ExtractSettings struct {
	PriceRatio       float64 `mapstructure:"priceratio" yaml:"priceratio"`
	HeaderWidthRatio float64 `mapstructure:"headerwidthratio" yaml:"headerwidthratio"`
	HeaderConfidence float64 `mapstructure:"headerconfidence" yaml:"headerconfidence"`
	MinConfidence    float64 `mapstructure:"minconfidence" yaml:"minconfidence"`
}

// RetrySettings configures the retry of transient generation failures
type RetrySettings struct {
	MaxRetries     int           `mapstructure:"maxretries" yaml:"maxretries"`
	InitialBackoff time.Duration `mapstructure:"initialbackoff" yaml:"initialbackoff"`
	MaxBackoff     time.Duration `mapstructure:"maxbackoff" yaml:"maxbackoff"`
	Multiplier     float64       `mapstructure:"multiplier" yaml:"multiplier"`
}

// RateLimitSettings configures the process-wide generation budget
type RateLimitSettings struct {
	Budget  int           `mapstructure:"budget" yaml:"budget"` // generation starts per window
	Window  time.Duration `mapstructure:"window" yaml:"window"`
	Policy  string        `mapstructure:"policy" yaml:"policy"` // block or failfast
	MaxWait time.Duration `mapstructure:"maxwait" yaml:"maxwait"`

	// MaxConcurrent caps generations holding a permit at once, 0 means no cap
	MaxConcurrent int `mapstructure:"maxconcurrent" yaml:"maxconcurrent"`
}

// ArtifactSettings configures where generated images are written
type ArtifactSettings struct {
	Dir     string `mapstructure:"dir" yaml:"dir"`
	BaseURL string `mapstructure:"baseurl" yaml:"baseurl"`
}

// GenerationSettings configures dish image generation
type GenerationSettings struct {
	Provider        string            `mapstructure:"provider" yaml:"provider"` // mock or gemini
	StyleVersion    string            `mapstructure:"styleversion" yaml:"styleversion"`
	PromptTemplate  string            `mapstructure:"prompttemplate" yaml:"prompttemplate"`
	NegativePrompt  string            `mapstructure:"negativeprompt" yaml:"negativeprompt"`
	Timeout         time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	WarmConcurrency int               `mapstructure:"warmconcurrency" yaml:"warmconcurrency"`
	Retry           RetrySettings     `mapstructure:"retry" yaml:"retry"`
	RateLimit       RateLimitSettings `mapstructure:"ratelimit" yaml:"ratelimit"`
	Artifacts       ArtifactSettings  `mapstructure:"artifacts" yaml:"artifacts"`
	Gemini          GeminiSettings    `mapstructure:"gemini" yaml:"gemini"`
}

// DatastoreSettings configures persistence of generation records
type DatastoreSettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Type    string `mapstructure:"type" yaml:"type"` // sqlite or mysql
	SQLite  struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL struct {
		DSN string `mapstructure:"dsn" yaml:"dsn"`
	} `mapstructure:"mysql" yaml:"mysql"`
}

// WebServerSettings configures the HTTP API
type WebServerSettings struct {
	Listen       string        `mapstructure:"listen" yaml:"listen"`
	ReadTimeout  time.Duration `mapstructure:"readtimeout" yaml:"readtimeout"`
	WriteTimeout time.Duration `mapstructure:"writetimeout" yaml:"writetimeout"`
	MaxBodyBytes int64         `mapstructure:"maxbodybytes" yaml:"maxbodybytes"`

	// MaxBatchDishes caps the dishes accepted by one warm or details request
	MaxBatchDishes int `mapstructure:"maxbatchdishes" yaml:"maxbatchdishes"`

	AllowedOrigins []string `mapstructure:"allowedorigins" yaml:"allowedorigins"`
}

// Settings contains all configuration options for MenuLens
type Settings struct {
	Debug      bool                 `mapstructure:"debug" yaml:"debug"`
	Main       MainSettings         `mapstructure:"main" yaml:"main"`
	Logging    logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Sentry     SentrySettings       `mapstructure:"sentry" yaml:"sentry"`
	OCR        OCRSettings          `mapstructure:"ocr" yaml:"ocr"`
	Translate  TranslateSettings    `mapstructure:"translate" yaml:"translate"`
	Extract    ExtractSettings      `mapstructure:"extract" yaml:"extract"`
	Details    DetailsSettings      `mapstructure:"details" yaml:"details"`
	Generation GenerationSettings   `mapstructure:"generation" yaml:"generation"`
	Datastore  DatastoreSettings    `mapstructure:"datastore" yaml:"datastore"`
	WebServer  WebServerSettings    `mapstructure:"webserver" yaml:"webserver"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file, environment variables and bound flags
// from the global viper instance into a new Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings, err := loadFrom(viper.GetViper(), "")
	if err != nil {
		return nil, err
	}
	settingsInstance = settings
	return settings, nil
}

// LoadFile reads settings from an explicit config file path.
func LoadFile(path string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings, err := loadFrom(viper.GetViper(), path)
	if err != nil {
		return nil, err
	}
	settingsInstance = settings
	return settings, nil
}

// loadFrom populates v and unmarshals it; configFile overrides search paths
func loadFrom(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// initViper sets defaults and env bindings on v and reads the configuration file.
// When no file is found the embedded defaults are used.
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)
	if err := bindEnvVars(v); err != nil {
		return err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range GetDefaultConfigPaths() {
		v.AddConfigPath(path)
	}

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}
	return v.ReadConfig(bytes.NewReader(data))
}

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// in priority order.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "menulens"))
	}
	return append(paths, "/etc/menulens")
}

// DefaultConfigYAML returns the embedded default configuration.
func DefaultConfigYAML() []byte {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil
	}
	return data
}

// Setting returns the most recently loaded settings, or nil
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
