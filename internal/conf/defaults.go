// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default prompt for dish image generation. {{.Name}} is the dish name as
// read from the menu, {{.Translated}} its translation when known.
const DefaultPromptTemplate = "A professional food photograph of {{.Name}}{{if .Translated}} ({{.Translated}}){{end}}, " +
	"served on a plain plate, soft natural light, shallow depth of field, top-down restaurant menu style"

// DefaultNegativePrompt lists content kept out of generated images.
const DefaultNegativePrompt = "text, watermark, logo, hands, people, blurry, cartoon"

// setDefaultConfig sets default values on v.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "MenuLens")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/menulens.log")
	v.SetDefault("logging.file_output.level", "debug")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("sentry.samplerate", 1.0)

	v.SetDefault("ocr.provider", "mock")
	v.SetDefault("ocr.fallback", "mock")
	v.SetDefault("ocr.maximagebytes", 10*1024*1024)
	v.SetDefault("ocr.fetchtimeout", 15*time.Second)
	v.SetDefault("ocr.vision.endpoint", "https://vision.googleapis.com/v1/images:annotate")
	v.SetDefault("ocr.vision.maxresults", 50)
	v.SetDefault("ocr.vision.languagehints", []string{"zh", "en"})
	v.SetDefault("ocr.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ocr.tesseract.languages", []string{"chi_sim", "eng"})

	v.SetDefault("translate.provider", "dictionary")
	v.SetDefault("translate.target", "en")
	v.SetDefault("translate.cachettl", 24*time.Hour)
	v.SetDefault("translate.dictionarypath", "")
	v.SetDefault("translate.google.endpoint", "https://translation.googleapis.com/language/translate/v2")
	v.SetDefault("translate.gemini.model", "gemini-2.5-flash")

	v.SetDefault("extract.priceratio", 0.6)
	v.SetDefault("extract.headerwidthratio", 0.25)
	v.SetDefault("extract.headerconfidence", 0.6)
	v.SetDefault("extract.minconfidence", 0.0)

	v.SetDefault("details.provider", "mock")
	v.SetDefault("details.cachettl", 24*time.Hour)
	v.SetDefault("details.maxbatch", 20)
	v.SetDefault("details.gemini.model", "gemini-2.5-flash")

	v.SetDefault("generation.provider", "mock")
	v.SetDefault("generation.styleversion", "v1")
	v.SetDefault("generation.prompttemplate", DefaultPromptTemplate)
	v.SetDefault("generation.negativeprompt", DefaultNegativePrompt)
	v.SetDefault("generation.timeout", 2*time.Minute)
	v.SetDefault("generation.warmconcurrency", 4)
	v.SetDefault("generation.retry.maxretries", 1)
	v.SetDefault("generation.retry.initialbackoff", 500*time.Millisecond)
	v.SetDefault("generation.retry.maxbackoff", 5*time.Second)
	v.SetDefault("generation.retry.multiplier", 2.0)
	v.SetDefault("generation.ratelimit.budget", 10)
	v.SetDefault("generation.ratelimit.window", time.Minute)
	v.SetDefault("generation.ratelimit.policy", "block")
	v.SetDefault("generation.ratelimit.maxwait", 30*time.Second)
	v.SetDefault("generation.ratelimit.maxconcurrent", 4)
	v.SetDefault("generation.artifacts.dir", "data/artifacts")
	v.SetDefault("generation.artifacts.baseurl", "/artifacts")
	v.SetDefault("generation.gemini.model", "gemini-2.5-flash-image")

	v.SetDefault("datastore.enabled", false)
	v.SetDefault("datastore.type", "sqlite")
	v.SetDefault("datastore.sqlite.path", "data/menulens.db")
	v.SetDefault("datastore.mysql.dsn", "")

	v.SetDefault("webserver.listen", ":8080")
	v.SetDefault("webserver.readtimeout", 30*time.Second)
	v.SetDefault("webserver.writetimeout", 5*time.Minute)
	v.SetDefault("webserver.maxbodybytes", 12*1024*1024)
	v.SetDefault("webserver.maxbatchdishes", 50)
	v.SetDefault("webserver.allowedorigins", []string{"*"})
}
