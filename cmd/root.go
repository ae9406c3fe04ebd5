// Package cmd wires the MenuLens command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/menulens/cmd/details"
	"github.com/tphakala/menulens/cmd/extract"
	"github.com/tphakala/menulens/cmd/generate"
	"github.com/tphakala/menulens/cmd/serve"
	"github.com/tphakala/menulens/cmd/version"
	"github.com/tphakala/menulens/internal/buildinfo"
	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/telemetry"
)

// App carries what the commands share: the settings, the build identity
// and the cleanup registered while initializing.
type App struct {
	Settings *conf.Settings
	Build    buildinfo.BuildInfo

	configFile string
	cleanup    []func()
}

// Close runs registered cleanup in reverse order.
func (a *App) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

// RootCommand creates and returns the root command
func RootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "menulens",
		Short:         "MenuLens menu reader and dish image generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, app); err != nil {
		panic(err)
	}

	versionCmd := version.Command(app.Build)
	rootCmd.AddCommand(
		extract.Command(app.Settings),
		details.Command(app.Settings),
		generate.Command(app.Settings),
		serve.Command(app.Settings, app.Build),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version works without a config
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(app)
	}

	return rootCmd
}

// initialize reloads settings when --config names a file, then sets up
// logging and telemetry. Flags bound to viper keep their precedence.
func initialize(app *App) error {
	if app.configFile != "" {
		loaded, err := conf.LoadFile(app.configFile)
		if err != nil {
			return err
		}
		*app.Settings = *loaded
	}

	cfg := app.Settings.Logging
	if app.Settings.Debug {
		cfg.DefaultLevel = string(logger.LogLevelDebug)
		if cfg.Console == nil {
			cfg.Console = &logger.ConsoleOutput{Enabled: true}
		}
		console := *cfg.Console
		console.Level = string(logger.LogLevelDebug)
		cfg.Console = &console
	}
	central, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	logger.SetGlobal(central)
	app.cleanup = append(app.cleanup, func() { _ = central.Close() })

	shutdown, err := telemetry.Init(&app.Settings.Sentry, app.Build)
	if err != nil {
		return err
	}
	app.cleanup = append(app.cleanup, shutdown)

	central.Module("main").Debug("initialized",
		logger.String("version", app.Build.GetVersion()),
		logger.Bool("telemetry", app.Settings.Sentry.Enabled))
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, app *App) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&app.configFile, "config", "c", "", "Path to a config.yaml, default search paths when empty")
	flags.BoolVarP(&app.Settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	flags.StringVar(&app.Settings.OCR.Provider, "ocr", viper.GetString("ocr.provider"), "OCR provider: mock, vision, gemini, tesseract")
	flags.StringVar(&app.Settings.Translate.Provider, "translator", viper.GetString("translate.provider"), "Translation provider: none, dictionary, google, gemini")
	flags.StringVar(&app.Settings.Generation.Provider, "generator", viper.GetString("generation.provider"), "Image generation provider: mock, gemini")

	bindings := map[string]string{
		"debug":               "debug",
		"ocr.provider":        "ocr",
		"translate.provider":  "translator",
		"generation.provider": "generator",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
