package main

import (
	"fmt"
	"os"

	"github.com/tphakala/menulens/cmd"
	"github.com/tphakala/menulens/internal/buildinfo"
	"github.com/tphakala/menulens/internal/conf"
)

// set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = ""
	buildDate = ""
)

func main() {
	os.Exit(run())
}

func run() int {
	// Flag defaults are read from viper, so settings load before the
	// commands are built.
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 1
	}

	app := &cmd.App{
		Settings: settings,
		Build:    buildinfo.NewContext(version, buildDate, ""),
	}
	defer app.Close()

	if err := cmd.RootCommand(app).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
