package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/menulens/internal/analysis"
	"github.com/tphakala/menulens/internal/buildinfo"
	"github.com/tphakala/menulens/internal/conf"
)

// Command creates the serve command, which runs the HTTP API until
// interrupted.
func Command(settings *conf.Settings, build buildinfo.BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MenuLens HTTP API",
		Long:  "Serve menu extraction, dish image generation and the generated artifacts over HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r, err := analysis.NewRuntime(ctx, settings, nil)
			if err != nil {
				return err
			}
			defer r.Close()

			return analysis.Serve(ctx, r, build)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVarP(&settings.WebServer.Listen, "listen", "l", viper.GetString("webserver.listen"), "Listen address and port")
	cmd.Flags().BoolVar(&settings.Datastore.Enabled, "datastore", viper.GetBool("datastore.enabled"), "Persist generated images in the datastore")
	cmd.Flags().StringVar(&settings.Generation.Artifacts.Dir, "artifacts", viper.GetString("generation.artifacts.dir"), "Directory for generated images")

	bindings := map[string]string{
		"webserver.listen":         "listen",
		"datastore.enabled":        "datastore",
		"generation.artifacts.dir": "artifacts",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
