package analysis

import (
	"context"

	"github.com/tphakala/menulens/internal/api"
	"github.com/tphakala/menulens/internal/buildinfo"
	"github.com/tphakala/menulens/internal/logger"
)

// Serve runs the HTTP API until ctx is cancelled, then shuts it down and
// releases the runtime.
func Serve(ctx context.Context, r *Runtime, build buildinfo.BuildInfo) error {
	if build == nil {
		build = buildinfo.NewContext("", "", "")
	}
	if err := r.OpenImages(ctx); err != nil {
		return err
	}

	opts := []api.ServerOption{
		api.WithLogger(logger.Global().Module("api")),
		api.WithExtractor(r.Pipeline),
		api.WithDishImages(r.Images),
		api.WithMetrics(r.Metrics),
		api.WithBuildInfo(build),
		api.WithImageLoadOptions(r.LoadOptions()),
	}
	if r.Translator != nil {
		opts = append(opts, api.WithTranslator(r.Translator))
	}
	if r.Details != nil {
		opts = append(opts, api.WithDishDetails(r.Details))
	}
	if r.Store != nil {
		opts = append(opts, api.WithHealthCheck("datastore", r.Store.Ping))
	}

	server, err := api.New(r.Settings, opts...)
	if err != nil {
		return err
	}

	r.log.Info("serving menu API",
		logger.String("listen", r.Settings.WebServer.Listen),
		logger.String("version", build.GetVersion()))
	return server.Run(ctx)
}
