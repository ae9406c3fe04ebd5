package extract

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/menulens/internal/analysis"
	"github.com/tphakala/menulens/internal/conf"
)

// Command creates the extract command, which reads one menu image and
// prints the recognized dishes as JSON.
func Command(settings *conf.Settings) *cobra.Command {
	var opts analysis.ExtractOptions

	cmd := &cobra.Command{
		Use:   "extract [image]",
		Short: "Extract dishes from a menu photo",
		Long:  "Recognize, translate and group the dishes of a menu photo. The image is a file path, an http(s) URL, a data URL or base64.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := analysis.NewRuntime(cmd.Context(), settings, nil)
			if err != nil {
				return err
			}
			defer r.Close()

			_, err = analysis.FileAnalysis(cmd.Context(), r, args[0], opts, cmd.OutOrStdout())
			return err
		},
	}

	if err := setupFlags(cmd, settings, &opts); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags configures flags specific to the extract command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings, opts *analysis.ExtractOptions) error {
	cmd.Flags().StringVarP(&opts.Target, "target", "t", "", "Target language tag, the configured default when empty")
	cmd.Flags().BoolVar(&opts.Warm, "warm", false, "Also generate an image for every dish")
	cmd.Flags().StringVar(&opts.Style, "style", "", "Image style version used with --warm")
	cmd.Flags().Int64Var(&settings.OCR.MaxImageBytes, "max-bytes", viper.GetInt64("ocr.maximagebytes"), "Largest accepted image in bytes")

	if err := viper.BindPFlag("ocr.maximagebytes", cmd.Flags().Lookup("max-bytes")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
