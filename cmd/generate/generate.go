package generate

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/menulens/internal/analysis"
	"github.com/tphakala/menulens/internal/conf"
)

// Command creates the generate command for a single dish image.
func Command(settings *conf.Settings) *cobra.Command {
	var opts analysis.GenerateOptions

	cmd := &cobra.Command{
		Use:   "generate [slug]",
		Short: "Generate the image of one dish",
		Long:  "Return the image artifact of a dish, generating it unless a persisted one exists for the current key epoch.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := analysis.NewRuntime(cmd.Context(), settings, nil)
			if err != nil {
				return err
			}
			defer r.Close()

			_, err = analysis.GenerateDish(cmd.Context(), r, args[0], opts, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "Original dish name used in the prompt")
	cmd.Flags().StringVar(&opts.Translated, "translated", "", "Translated dish name used in the prompt")
	cmd.Flags().StringVar(&opts.Style, "style", "", "Style version, the configured default when empty")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Mint a new key epoch and regenerate")

	return cmd
}
