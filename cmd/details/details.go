package details

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/menulens/internal/analysis"
	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/details"
)

// Command creates the details command.
func Command(settings *conf.Settings) *cobra.Command {
	var translated, pinyin string

	cmd := &cobra.Command{
		Use:   "details [name...]",
		Short: "Describe dishes by their original names",
		Long:  "Print background, ingredients, spiciness, dietary notes and pork or beef alerts for each named dish.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := analysis.NewRuntime(cmd.Context(), settings, nil)
			if err != nil {
				return err
			}
			defer r.Close()

			reqs := make([]details.Request, len(args))
			for i, name := range args {
				reqs[i] = details.Request{OriginalName: name}
			}
			// the name flags only make sense for a single dish
			if len(reqs) == 1 {
				reqs[0].TranslatedName = translated
				reqs[0].Pinyin = pinyin
			}
			_, err = analysis.DescribeDishes(cmd.Context(), r, reqs, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVar(&translated, "translated", "", "Translated name of a single dish")
	cmd.Flags().StringVar(&pinyin, "pinyin", "", "Pinyin of a single dish")

	return cmd
}
