package main

import (
	"github.com/spf13/cobra"

	"github.com/vango-dev/queryguard/internal/errors"
	"github.com/vango-dev/queryguard/internal/schemasrc"
	"github.com/vango-dev/queryguard/pkg/querycodec"
	"github.com/vango-dev/queryguard/pkg/schema"
	"github.com/vango-dev/queryguard/pkg/validate"
)

// exitInvalid is returned when the query fails validation.
const exitInvalid = 2

func validateCmd() *cobra.Command {
	var (
		schemaSrc string
		mode      string
		region    string
	)

	cmd := &cobra.Command{
		Use:   "validate <query>",
		Short: "Validate a query string against a schema",
		Long: `Validate a query string against a schema descriptor.

The result is printed as JSON. The exit code is 2 when the query
fails validation. Without --schema every key passes through as a string.

Examples:
  queryguard validate 'page=3&q=hello' --schema filters.yaml
  queryguard validate 'page=NaN' --schema s3://configs/filters.yaml --mode strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := validate.ParseMode(mode)
			if err != nil {
				return errors.New("Q402").WithDetailf("%q is not a validation mode", mode)
			}

			var s *schema.Schema
			if schemaSrc != "" {
				s, err = schemasrc.Load(cmd.Context(), schemaSrc, schemasrc.WithRegion(region))
				if err != nil {
					return err
				}
			}

			res := validate.Run(s, querycodec.Decode(args[0]), m)
			if err := writeJSON(cmd.OutOrStdout(), validationOutput{
				Data:   res.Data,
				Err:    res.Err,
				Issues: res.Issues,
			}); err != nil {
				return err
			}

			if res.Err {
				return &exitError{
					code: exitInvalid,
					err:  errors.New("Q403").WithDetailf("%d issue(s) in %q", len(res.Issues), args[0]),
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaSrc, "schema", "", "Schema descriptor path or s3://bucket/key")
	cmd.Flags().StringVarP(&mode, "mode", "m", "pick", "Validation mode: pick or strict")
	cmd.Flags().StringVar(&region, "region", "", "S3 region for s3:// schemas")

	return cmd
}

type validationOutput struct {
	Data   validate.Data    `json:"data"`
	Err    bool             `json:"isError"`
	Issues []validate.Issue `json:"issues,omitempty"`
}
