package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetimport/internal/core/datasets"
)

func newSchemasCmd(root *rootOptions) *cobra.Command {
	var fields bool

	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List dataset schemas in classification order",
		Long: `List the dataset schemas a sheet can be classified as.

Order matters: when two schemas score the same, the earlier one wins.

Examples:
  importctl schemas                    # built-in schemas
  importctl schemas --fields           # with every field and its patterns
  importctl schemas --registry s.yaml  # schemas from a registry file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd, false)
			if err != nil {
				return err
			}
			reg, err := datasets.LoadFile(cfg.Import.RegistryFile)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSTORE\tREQUIRED\tKEYWORDS")
			for _, s := range reg.All() {
				var required []string
				for _, f := range s.RequiredFields {
					required = append(required, f.Key)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.Kind, s.StoreID, strings.Join(required, ","), strings.Join(s.KeywordPatterns, ","))

				if fields {
					for _, f := range s.Fields() {
						req := ""
						if f.Required {
							req = "required"
						}
						fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
							f.Key, f.Type, f.Label, req, strings.Join(f.MatchPatterns, ","))
					}
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&fields, "fields", false, "list fields under each schema")
	return cmd
}
