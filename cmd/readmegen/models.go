package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"readmegen/internal/llmclient"
)

func newModelsCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models readmegen knows for each provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			current, err := llmclient.ParseProvider(cfg.Provider)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				m := map[llmclient.Provider][]string{}
				for _, p := range llmclient.Providers() {
					m[p] = llmclient.Models(p)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(m)
			}
			for _, p := range llmclient.Providers() {
				marker := ""
				if p == current {
					marker = " (configured)"
				}
				fmt.Fprintf(out, "%s%s\n", p, marker)
				for i, m := range llmclient.Models(p) {
					if i == 0 {
						fmt.Fprintf(out, "  * %s (default)\n", m)
						continue
					}
					fmt.Fprintf(out, "    %s\n", m)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")
	return cmd
}
