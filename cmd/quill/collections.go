package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quillcms/quill/config"
	"github.com/quillcms/quill/core/schema"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List the declared collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		cols, err := schema.ParseDir(cfg.Collections.Dir)
		if err != nil {
			return err
		}

		registry, err := schema.NewRegistry(cols)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSLUG\tID\tFIELDS\tWEBHOOKS")
		for _, col := range registry.All() {
			fmt.Fprintf(w, "%s\t/%s\t%s\t%d\t%d\n",
				col.Name, col.PathSlug(), col.IDStrategyOrDefault(),
				len(col.Fields), len(col.Webhooks))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(collectionsCmd)
}
