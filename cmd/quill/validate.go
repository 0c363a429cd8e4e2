package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillcms/quill/config"
	"github.com/quillcms/quill/core/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and collection definitions",
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

		fmt.Printf("configuration ok: %d collection(s)\n", registry.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
