package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const outFlagName = "out"

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String(outFlagName, "", "Write the document to this file instead of stdout")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Rebuild state from snapshot and journal and print it as market_data JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		out, err := cmd.Flags().GetString(outFlagName)
		if err != nil {
			return err
		}

		n, err := boot(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer n.close()
		doc := n.ex.Export()

		var w io.Writer = cmd.OutOrStdout()
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return errors.Wrap(err, "create output")
			}
			defer f.Close()
			w = f
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(doc), "encode")
	},
}
