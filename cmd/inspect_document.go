/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/docchat-be/utils"
)

// inspectDocumentCmd represents the inspect-document command
var inspectDocumentCmd = &cobra.Command{
	Use:   "inspect-document",
	Short: "Extract the PDF and print what the chat context will contain",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.logger.Sync()

		text, err := a.store.Text()
		if err != nil {
			return fmt.Errorf("%s: %w", a.cfg.PDFPath, err)
		}
		info := a.store.Info()
		previewLen, _ := cmd.Flags().GetInt("preview")

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "source:      %s\n", info.Source)
		fmt.Fprintf(out, "pages:       %d (%d with text)\n", info.TotalPages, info.TextPages)
		fmt.Fprintf(out, "characters:  %d\n", a.store.Length())
		fmt.Fprintf(out, "preview:\n%s\n", utils.Truncate(text, previewLen))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectDocumentCmd)
	inspectDocumentCmd.Flags().IntP("preview", "n", 500, "number of characters to preview")
}
