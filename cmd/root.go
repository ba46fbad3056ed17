/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docchat-be",
	Short: "Chat with a PDF document through a streaming LLM backend",
	Long: `docchat-be extracts the text of one PDF at startup and answers
questions about it by streaming completions from an LLM provider
(OpenAI-compatible or Gemini) over server-sent events or websockets.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML); defaults and environment are used when empty")
	rootCmd.PersistentFlags().String("pdf", "", "path to the PDF document (overrides pdf_path)")
}
