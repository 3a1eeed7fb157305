package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/wikiexport/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/wikiexport.yaml
var configTemplate embed.FS

// configTemplatePath is the template's path inside configTemplate.
const configTemplatePath = "templates/wikiexport.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a wikiexport site file",
		Long: `Init writes a commented .wikiexport site file to the current directory.

The site file tunes crawling per wiki host: request delay, article
prefix, extra headers, namespaces to skip and the CSS selectors used to
strip page chrome. Every option is documented in the generated file.

Examples:
  # Create .wikiexport in current directory
  wikiexport init

  # Create the file at a specific path
  wikiexport init -o ~/.config/wikiexport/config.yaml

  # Force overwrite existing file
  wikiexport init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the site file")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing site file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("site file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(configTemplatePath)
	if err != nil {
		return fmt.Errorf("failed to read site file template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write site file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created site file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure per-wiki settings such as:")
	fmt.Fprintln(out, "  - Request delay and extra headers")
	fmt.Fprintln(out, "  - Article prefix and namespaces to skip")
	fmt.Fprintln(out, "  - Selectors for page chrome and content")

	return nil
}
