package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"intentforge/internal/config"
	"intentforge/internal/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate [description]",
	Short: "Score a generation description without a conversation",
	Long: `Runs the quality validator against a description and prints the issues
and score. Useful for checking hand-written prompts.

Example:
  forge validate --asset twitch_emote "a happy fox character celebrating"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

var (
	validateAssetType string
	validatePalette   string
)

func init() {
	validateCmd.Flags().StringVar(&validateAssetType, "asset", "twitch_emote", "asset type to validate against")
	validateCmd.Flags().StringVar(&validatePalette, "palette", "", "brand palette, comma-separated colors")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	v := validator.New(validator.Config{
		MinWords:    cfg.Validator.MinWords,
		MaxWords:    cfg.Validator.MaxWords,
		MaxWarnings: cfg.Validator.MaxWarnings,
	})

	var brand *validator.BrandContext
	if validatePalette != "" {
		var palette []string
		for _, c := range strings.Split(validatePalette, ",") {
			if trimmed := strings.TrimSpace(strings.ToLower(c)); trimmed != "" {
				palette = append(palette, trimmed)
			}
		}
		brand = &validator.BrandContext{Palette: palette}
	}

	description := strings.Join(args, " ")
	report := v.Validate(description, validateAssetType, brand)

	fmt.Printf("Score: %.2f  valid=%v  generation_ready=%v\n",
		report.QualityScore, report.IsValid, report.IsGenerationReady)

	for _, issue := range report.Issues {
		fmt.Printf("  [%s] %s: %s\n", issue.Severity, issue.Code, issue.Message)
		if issue.Suggestion != "" {
			fmt.Printf("          suggestion: %s\n", issue.Suggestion)
		}
	}
	if report.FixedDescription != "" {
		fmt.Println("Auto-fixed:", report.FixedDescription)
	}
	return nil
}
