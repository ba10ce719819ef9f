package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"portfolio.admin/internal/models"
)

func newGenerateTextCmd(opts *options) *cobra.Command {
	var contextJSON string
	cmd := &cobra.Command{
		Use:   "generate-text <action> <content>",
		Short: "Draft or rewrite copy with the AI assistant",
		Long: `Draft or rewrite copy with the AI assistant.

Actions: improve_bio, generate_tagline, project_description, project_summary,
book_review, book_summary, video_description, course_description, seo_title,
seo_description, expand, shorten, fix_grammar.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.TextRequest{
				Action:  args[0],
				Content: strings.Join(args[1:], " "),
			}
			if contextJSON != "" {
				if err := json.Unmarshal([]byte(contextJSON), &req.Context); err != nil {
					return fmt.Errorf("--context must be a JSON object: %w", err)
				}
			}

			c, err := opts.authenticated(cmd)
			if err != nil {
				return err
			}
			text, err := c.GenerateText(contextOf(cmd), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&contextJSON, "context", "", "extra context as a JSON object")
	return cmd
}

func newGenerateImageCmd(opts *options) *cobra.Command {
	var req models.ImageRequest
	cmd := &cobra.Command{
		Use:   "generate-image <title>",
		Short: "Generate a thumbnail and print its URL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title = strings.Join(args, " ")

			c, err := opts.authenticated(cmd)
			if err != nil {
				return err
			}
			url, err := c.GenerateImage(contextOf(cmd), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Category, "category", "", "topic hint")
	cmd.Flags().StringVar(&req.Style, "style", "", "modern, minimal, vibrant or professional")
	cmd.Flags().StringVar(&req.Type, "type", "", "project, book, video or course")
	return cmd
}
