package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-tutor/internal/content"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the sample catalog into the content directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")

			written, err := content.WriteSample(cfg.Content.Dir, force)
			if err != nil {
				return fmt.Errorf("write sample: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(written) == 0 {
				fmt.Fprintln(out, "Catalog files already exist; use --force to overwrite.")
				return nil
			}
			for _, path := range written {
				fmt.Fprintf(out, "wrote %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite existing catalog files")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the catalog strictly and report problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			catalog, err := content.LoadStrict(contentPaths(cfg))
			if err != nil {
				return fmt.Errorf("invalid catalog: %w", err)
			}

			concepts, questions, examples := catalog.Counts()
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d concepts, %d questions, %d examples\n",
				concepts, questions, examples)

			for _, c := range catalog.Concepts() {
				if c.ID == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "warning: concept without id will be skipped")
					continue
				}
				if len(catalog.QuestionsFor(c.ID)) == 0 && len(catalog.ExamplesFor(c.ID)) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "warning: concept %s has no questions or examples\n", c.ID)
				}
			}
			return nil
		},
	}
}

func newConceptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "concepts",
		Short: "List concepts in the order they are taught",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			catalog := content.Load(contentPaths(cfg))

			out := cmd.OutOrStdout()
			concepts := catalog.Concepts()
			if len(concepts) == 0 {
				fmt.Fprintln(out, "No concepts found.")
				return nil
			}

			fmt.Fprintf(out, "%-4s  %-10s  %-24s  %-9s  %-8s  %s\n",
				"#", "ID", "Name", "Questions", "Examples", "Requires")
			fmt.Fprintln(out, strings.Repeat("-", 72))
			for i, c := range concepts {
				fmt.Fprintf(out, "%-4d  %-10s  %-24s  %-9d  %-8d  %s\n",
					i+1,
					c.ID,
					c.Name,
					len(catalog.QuestionsFor(c.ID)),
					len(catalog.ExamplesFor(c.ID)),
					strings.Join(c.Prerequisites, ","),
				)
			}
			return nil
		},
	}
}
