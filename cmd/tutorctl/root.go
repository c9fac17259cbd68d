package main

import (
	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-tutor/internal/content"
	"github.com/p-n-ai/pai-tutor/internal/platform/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tutorctl",
		Short:         "Manage adaptive tutor content and storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("dir", "", "Content directory (overrides LEARN_CONTENT_DIR)")

	root.AddCommand(newSeedCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newConceptsCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

// loadConfig reads the environment config, applying the --dir flag on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.Content.Dir = dir
	}
	return cfg, nil
}

func contentPaths(cfg *config.Config) content.Paths {
	return content.Paths{
		Concepts:  cfg.ContentPath(cfg.Content.Concepts),
		Questions: cfg.ContentPath(cfg.Content.Questions),
		Examples:  cfg.ContentPath(cfg.Content.Examples),
	}
}
