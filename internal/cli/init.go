package cli

import (
	"errors"
	"fmt"

	"github.com/mhpenta/imageloop"
	"github.com/spf13/cobra"
)

func newInitCmd(app *App) *cobra.Command {
	var (
		name         string
		instructions string
		model        string
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the prompter session config",
		Long: `Init writes the prompter's identity (name, instructions, model) to the
session config file that later runs load. An existing file is kept unless
--force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store := imageloop.NewFileConfigStore(app.fs, app.cfg.Session.Path)

			existing, err := store.Load(ctx)
			switch {
			case err == nil && !force:
				return fmt.Errorf("session config already exists at %s (use --force to overwrite)", store.Path())
			case err != nil && !errors.Is(err, imageloop.ErrConfigNotFound):
				if !force {
					return err
				}
				existing = nil
			}

			cfg := imageloop.DefaultSessionConfig()
			if existing != nil {
				cfg.LastSessionID = existing.LastSessionID
			}
			if name != "" {
				cfg.PrompterName = name
			}
			if instructions != "" {
				cfg.PrompterInstructions = instructions
			}
			cfg.PrompterModel = model

			if err := store.Save(ctx, cfg); err != nil {
				return err
			}
			app.logger.Info("session config written", "path", store.Path(), "prompter", cfg.PrompterName)
			fmt.Fprintln(cmd.OutOrStdout(), store.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "prompter name")
	cmd.Flags().StringVar(&instructions, "instructions", "", "prompter system instructions")
	cmd.Flags().StringVar(&model, "prompter-model", "", "chat model the prompter uses (provider default if empty)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing session config")

	return cmd
}
