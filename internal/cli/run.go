package cli

import (
	"errors"
	"fmt"

	"github.com/mhpenta/imageloop"
	"github.com/spf13/cobra"
)

// ErrRunFailed is returned when no round produced a usable image.
var ErrRunFailed = errors.New("refinement loop produced no image")

func newRunCmd(app *App) *cobra.Command {
	var (
		refs   []string
		output string
	)

	cmd := &cobra.Command{
		Use:   "run [PROMPT]",
		Short: "Run the generate, evaluate and refine loop",
		Long: `Run generates an image from PROMPT, scores it, rewrites the prompt from
the evaluator's feedback and tries again, printing the loop report when done.

PROMPT may be omitted when at least one --ref is given.`,
		Example: `  imageloop run "a red bicycle leaning on a brick wall"
  imageloop run "same bicycle, at night" --ref bike.png --quality high --output yaml
  imageloop run "poster" --provider openai --background transparent --s3-bucket renders`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := ""
			if len(args) > 0 {
				prompt = args[0]
			}
			if prompt == "" && len(refs) == 0 {
				return errors.New("a prompt or at least one --ref is required")
			}
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			return app.run(cmd, prompt, refs, output)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&refs, "ref", nil, "reference image path or URL (repeatable)")
	flags.StringVarP(&output, "output", "o", "json", "report format (json, yaml)")
	flags.String("provider", "", "provider (gemini, openai)")
	flags.String("model", "", "image model (e.g. nano-banana-2, gpt-image-1)")
	flags.Int("max-iterations", imageloop.DefaultMaxIterations, "maximum number of rounds")
	flags.Float64("threshold", imageloop.DefaultScoreThreshold, "score that ends the loop early")
	flags.Bool("resend-primary-ref", false, "send the first reference again on continued rounds")
	flags.String("quality", "", "quality (auto, low, medium, high)")
	flags.String("size", "", "size (auto, 1024x1024, 1024x1536, 1536x1024)")
	flags.String("background", "", "background (auto, opaque, transparent)")
	flags.String("format", "", "output format (png, jpeg, webp)")
	flags.String("artifacts", "", "directory to write images to")
	flags.String("s3-bucket", "", "S3 bucket to upload images to")
	cmd.MarkFlagsMutuallyExclusive("artifacts", "s3-bucket")

	return cmd
}

func (a *App) run(cmd *cobra.Command, prompt string, refs []string, output string) error {
	ctx := cmd.Context()

	configStore := imageloop.NewFileConfigStore(a.fs, a.cfg.Session.Path)
	session, err := imageloop.LoadOrCreateSessionConfig(ctx, configStore)
	if err != nil {
		return fmt.Errorf("load session config: %w", err)
	}

	store, err := newStorage(ctx, a.fs, a.cfg.Storage)
	if err != nil {
		return fmt.Errorf("configure storage: %w", err)
	}

	backend, err := a.newBackend(ctx, a.cfg, session, store, a.logger)
	if err != nil {
		return fmt.Errorf("configure provider: %w", err)
	}
	if backend.Close != nil {
		defer func() {
			if err := backend.Close(); err != nil {
				a.logger.Warn("failed to close provider", "error", err.Error())
			}
		}()
	}

	controller := imageloop.NewController(backend.Generator, backend.Evaluator, backend.Prompter,
		imageloop.WithControllerLogger(a.logger),
		imageloop.WithMaxIterations(a.cfg.Loop.MaxIterations),
		imageloop.WithScoreThreshold(a.cfg.Loop.ScoreThreshold),
		imageloop.WithPrimaryReferenceResend(a.cfg.Loop.ResendPrimaryReference),
		imageloop.WithSessionConfig(session, configStore),
	)

	report := controller.Run(ctx, prompt, refs, a.cfg.GenerateOptions())

	if err := writeReport(a.out, report, output); err != nil {
		return err
	}
	if !report.Succeeded() {
		return ErrRunFailed
	}
	return nil
}
