// -- cmd/generate.go --
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voidwalk/webgen/api/schemas"
	"github.com/voidwalk/webgen/internal/browser"
	"github.com/voidwalk/webgen/internal/extract"
	"github.com/voidwalk/webgen/internal/generator"
	"github.com/voidwalk/webgen/internal/history"
	"github.com/voidwalk/webgen/internal/machine"
	"github.com/voidwalk/webgen/internal/observability"
	"github.com/voidwalk/webgen/internal/orchestrator"
	"github.com/voidwalk/webgen/internal/profile"
)

type generateFlags struct {
	task     string
	prompt   string
	negative string
	image    string
	mask     string
	strength float64
	scale    float64
	duration float64
	output   string
	timeout  time.Duration
}

func newGenerateCommand() *cobra.Command {
	var flags generateFlags

	genCmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one generation task through the provider fallback chain.",
		Example: `  webgen generate --task text_to_image --prompt "a lighthouse at dusk" --output out.png
  webgen generate --task image_to_video --image cat.png --duration 4 --output cat.mp4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), flags)
		},
	}

	genCmd.Flags().StringVarP(&flags.task, "task", "t", "", "task type ("+taskNames()+")")
	genCmd.Flags().StringVarP(&flags.prompt, "prompt", "p", "", "text prompt")
	genCmd.Flags().StringVar(&flags.negative, "negative-prompt", "", "negative prompt")
	genCmd.Flags().StringVarP(&flags.image, "image", "i", "", "source image path")
	genCmd.Flags().StringVarP(&flags.mask, "mask", "m", "", "mask image path (inpaint)")
	genCmd.Flags().Float64Var(&flags.strength, "strength", 0, "transformation strength (0,1]")
	genCmd.Flags().Float64Var(&flags.scale, "scale", 0, "upscale factor")
	genCmd.Flags().Float64Var(&flags.duration, "duration", 0, "video duration in seconds")
	genCmd.Flags().StringVarP(&flags.output, "output", "o", "", "write the artifact to this path")
	genCmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "per-candidate attempt deadline (default from config)")
	genCmd.MarkFlagRequired("task")

	return genCmd
}

func runGenerate(ctx context.Context, flags generateFlags) error {
	cfg, err := configFromContext(ctx)
	if err != nil {
		return err
	}
	logger := observability.GetLogger()

	task := schemas.TaskType(flags.task)
	if !task.Valid() {
		return fmt.Errorf("unknown task %q (expected one of: %s)", flags.task, taskNames())
	}

	library, err := profile.Load(cfg.Profiles.Path)
	if err != nil {
		return fmt.Errorf("loading profile library: %w", err)
	}

	manager := browser.NewManager(cfg.Browser, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Browser.ShutdownGrace)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown incomplete", zap.Error(err))
		}
	}()

	mach, err := machine.New(manager, extract.New(logger), cfg.Browser, cfg.Diagnostics.Dir, logger)
	if err != nil {
		return err
	}

	var runner orchestrator.AttemptRunner = mach
	if cfg.Generator.ProviderRate > 0 {
		runner = generator.NewPacedRunner(mach, cfg.Generator.ProviderRate, cfg.Generator.ProviderBurst, logger)
	}

	orch, err := orchestrator.New(runner, logger)
	if err != nil {
		return err
	}

	var opts []generator.Option
	if cfg.History.Enabled {
		pool, err := pgxpool.New(ctx, cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("connecting attempt journal: %w", err)
		}
		defer pool.Close()

		store, err := history.New(ctx, pool, logger)
		if err != nil {
			return fmt.Errorf("initializing attempt journal: %w", err)
		}
		opts = append(opts, generator.WithRecorder(store))
	}

	gen, err := generator.New(orch, library, cfg.Generator, logger, opts...)
	if err != nil {
		return err
	}

	req := &schemas.GenerationRequest{
		Prompt:          flags.prompt,
		NegativePrompt:  flags.negative,
		SourceImagePath: flags.image,
		MaskImagePath:   flags.mask,
		Strength:        flags.strength,
		Scale:           flags.scale,
		Duration:        flags.duration,
		OutputPath:      flags.output,
		Timeout:         flags.timeout,
	}

	result, err := dispatch(ctx, gen, task, req)
	if err != nil {
		return err
	}
	return report(result)
}

func dispatch(ctx context.Context, gen *generator.Generator, task schemas.TaskType, req *schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	switch task {
	case schemas.TaskTextToImage:
		return gen.TextToImage(ctx, req)
	case schemas.TaskImageToImage:
		return gen.ImageToImage(ctx, req)
	case schemas.TaskInpaint:
		return gen.Inpaint(ctx, req)
	case schemas.TaskUpscale:
		return gen.Upscale(ctx, req)
	case schemas.TaskTextToVideo:
		return gen.TextToVideo(ctx, req)
	case schemas.TaskImageToVideo:
		return gen.ImageToVideo(ctx, req)
	default:
		return nil, fmt.Errorf("unknown task %q", task)
	}
}

func report(result *schemas.GenerationResult) error {
	if result.Success {
		if result.WrittenPath != "" {
			fmt.Printf("OK  provider=%s  wrote %s\n", result.Provider, result.WrittenPath)
		} else {
			fmt.Printf("OK  provider=%s  %s (%d bytes)\n",
				result.Provider, result.Artifact.ContentType, len(result.Artifact.Bytes))
		}
		return nil
	}

	fmt.Printf("FAILED after %d attempt(s):\n", len(result.Attempts))
	for i, a := range result.Attempts {
		fmt.Printf("  %d. %s: [%s] %s\n", i+1, a.Provider, a.Err.Kind, a.Err.Detail)
		if a.ScreenshotPath != "" {
			fmt.Printf("     screenshot: %s\n", a.ScreenshotPath)
		}
	}
	return fmt.Errorf("all providers failed for task %s", result.Task)
}

func taskNames() string {
	s := ""
	for i, t := range schemas.AllTasks {
		if i > 0 {
			s += ", "
		}
		s += string(t)
	}
	return s
}
