package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/adapters"
	"github.com/satriahrh/mirror-of-truth/adapters/capture"
	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/internal/catalog"
	"github.com/satriahrh/mirror-of-truth/internal/config"
	"github.com/satriahrh/mirror-of-truth/internal/presenter"
	"github.com/satriahrh/mirror-of-truth/usecase"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the mirror in the terminal",
	Long: `Run a mirror without a browser.
With --frames the images of a directory are used as the camera feed and sent
to the configured detector. Without it the mirror runs in demo mode and
cycles through simulated moods.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().String("frames", "", "Directory of JPEG/PNG images used as the camera")
	demoCmd.Flags().Duration("duration", 30*time.Second, "How long to run (0 runs until interrupted)")
	demoCmd.Flags().Uint64("seed", 0, "Seed for simulated moods and the mock detector (0 is random)")
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	framesDir := mustGetString(cmd, "frames")
	duration := mustGetDuration(cmd, "duration")
	if seed := mustGetUint64(cmd, "seed"); seed != 0 {
		cfg.Detector.MockSeed = seed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The terminal belongs to the renderer, so only warnings are logged.
	cfg.Log.Format = "console"
	if cfg.Log.Level == "info" || cfg.Log.Level == "debug" {
		cfg.Log.Level = "warn"
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	c, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("failed to load tip catalog: %w", err)
	}

	gate, err := newGate(ctx, cfg.Detector, logger)
	if err != nil {
		return err
	}

	moodHistory := adapters.NewMemoryMoodHistory()
	mirrors := usecase.NewMirrorService(c, gate, moodHistory, mirrorConfig(cfg.Mirror), cfg.Detector.MockSeed, logger)

	sessionID := uuid.New().String()
	controller := mirrors.NewController(sessionID, capture.NewDirectoryCamera(framesDir))

	runCtx, stopController := context.WithCancel(context.Background())
	defer stopController()
	go controller.Run(runCtx)

	states, unsubscribe := controller.Subscribe()
	defer unsubscribe()

	out := cmd.OutOrStdout()
	terminal := presenter.NewTerminal(out, c)
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for state := range states {
			if err := terminal.Show(state); err != nil {
				logger.Warn("Failed to render state", zap.Error(err))
			}
		}
	}()

	if framesDir != "" {
		fmt.Fprintf(out, "Using %s as the camera with the %s detector\n", framesDir, gate.Name())
		err = controller.Start(ctx)
	} else {
		fmt.Fprintln(out, "No frames directory given, running in demo mode")
		err = controller.StartDemo(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to start mirror: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := controller.Stop(stopCtx); err != nil {
		logger.Warn("Failed to stop mirror", zap.Error(err))
	}
	stopController()
	<-controller.Done()
	<-rendered

	return printSummary(cmd, mirrors, sessionID)
}

func printSummary(cmd *cobra.Command, mirrors *usecase.MirrorService, sessionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := cmd.OutOrStdout()
	summary, err := mirrors.Summary(ctx, sessionID)
	if err != nil {
		fmt.Fprintln(out, "\nNo mood was recorded.")
		return nil
	}

	fmt.Fprintf(out, "\n%d readings, mostly %s (average confidence %.0f%%)\n",
		summary.Total, summary.Dominant, summary.AvgConfidence*100)
	for _, label := range entities.AllEmotions() {
		if count := summary.Counts[label]; count > 0 {
			fmt.Fprintf(out, "  %-10s %d\n", label, count)
		}
	}
	return nil
}
