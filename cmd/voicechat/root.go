package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/snailbrainx/openai-realtime-go/internal/settings"
	"github.com/snailbrainx/openai-realtime-go/pkg/audio"
	"github.com/snailbrainx/openai-realtime-go/pkg/audio/device"
	"github.com/snailbrainx/openai-realtime-go/pkg/realtime"
)

var (
	verbose      bool
	model        string
	apiURL       string
	voice        string
	instructions string
	inputDevice  string
	outputDevice string
	saveDevices  bool
)

var rootCmd = &cobra.Command{
	Use:   "voicechat",
	Short: "Talk to the OpenAI Realtime API with your voice",
	Long: `voicechat streams your microphone to the OpenAI Realtime API over a
websocket and plays the assistant's synthesized speech back. Start
speaking at any time to interrupt the assistant; the conversation
record is truncated to the audio you actually heard.

Requires OPENAI_API_KEY in the environment or a .env file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

// Execute runs the CLI.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().StringVar(&model, "model", "", "Realtime model (default "+realtime.DefaultModel+")")
	rootCmd.Flags().StringVar(&apiURL, "url", "", "API endpoint override")
	rootCmd.Flags().StringVar(&voice, "voice", "", "Assistant voice (e.g. alloy, echo, shimmer)")
	rootCmd.Flags().StringVar(&instructions, "instructions", "", "System prompt override")
	rootCmd.Flags().StringVar(&inputDevice, "input-device", "", "Microphone device name (substring match)")
	rootCmd.Flags().StringVar(&outputDevice, "output-device", "", "Speaker device name (substring match)")
	rootCmd.Flags().BoolVar(&saveDevices, "save", false, "Persist the chosen devices and voice for next time")

	rootCmd.AddCommand(devicesCmd)
}

func run(ctx context.Context) error {
	_ = godotenv.Load()
	logger := slog.Default()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set (export it or put it in a .env file)")
	}

	prefs := loadPrefs(logger)

	if err := device.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := device.Terminate(); err != nil {
			logger.Warn("audio teardown failed", "error", err)
		}
	}()

	client, err := realtime.Dial(ctx, realtime.Options{
		URL:    apiURL,
		Model:  model,
		APIKey: apiKey,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	playback := audio.NewPlaybackBuffer()
	sess := realtime.NewSession(realtime.Config{
		Voice:        prefs.Voice,
		Instructions: instructions,
	}, client, playback, realtime.Callbacks{
		OnUserTranscript: func(text string) {
			fmt.Printf("\nYou: %s\n", text)
		},
		OnAssistantTranscript: func(delta string) {
			fmt.Print(delta)
		},
		OnAssistantText: func(text string) {
			fmt.Printf("\nAssistant: %s\n", text)
		},
	}, logger)
	client.Start(sess.Handle)

	speaker, err := device.OpenSpeaker(prefs.OutputDevice, audio.DefaultSampleRate, func(out []int16) {
		playback.Render(out)
	})
	if err != nil {
		return err
	}
	defer speaker.Close()

	blockFrames := audio.DefaultSampleRate * audio.DefaultBlockDurationMS / 1000
	mic, err := device.OpenMic(prefs.InputDevice, audio.DefaultSampleRate, blockFrames)
	if err != nil {
		return err
	}
	defer mic.Close()

	fmt.Println("Connected. Speak whenever you like; Ctrl-C to quit.")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sess.RunPlayback(runCtx)
	}()
	go func() {
		defer wg.Done()
		pipeline := audio.NewCapturePipeline(mic, sess.SendAudioBlock, micMeter(logger), logger)
		if err := pipeline.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("capture stopped", "error", err)
			cancel()
		}
	}()

	select {
	case <-ctx.Done():
	case <-client.Done():
	}
	cancel()
	_ = mic.Close()
	wg.Wait()

	if unhandled := sess.UnhandledTypes(); len(unhandled) > 0 {
		logger.Debug("unrecognized event types this session", "types", unhandled)
	}

	_ = client.Close()
	if err := client.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("connection lost: %w", err)
	}
	fmt.Println("\nGoodbye.")
	return nil
}

// micSpeechRMS is the block energy above which the meter considers the
// microphone hot. 250ms blocks make the transitions coarse but stable.
const micSpeechRMS = 0.015

// micMeter returns a per-block level callback that logs raw levels at
// debug and announces mic hot/idle transitions.
func micMeter(logger *slog.Logger) func(rms, peak float64) {
	hot := false
	return func(rms, peak float64) {
		logger.Debug("mic level", "rms", rms, "peak", peak)
		nowHot := rms >= micSpeechRMS
		if nowHot == hot {
			return
		}
		hot = nowHot
		if hot {
			logger.Info("mic active", "rms", rms)
		} else {
			logger.Info("mic idle")
		}
	}
}

// loadPrefs merges persisted settings with flag overrides, optionally
// writing the merged result back.
func loadPrefs(logger *slog.Logger) settings.Settings {
	prefs := settings.Settings{}
	path, err := settings.Path()
	if err == nil {
		if stored, found, loadErr := settings.Load(path); loadErr != nil {
			logger.Warn("ignoring unreadable settings", "path", path, "error", loadErr)
		} else if found {
			prefs = stored
		}
	}
	if inputDevice != "" {
		prefs.InputDevice = inputDevice
	}
	if outputDevice != "" {
		prefs.OutputDevice = outputDevice
	}
	if voice != "" {
		prefs.Voice = voice
	}
	if saveDevices && path != "" {
		if err := settings.Save(path, prefs); err != nil {
			logger.Warn("could not persist settings", "path", path, "error", err)
		} else {
			logger.Info("settings saved", "path", path)
		}
	}
	return prefs
}
