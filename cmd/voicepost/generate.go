package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NamiraNet/voicepost/internal/cli"
	"github.com/NamiraNet/voicepost/internal/logger"
	"github.com/NamiraNet/voicepost/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	transcriptFile string
	transcriptText string
	platforms      []string
	tone           string
	variantTones   []string
	outputFormat   string
	outputFile     string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft social posts from transcript text",
	Long:  `Read a transcript from stdin, a file or --text and draft posts for each platform, or one general post per tone with --tones, through the same worker pool and generation timeout as the API.`,
	Run:   runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&transcriptFile, "file", "i", "", "File containing the transcript")
	generateCmd.Flags().StringVar(&transcriptText, "text", "", "Transcript text")
	generateCmd.Flags().StringSliceVar(&platforms, "platform", nil, "Platforms to draft for (default: all)")
	generateCmd.Flags().StringVar(&tone, "tone", "professional", "Tone for platform drafts: professional, casual, witty, motivational")
	generateCmd.Flags().StringSliceVar(&variantTones, "tones", nil, "Draft one general post per tone instead of per platform: professional, casual, witty, motivational, educational, humorous, inspirational, urgent")
	generateCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Output format: table, json, csv")
	generateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	generateCmd.Flags().DurationVar(&cfg.Generation.Timeout, "timeout", cfg.Generation.Timeout, "Generation timeout per draft")
}

func runGenerate(cmd *cobra.Command, args []string) {
	logger, err := logger.InitForCLI(cfg.App.LogLevel)
	if err != nil {
		fmt.Println("Failed to initialize logger:", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	reader := cli.NewTranscriptReader()
	text, source, err := reader.Read(transcriptFile, transcriptText)
	if err != nil {
		logger.Error("error reading transcript", zap.Error(err))
		return
	}
	if text == "" {
		logger.Error("no transcript provided, use --file, --text or stdin")
		return
	}
	logger.Info("transcript reading completed", zap.String("source", source), zap.Int("characters", len(text)))

	st := newStack(logger, nil)
	defer st.close()

	svc := service.New(service.Options{
		Bridge:     st.bridge,
		Drafter:    st.posts,
		ModelName:  cfg.Models.LLMModel,
		Generation: st.generationConfig(),
		Logger:     logger.Named("service"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var drafts service.Drafts
	if len(variantTones) > 0 {
		drafts, err = svc.Variants(ctx, text, variantTones)
	} else {
		drafts, err = svc.Draft(ctx, "", text, platforms, tone)
	}
	if err != nil {
		logger.Error("failed to generate drafts", zap.Error(err))
		return
	}

	if err := cli.NewOutputManager().Output(drafts, cli.OutputOptions{Format: outputFormat, Filename: outputFile}); err != nil {
		logger.Error("failed to output drafts", zap.Error(err))
		return
	}
	cli.NewSummaryPrinter().PrintSummary(drafts)
}
