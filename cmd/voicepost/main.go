package main

import (
	"fmt"
	"log"
	"runtime"

	"github.com/NamiraNet/voicepost/internal/config"
	"github.com/spf13/cobra"
)

// Build-time variables (injected via -ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"
	goVersion = runtime.Version()
	platform  = runtime.GOOS + "/" + runtime.GOARCH

	port    string
	workers int

	cfg = config.Load()
)

func getVersionInfo() string {
	commitHash := commit
	if len(commit) > 8 {
		commitHash = commit[:8]
	}
	return fmt.Sprintf("voicepost %s (%s) built with %s on %s at %s",
		version, commitHash, goVersion, platform, date)
}

var rootCmd = &cobra.Command{
	Use:     "voicepost",
	Version: version,
	Short:   "voicepost audio to social post service",
	Long:    `Transcribe uploaded audio and draft LinkedIn, Twitter and Instagram posts from it.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if port != "" {
			cfg.Server.Port = port
		}
		if workers > 0 {
			cfg.Worker.Count = workers
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&port, "port", "p", "", "Port to run the service on")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "Number of pool workers")
	rootCmd.SetVersionTemplate(getVersionInfo() + "\n")

	rootCmd.AddCommand(apiCmd, generateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
