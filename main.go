package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "ambisync",
	Short: "Ambient lighting from screen contents",
	Long: `ambisync samples the edges of the screen and drives LEDs mounted around it,
over WLED's realtime UDP protocol or a Philips Hue entertainment area.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ambisync %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", buildDate)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the configured sinks from the screen",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		sinks, err := openSinks(a.cfg, a.proc.LEDs(), a.log)
		if err != nil {
			return err
		}
		defer closeSinks(sinks, a.log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runLoop(ctx, a.proc, sinks, a.cfg.Output.Rate, a.log)
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single capture cycle and print the LED colors",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		seed, _ := cmd.Flags().GetUint64("seed")
		if !cmd.Flags().Changed("seed") {
			seed = uint64(time.Now().UnixNano())
		}

		buf := make([]byte, a.proc.BufferSize())
		if err := a.proc.ProduceColors(buf, seed); err != nil {
			return err
		}
		return newPrintSink(cmd.OutOrStdout(), a.cfg.Geometry()).Send(buf)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the LED colors around the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Log lines would tear the full-screen view.
		if !cmd.Flags().Changed("log-level") {
			_ = cmd.Flags().Set("log-level", "error")
		}
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return runPreview(a)
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find Hue bridges and WLED controllers on the network",
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		devices, err := DiscoverAll(ctx)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No devices found.")
			return nil
		}
		for _, d := range devices {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(hueCmd)

	onceCmd.Flags().Uint64("seed", 0, "Sampling seed (default: current time)")
	discoverCmd.Flags().Duration("timeout", scanTimeout, "How long to browse")

	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file path")
	rootCmd.PersistentFlags().String("log-level", "", "Override log.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
