package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.WithField("component", "cmd")

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "osbrender",
	Short: "Render an osu! storyboard to a video file",
	Long: `osbrender renders an osu!-format storyboard — a declarative timeline of
sprites and animations — into an H.264 video by piping raw RGBA frames
into ffmpeg.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (defaults over built-in, flags override both)")
	rootCmd.AddCommand(renderCmd)
}

// Execute runs the CLI and returns the process exit code (spec §6 "Exit
// codes"): 0 on success (with or without audio mux, or a clean user stop),
// non-zero on parse failure, encoder spawn failure, or unrecoverable
// render error.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}
