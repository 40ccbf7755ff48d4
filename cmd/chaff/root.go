package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "chaff",
		Short: "Generate interlinked decoy files",
		Long: `Chaff fills a directory with plausible, interlinked decoy files: documents,
spreadsheets, emails, images, notes and data files that reference each other,
some encoded or encrypted with passwords hinted at in other files, all with
realistic timestamps.

Examples:
  chaff generate -t ~/decoys            # Generate with configured counts
  chaff generate -t /mnt/usb --fill     # Fill the drive down to the free floor
  chaff plan -t ~/decoys --seed 7       # Show what a run would write
  chaff decode --run <id> ~/decoys      # Decode a run's files with its ledger
  chaff clean <id>                      # Remove a previous run's files
  chaff history                         # View past runs`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initializeLogging,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/chaff/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "pretty", "output format: pretty, plain, json, jsonl, yaml, csv, tsv, paths, null, template")
	rootCmd.PersistentFlags().String("template", "", "Go template for -o template")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("template", rootCmd.PersistentFlags().Lookup("template"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	return err
}

func getVerbose() bool {
	return viper.GetBool("verbose")
}

func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints to stderr in verbose mode.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints unless quiet.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
