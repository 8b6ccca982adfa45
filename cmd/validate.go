package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/packetsentry/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a packetsentry configuration file",
	Long: `Validate a packetsentry configuration file (YAML) without starting
capture. Checks that exactly one capture source is configured and that
worker/queue sizing is non-zero.

Example:
  packetsentry validate -c config.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		runValidateCommand()
	},
}

func runValidateCommand() {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("VALID: %d interface(s), %d classifier worker(s), %d parser librar(y/ies), %d static parser(s)\n",
		len(cfg.Interfaces), cfg.ClassifierWorkers, len(cfg.ParserLibraries), len(cfg.StaticParsers))
}
