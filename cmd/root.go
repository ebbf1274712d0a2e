package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jep-dashboard/internal/config"
)

var cfg *config.Config

var (
	sourceOverride    string
	delimiterOverride string
)

var rootCmd = &cobra.Command{
	Use:   "jepdash",
	Short: "JEP analytics dashboard",
	Long:  "Loads a delimited export of Java Enhancement Proposals, filters it by status, year and owner, and serves charts, summaries and filtered downloads.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if sourceOverride != "" {
			c.Source.Path = sourceOverride
		}
		if delimiterOverride != "" {
			c.Source.Delimiter = delimiterOverride
		}
		if err := c.Validate(cmd.Name()); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sourceOverride, "source", "", "dataset path (default from config)")
	rootCmd.PersistentFlags().StringVar(&delimiterOverride, "delimiter", "", "field delimiter: ';', ',', '|' or tab (default from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
