// Package cmd defines the product-crawler command line.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/product-crawler/internal/config"
)

// newRootCmd creates the root command. Each invocation gets its own Viper
// instance so tests can execute commands side by side.
func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "product-crawler",
		Short: "Crawls one e-commerce site and saves its products to disk.",
		Long: `product-crawler walks a single shop starting from its base URL, classifies
every page it finds, and writes one directory per product containing a
metadata.json document and the product's images.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().Bool("dev", false, "human-readable debug logging")
	cobra.CheckErr(v.BindPFlag("logging.development", cmd.PersistentFlags().Lookup("dev")))

	cmd.AddCommand(newCrawlCmd(v, &cfgFile))
	return cmd
}

// Execute runs the CLI with the given context.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
