package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/justapithecus/partcat/internal/logging"
	"github.com/justapithecus/partcat/partcat"
)

// cli wires cobra commands to a viper instance. Settings resolve from flags,
// then PARTCAT_* environment variables, then defaults.
type cli struct {
	root   *cobra.Command
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger

	// openLister is replaced in tests.
	openLister func(ctx context.Context, v *viper.Viper) (partcat.Lister, func(), error)
}

func newCLI(out, errOut io.Writer) *cli {
	c := &cli{
		v:          viper.New(),
		out:        out,
		errOut:     errOut,
		openLister: openLister,
	}
	c.v.SetEnvPrefix("PARTCAT")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	c.root = &cobra.Command{
		Use:   "partcat",
		Short: "Catalog partitioned data references as addressable batches",
		Long: `partcat lists references from a filesystem, an S3 bucket, or a PostgreSQL
catalog, resolves each one to a partition identity with the configured
patterns, and answers batch requests against the result.

Configuration Sources (in order of precedence):
1. Command line flags
2. Environment variables (PARTCAT_*, dashes become underscores)

Examples:
  partcat --config events.yaml --root ./data check
  PARTCAT_STORE=s3 PARTCAT_BUCKET=landing partcat --config events.yaml list --asset alpha
  partcat --config events.yaml --store pg --pg-url postgres://localhost/db unmatched`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			c.logger = logging.Setup(c.errOut, c.v.GetString("log-level"), c.v.GetString("log-format"))
			return nil
		},
	}
	c.root.SetOut(out)
	c.root.SetErr(errOut)

	pf := c.root.PersistentFlags()
	pf.String("config", "partcat.yaml", "Connector configuration file (YAML)")
	pf.String("store", "fs", "Listing backend: fs|s3|pg")
	pf.String("root", ".", "Filesystem root for --store fs")
	pf.String("bucket", "", "Bucket for --store s3")
	pf.String("prefix", "", "Key prefix for --store s3")
	pf.String("s3-preset", "aws", "S3 backend preset: aws|localstack|minio|r2")
	pf.String("endpoint", "", "Custom S3 endpoint URL")
	pf.String("region", "", "S3 region")
	pf.String("profile", "", "Shared AWS config profile")
	pf.String("access-key-id", "", "Static S3 access key")
	pf.String("secret-access-key", "", "Static S3 secret key")
	pf.String("pg-url", "", "PostgreSQL connection URL for --store pg")
	pf.StringSlice("schemas", []string{"public"}, "Schemas for --store pg")
	pf.Bool("partitions-only", false, "List only attached table partitions for --store pg")
	pf.Int("list-concurrency", partcat.DefaultListConcurrency, "Concurrent asset listings per refresh")
	pf.String("log-level", "warn", "Log level: debug|info|warn|error")
	pf.String("log-format", "text", "Log format: text|json")

	c.root.AddCommand(
		c.checkCommand(),
		c.listCommand(),
		c.unmatchedCommand(),
		c.exportCommand(),
	)
	return c
}

// Execute runs the command tree.
func (c *cli) Execute() error {
	return c.root.Execute()
}

// connector loads the configuration, opens the lister, and refreshes.
// The returned func releases the lister.
func (c *cli) connector(ctx context.Context) (*partcat.Connector, func(), error) {
	f, err := os.Open(c.v.GetString("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("open config: %w", err)
	}
	cfg, err := partcat.LoadConfig(f)
	_ = f.Close()
	if err != nil {
		return nil, nil, err
	}

	lister, release, err := c.openLister(ctx, c.v)
	if err != nil {
		return nil, nil, err
	}
	conn, err := partcat.New(cfg, lister,
		partcat.WithLogger(c.logger),
		partcat.WithListConcurrency(c.v.GetInt("list-concurrency")),
	)
	if err != nil {
		release()
		return nil, nil, err
	}
	if err := conn.Refresh(ctx); err != nil {
		release()
		return nil, nil, err
	}
	return conn, release, nil
}
