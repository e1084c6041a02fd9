package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/justapithecus/partcat/partcat"
)

var jsonOut = jsoniter.ConfigCompatibleWithStandardLibrary

func (c *cli) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Refresh and print the self-check report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, release, err := c.connector(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			report, err := conn.SelfCheck()
			if err != nil {
				return err
			}
			b, err := jsonOut.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, string(b))
			return err
		},
	}
}

func (c *cli) listCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print batch definitions matching a request, one JSON object per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := c.request()
			if err != nil {
				return err
			}
			conn, release, err := c.connector(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			defs, err := conn.Match(req)
			if err != nil {
				return err
			}
			enc := jsonOut.NewEncoder(c.out)
			for _, d := range defs {
				if err := enc.Encode(d); err != nil {
					return err
				}
			}
			return nil
		},
	}
	addRequestFlags(cmd)
	return cmd
}

func (c *cli) unmatchedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unmatched",
		Short: "Print references no pattern matched",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, release, err := c.connector(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			refs, err := conn.UnmatchedReferences()
			if err != nil {
				return err
			}
			for _, r := range refs {
				if _, err := fmt.Fprintln(c.out, r); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (c *cli) exportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Write a batch spec manifest for the matching definitions",
		Long: `export writes <dir>/<name>.<codec><ext>, where name defaults to the
connector name and ext follows the compressor (.gz, .zst). An existing
manifest is not overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := partcat.CodecByName(c.v.GetString("codec"))
			if err != nil {
				return err
			}
			comp, err := partcat.CompressorByName(c.v.GetString("compress"))
			if err != nil {
				return err
			}
			req, err := c.request()
			if err != nil {
				return err
			}
			conn, release, err := c.connector(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			specs, err := conn.BatchSpecs(req)
			if err != nil {
				return err
			}
			name := c.v.GetString("name")
			if name == "" {
				name = conn.Name()
			}
			path := filepath.Join(args[0], partcat.ManifestName(name, codec, comp))
			if err := writeManifest(path, specs, codec, comp); err != nil {
				return err
			}
			c.logger.Info("manifest written", "path", path, "specs", len(specs))
			_, err = fmt.Fprintln(c.out, path)
			return err
		},
	}
	addRequestFlags(cmd)
	cmd.Flags().String("codec", "jsonl", "Manifest codec: jsonl|parquet")
	cmd.Flags().String("compress", "noop", "Manifest compression: noop|gzip|zstd")
	cmd.Flags().String("name", "", "Manifest base name (default: connector name)")
	return cmd
}

func writeManifest(path string, specs []partcat.BatchSpec, codec partcat.SpecCodec, comp partcat.Compressor) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", partcat.ErrPathExists, path)
		}
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return partcat.ExportBatchSpecs(f, specs, codec, comp)
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().String("environment", "", "Restrict to an environment")
	cmd.Flags().String("connector", "", "Restrict to a connector")
	cmd.Flags().String("asset", "", "Restrict to an asset")
	cmd.Flags().StringArray("partition", nil, "Partition constraint key=value (repeatable)")
	cmd.Flags().Int("limit", 0, "Maximum number of results (0 = all)")
}

// request builds a batch request from the bound flags.
func (c *cli) request() (partcat.BatchRequest, error) {
	req := partcat.BatchRequest{
		EnvironmentName: c.v.GetString("environment"),
		ConnectorName:   c.v.GetString("connector"),
		AssetName:       c.v.GetString("asset"),
		Limit:           c.v.GetInt("limit"),
	}
	for _, kv := range c.v.GetStringSlice("partition") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return partcat.BatchRequest{}, fmt.Errorf("invalid --partition %q: want key=value", kv)
		}
		if req.PartitionRequest == nil {
			req.PartitionRequest = make(map[string]string)
		}
		req.PartitionRequest[k] = v
	}
	return req, nil
}
