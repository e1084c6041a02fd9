package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"

	s3client "github.com/justapithecus/partcat/internal/s3"
	"github.com/justapithecus/partcat/partcat"
	"github.com/justapithecus/partcat/partcat/pg"
	s3lister "github.com/justapithecus/partcat/partcat/s3"
)

// openLister builds the listing backend named by the "store" setting.
func openLister(ctx context.Context, v *viper.Viper) (partcat.Lister, func(), error) {
	noop := func() {}
	switch kind := v.GetString("store"); kind {
	case "", "fs":
		l, err := partcat.NewFS(v.GetString("root"))
		if err != nil {
			return nil, nil, fmt.Errorf("open fs root %q: %w", v.GetString("root"), err)
		}
		return l, noop, nil

	case "s3":
		cfg, err := s3client.Preset(
			v.GetString("s3-preset"),
			v.GetString("endpoint"),
			v.GetString("access-key-id"),
			v.GetString("secret-access-key"),
		)
		if err != nil {
			return nil, nil, err
		}
		if r := v.GetString("region"); r != "" {
			cfg.Region = r
		}
		cfg.Profile = v.GetString("profile")
		client, err := s3client.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		l, err := s3lister.New(client, s3lister.Config{
			Bucket: v.GetString("bucket"),
			Prefix: v.GetString("prefix"),
		})
		if err != nil {
			return nil, nil, err
		}
		return l, noop, nil

	case "pg":
		url := v.GetString("pg-url")
		if url == "" {
			return nil, nil, fmt.Errorf("--pg-url is required for --store pg")
		}
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		l, err := pg.New(pool, pg.Config{
			Schemas:        v.GetStringSlice("schemas"),
			PartitionsOnly: v.GetBool("partitions-only"),
		})
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return l, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q (want fs, s3, or pg)", kind)
	}
}
