package main

import (
	"errors"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"

	"github.com/okian/comps/internal/adapters/importer"
	"github.com/okian/comps/internal/config"
	"github.com/okian/comps/pkg/logger"
)

type importFlags struct {
	county   string
	source   string
	verified bool
	fieldMap string
	dryRun   bool
}

func newImportCmd() *cobra.Command {
	var f importFlags
	cmd := &cobra.Command{
		Use:   "import <parcels.shp>",
		Short: "Import a parcel shapefile into the configured store",
		Long: `Import reads point or polygon parcels and their DBF attributes, maps the
attributes onto property records for one county and upserts them into the
configured store. Polygon parcels are located at their centroid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.county == "" {
				return errors.New("--county is required")
			}
			ctx := cmd.Context()
			log := logger.Get().Named("import")

			fm, err := loadFieldMap(f.fieldMap)
			if err != nil {
				return err
			}
			im, err := importer.New(f.county,
				importer.WithFieldMap(fm),
				importer.WithSource(f.source),
				importer.WithVerified(f.verified),
				importer.WithLogger(log),
			)
			if err != nil {
				return err
			}
			recs, stats, err := im.Shapefile(ctx, args[0])
			if err != nil {
				return err
			}
			if f.dryRun {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "read %d, would import %d, skipped %d\n", stats.Read, stats.Imported, stats.Skipped)
				return err
			}

			svc, err := newService(ctx, configFrom(ctx), log)
			if err != nil {
				return err
			}
			defer svc.Stop()
			n, err := svc.Upsert(ctx, recs...)
			if err != nil {
				return err
			}
			if note := sharedCacheNotice(configFrom(ctx)); note != "" {
				log.Warn(ctx, note, logger.String("store", configFrom(ctx).StoreDriver))
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "read %d, imported %d, skipped %d\n", stats.Read, n, stats.Skipped)
			return err
		},
	}
	cmd.Flags().StringVar(&f.county, "county", "", "county id assigned to every record")
	cmd.Flags().StringVar(&f.source, "source", "shapefile", "data_source tag for imported records")
	cmd.Flags().BoolVar(&f.verified, "verified", false, "mark imported records as verified")
	cmd.Flags().StringVar(&f.fieldMap, "field-map", "", "YAML file mapping record fields to DBF attribute names")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "parse the shapefile without writing to the store")
	return cmd
}

// loadFieldMap overlays a YAML field map on the default one.
func loadFieldMap(path string) (importer.FieldMap, error) {
	fm := importer.DefaultFieldMap()
	if path == "" {
		return fm, nil
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fm, fmt.Errorf("load field map %s: %w", path, err)
	}
	if err := k.UnmarshalWithConf("", &fm, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fm, fmt.Errorf("decode field map %s: %w", path, err)
	}
	return fm, nil
}

// sharedCacheNotice warns that a serving process on the same sql store keeps
// its cached pair scores for the imported ids until cache_ttl_sec expires.
func sharedCacheNotice(cfg *config.Config) string {
	if cfg.CacheTTL() == 0 {
		return ""
	}
	switch cfg.StoreDriver {
	case "", "memory":
		return ""
	}
	return fmt.Sprintf("running servers on this store may serve cached scores for updated records for up to %s; lower cache_ttl_sec or set it to 0 for a shared store", cfg.CacheTTL())
}
