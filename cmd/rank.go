package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	service "github.com/okian/comps/internal/app"
	"github.com/okian/comps/internal/domain/ranking"
	"github.com/okian/comps/pkg/logger"
)

type rankFlags struct {
	request       string
	id            string
	topK          int
	minSimilarity float64
}

func newRankCmd() *cobra.Command {
	var f rankFlags
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank comparables once and print them as JSON",
		Long: `Rank scores comparables for a single target and prints the response.

With --request the file holds a comparables request ({target, candidates?,
config?}); with --id the target and its candidate pool come from the
configured store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (f.request == "") == (f.id == "") {
				return errors.New("exactly one of --request or --id is required")
			}
			ctx := cmd.Context()
			cfg := configFrom(ctx)
			svc, err := newService(ctx, cfg, logger.Get().Named("rank"))
			if err != nil {
				return err
			}
			defer svc.Stop()

			overrides := rankOverrides(cmd, f)
			var resp *service.ComparablesResponse
			if f.request != "" {
				req, err := readRequest(f.request)
				if err != nil {
					return err
				}
				if overrides != nil {
					req.Config = mergeOverrides(req.Config, overrides)
				}
				resp, err = svc.Comparables(ctx, req)
				if err != nil {
					return err
				}
			} else {
				resp, err = svc.ComparablesByID(ctx, f.id, overrides)
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&f.request, "request", "", "path to a JSON comparables request")
	cmd.Flags().StringVar(&f.id, "id", "", "target record id in the configured store")
	cmd.Flags().IntVar(&f.topK, "top-k", 0, "number of comparables to return (default from config)")
	cmd.Flags().Float64Var(&f.minSimilarity, "min-similarity", 0, "similarity threshold in [0,1] (default from config)")
	return cmd
}

func readRequest(path string) (service.ComparablesRequest, error) {
	var req service.ComparablesRequest
	b, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return req, fmt.Errorf("decode request %s: %w", path, err)
	}
	return req, nil
}

// rankOverrides returns the overrides set on the command line, or nil.
func rankOverrides(cmd *cobra.Command, f rankFlags) *ranking.Overrides {
	var o ranking.Overrides
	set := false
	if cmd.Flags().Changed("top-k") {
		topK := f.topK
		o.TopK = &topK
		set = true
	}
	if cmd.Flags().Changed("min-similarity") {
		minSim := f.minSimilarity
		o.MinSimilarity = &minSim
		set = true
	}
	if !set {
		return nil
	}
	return &o
}

// mergeOverrides lays flag overrides over the ones in a request file.
func mergeOverrides(base, flags *ranking.Overrides) *ranking.Overrides {
	if base == nil {
		return flags
	}
	out := *base
	if flags.TopK != nil {
		out.TopK = flags.TopK
	}
	if flags.MinSimilarity != nil {
		out.MinSimilarity = flags.MinSimilarity
	}
	return &out
}
