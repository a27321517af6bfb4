package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/federated-retrieval/internal/output"
	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

type searchOptions struct {
	tenant      string
	k           int
	personalize bool
	tag         string
	alpha       float64
	internal    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one federated search and print hits and trace as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, opts)
		},
	}

	cmd.Flags().StringVar(&opts.tenant, "tenant", "", "Tenant ID (required)")
	cmd.Flags().IntVarP(&opts.k, "k", "k", 10, "Total number of fused hits to return")
	cmd.Flags().BoolVar(&opts.personalize, "personalize", false, "Blend the query embedding toward the tenant/tag centroid")
	cmd.Flags().StringVar(&opts.tag, "tag", "", "Centroid tag to personalize against (inferred from the query when omitted)")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", 0, "Personalization blend strength (defaults to the configured default_alpha)")
	cmd.Flags().BoolVar(&opts.internal, "internal", true, "Search the internal vector and lexical indexes")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	req := retrieval.QueryRequest{
		QueryText:   query,
		Tenant:      retrieval.TenantID(opts.tenant),
		KTotal:      opts.k,
		Personalize: opts.personalize,
		UseInternal: opts.internal,
	}
	if opts.tag != "" {
		req.Tag = &opts.tag
	}
	if cmd.Flags().Changed("alpha") {
		req.Alpha = &opts.alpha
	}

	res, err := current.Engine.Search(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := output.NewAuto(cmd.OutOrStdout())
	return out.JSON(res)
}
