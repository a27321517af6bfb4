package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/federated-retrieval/internal/app"
	"github.com/aman-cerp/federated-retrieval/internal/centroidstore"
	"github.com/aman-cerp/federated-retrieval/internal/output"
	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

func newCentroidCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "centroid",
		Short: "Manage tenant/tag centroids",
	}
	cmd.AddCommand(newCentroidBuildCmd())
	cmd.AddCommand(newCentroidInvalidateCmd())
	cmd.AddCommand(newCentroidScanCmd())
	return cmd
}

func newCentroidBuildCmd() *cobra.Command {
	var tenant, tag string
	var all bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Recompute a tenant/tag centroid, or every known centroid with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), app.BuildTimeout)
			defer cancel()

			if all {
				return buildAll(ctx, cmd)
			}
			if tenant == "" || tag == "" {
				return fmt.Errorf("--tenant and --tag are required unless --all is set")
			}
			if err := current.Builder.Run(ctx, retrieval.TenantID(tenant), tag); err != nil {
				return fmt.Errorf("building centroid for %s/%s: %w", tenant, tag, err)
			}
			out := output.NewAuto(cmd.OutOrStdout())
			return out.JSON(buildResult{Tenant: tenant, Tag: tag, State: string(current.Builder.State(centroidstore.Key{Tenant: retrieval.TenantID(tenant), Tag: tag}))})
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&tag, "tag", "", "Centroid tag")
	cmd.Flags().BoolVar(&all, "all", false, "Rebuild every known (tenant, tag) centroid")

	return cmd
}

type buildResult struct {
	Tenant string `json:"tenant"`
	Tag    string `json:"tag"`
	State  string `json:"state"`
}

func buildAll(ctx context.Context, cmd *cobra.Command) error {
	keys, err := scanAllKeys(ctx)
	if err != nil {
		return fmt.Errorf("listing known centroids: %w", err)
	}

	results := make([]buildResult, 0, len(keys))
	for _, key := range keys {
		runErr := current.Builder.Run(ctx, key.Tenant, key.Tag)
		state := string(current.Builder.State(key))
		if runErr != nil {
			state = fmt.Sprintf("%s (%s)", state, runErr)
		}
		results = append(results, buildResult{Tenant: string(key.Tenant), Tag: key.Tag, State: state})
	}

	out := output.NewAuto(cmd.OutOrStdout())
	return out.JSON(results)
}

func newCentroidInvalidateCmd() *cobra.Command {
	var tenant, tag string

	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Evict a cached tenant/tag centroid",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenant == "" || tag == "" {
				return fmt.Errorf("--tenant and --tag are required")
			}
			current.Engine.InvalidateCentroid(retrieval.TenantID(tenant), tag)
			out := output.NewAuto(cmd.OutOrStdout())
			return out.JSON(buildResult{Tenant: tenant, Tag: tag, State: "invalidated"})
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&tag, "tag", "", "Centroid tag")

	return cmd
}

func newCentroidScanCmd() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List known (tenant, tag) pairs with a stored centroid",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := scanAllKeys(cmd.Context())
			if err != nil {
				return fmt.Errorf("scanning centroid store: %w", err)
			}
			if tenant != "" {
				filtered := keys[:0]
				for _, k := range keys {
					if string(k.Tenant) == tenant {
						filtered = append(filtered, k)
					}
				}
				keys = filtered
			}
			out := output.NewAuto(cmd.OutOrStdout())
			return out.JSON(keys)
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Restrict to one tenant")

	return cmd
}

func scanAllKeys(ctx context.Context) ([]centroidstore.Key, error) {
	var keys []centroidstore.Key
	cursor := ""
	for {
		batch, next, err := current.Store.Scan(ctx, cursor, 100)
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == "" {
			return keys, nil
		}
		cursor = next
	}
}
