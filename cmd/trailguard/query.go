package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"
	"github.com/upb/trailguard/app"
	"github.com/upb/trailguard/services/query"
)

type queryOptions struct {
	severity   string
	from       string
	limit      int
	nextToken  string
	includeRaw bool
	all        bool
}

func newQueryCmd(c *cli) *cobra.Command {
	opts := queryOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query incidents by severity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQuery(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.severity, "severity", "", "Critical|High|Medium|Low (required)")
	cmd.Flags().StringVar(&opts.from, "from", "", "only incidents at or after this time (most date formats)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "page size (default from QUERY_DEFAULT_LIMIT)")
	cmd.Flags().StringVar(&opts.nextToken, "next-token", "", "continue from a previous page")
	cmd.Flags().BoolVar(&opts.includeRaw, "include-raw", false, "include the raw CloudTrail payload")
	cmd.Flags().BoolVar(&opts.all, "all", false, "follow nextToken until the query is exhausted")
	_ = cmd.MarkFlagRequired("severity")
	return cmd
}

func (c *cli) runQuery(ctx context.Context, out io.Writer, opts queryOptions) error {
	params, err := buildQueryParams(opts)
	if err != nil {
		return err
	}

	deps, err := app.NewDependencies(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	return runPages(ctx, deps.Engine, params, opts.all, out)
}

// buildQueryParams turns flags into engine params. --from goes through
// dateparse so operators can paste timestamps in whatever layout they have.
func buildQueryParams(opts queryOptions) (query.Params, error) {
	params := query.Params{
		Severity:   opts.severity,
		NextToken:  opts.nextToken,
		IncludeRaw: strconv.FormatBool(opts.includeRaw),
	}
	if opts.limit != 0 {
		params.Limit = strconv.Itoa(opts.limit)
	}
	if opts.from != "" {
		t, err := dateparse.ParseIn(opts.from, time.UTC)
		if err != nil {
			return params, fmt.Errorf("invalid --from %q: %w", opts.from, err)
		}
		params.From = t.UTC().Format(time.RFC3339Nano)
	}
	return params, nil
}

// runPages prints one JSON document per page
func runPages(ctx context.Context, engine interface {
	Query(context.Context, query.Params) (*query.Result, error)
}, params query.Params, all bool, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	for {
		result, err := engine.Query(ctx, params)
		if err != nil {
			return err
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
		if !all || result.NextToken == "" {
			return nil
		}
		params.NextToken = result.NextToken
	}
}
