package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qbeka/matchmaking-nat/internal/app/pipeline"
	"github.com/qbeka/matchmaking-nat/internal/validate"
)

func (c *cli) newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a pool file against the catalog",
		Args:  cobra.NoArgs,
		RunE:  c.runValidate,
	}
	cmd.Flags().String("pool", "", "pool file with individuals and tasks (- for stdin)")
	addTuningFlags(cmd)
	return cmd
}

func (c *cli) runValidate(cmd *cobra.Command, _ []string) error {
	pool, err := readPool(c.v.GetString("pool"))
	if err != nil {
		return err
	}
	cfg, _, err := pipeline.Build(c.params())
	if err != nil {
		return err
	}

	var violations []validate.Violation
	for _, err := range []error{
		validate.Individuals(cfg.Catalog, pool.Individuals),
		validate.Tasks(cfg.Catalog, pool.Tasks),
	} {
		var verr *validate.Error
		if errors.As(err, &verr) {
			violations = append(violations, verr.Violations...)
		} else if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if len(violations) == 0 {
		fmt.Fprintf(out, "ok: %d individuals, %d tasks\n", len(pool.Individuals), len(pool.Tasks))
		return nil
	}
	for _, v := range violations {
		fmt.Fprintf(out, "%s\t%s\t%s\n", v.Field, v.Type, v.Message)
	}
	return fmt.Errorf("%d violations", len(violations))
}
