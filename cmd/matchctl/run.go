package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qbeka/matchmaking-nat/internal/app/pipeline"
	"github.com/qbeka/matchmaking-nat/internal/progress"
	"github.com/qbeka/matchmaking-nat/internal/repository/memory"
	"github.com/qbeka/matchmaking-nat/internal/service/match"
	"github.com/qbeka/matchmaking-nat/internal/validate"
)

func (c *cli) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage locally against a pool file",
		Long: `Run loads individuals and tasks from a JSON pool file, executes the
three matching stages in memory and prints the resulting run as JSON.`,
		Args: cobra.NoArgs,
		RunE: c.runLocal,
	}
	cmd.Flags().String("pool", "", "pool file with individuals and tasks (- for stdin)")
	cmd.Flags().String("run-id", "local", "identifier recorded on the run")
	addTuningFlags(cmd)
	return cmd
}

func (c *cli) runLocal(cmd *cobra.Command, _ []string) error {
	pool, err := readPool(c.v.GetString("pool"))
	if err != nil {
		return err
	}
	cfg, prof, err := pipeline.Build(c.params())
	if err != nil {
		return err
	}
	log := c.logger(cmd)
	log.Debug("profile loaded", "profile", prof.Name)

	runID := c.v.GetString("run-id")
	svc := match.New(memory.New(), cfg, log,
		match.WithProgress(progress.Log{Logger: log}),
		match.WithIDGenerator(func() string { return runID }),
	)

	ctx := cmd.Context()
	if err := svc.UpsertIndividuals(ctx, pool.Individuals); err != nil {
		return describe(err)
	}
	if err := svc.UpsertTasks(ctx, pool.Tasks); err != nil {
		return describe(err)
	}
	run, err := svc.CreateRun(ctx, match.CreateRunInput{})
	if err != nil {
		return describe(err)
	}
	view, err := svc.Execute(ctx, run.ID)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), view)
}

// describe expands a validation error so every violation reaches the user.
func describe(err error) error {
	var verr *validate.Error
	if !errors.As(err, &verr) || len(verr.Violations) < 2 {
		return err
	}
	msg := fmt.Sprintf("%d violations:", len(verr.Violations))
	for _, v := range verr.Violations {
		msg += fmt.Sprintf("\n  %s: %s", v.Field, v.Message)
	}
	return errors.New(msg)
}
