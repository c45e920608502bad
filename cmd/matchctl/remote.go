package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qbeka/matchmaking-nat/internal/service/match"
	apiclient "github.com/qbeka/matchmaking-nat/pkg/api/client"
)

func (c *cli) newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a running matchd",
	}
	f := cmd.PersistentFlags()
	f.String("server", apiclient.DefaultBaseURL, "matchd base URL")
	f.String("token", "", "bearer token (see matchctl token)")
	f.String("operator", "", "operator used to exchange --api-key")
	f.String("api-key", "", "API key exchanged for a token when --token is empty")

	submit := &cobra.Command{
		Use:   "submit",
		Short: "Upload a pool file and execute a run",
		Args:  cobra.NoArgs,
		RunE:  c.runRemoteSubmit,
	}
	submit.Flags().String("pool", "", "pool file with individuals and tasks (- for stdin)")
	submit.Flags().Int("team-size", 0, "desired team size")
	submit.Flags().Int64("seed", 0, "clustering seed")
	submit.Flags().Bool("no-execute", false, "create the run without executing it")

	get := &cobra.Command{
		Use:   "get <run-id>",
		Short: "Print a run and its stage outputs",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runRemoteGet,
	}

	cmd.AddCommand(submit, get)
	return cmd
}

func (c *cli) client(cmd *cobra.Command) (*apiclient.Client, error) {
	api, err := apiclient.New(c.v.GetString("server"), apiclient.WithToken(c.v.GetString("token")))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.v.GetString("token")) != "" {
		return api, nil
	}
	if key := c.v.GetString("api-key"); key != "" {
		operator := strings.TrimSpace(c.v.GetString("operator"))
		if operator == "" {
			return nil, errors.New("--operator is required with --api-key")
		}
		if _, err := api.ExchangeKey(cmd.Context(), operator, key); err != nil {
			return nil, fmt.Errorf("exchange api key: %w", err)
		}
	}
	return api, nil
}

func (c *cli) runRemoteSubmit(cmd *cobra.Command, _ []string) error {
	pool, err := readPool(c.v.GetString("pool"))
	if err != nil {
		return err
	}
	api, err := c.client(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := api.UpsertIndividuals(ctx, pool.Individuals); err != nil {
		return remoteError(err)
	}
	if err := api.UpsertTasks(ctx, pool.Tasks); err != nil {
		return remoteError(err)
	}

	input := match.CreateRunInput{
		DesiredTeamSize: c.v.GetInt("team-size"),
		Seed:            c.v.GetInt64("seed"),
	}
	for _, ind := range pool.Individuals {
		input.IndividualIDs = append(input.IndividualIDs, ind.ID)
	}
	for _, t := range pool.Tasks {
		input.TaskIDs = append(input.TaskIDs, t.ID)
	}
	run, err := api.CreateRun(ctx, input)
	if err != nil {
		return remoteError(err)
	}
	if c.v.GetBool("no-execute") {
		return writeJSON(cmd.OutOrStdout(), match.RunView{Run: run})
	}
	view, err := api.Execute(ctx, run.ID)
	if err != nil {
		return remoteError(err)
	}
	return writeJSON(cmd.OutOrStdout(), view)
}

func (c *cli) runRemoteGet(cmd *cobra.Command, args []string) error {
	api, err := c.client(cmd)
	if err != nil {
		return err
	}
	view, err := api.GetRun(cmd.Context(), args[0])
	if err != nil {
		return remoteError(err)
	}
	return writeJSON(cmd.OutOrStdout(), view)
}

func remoteError(err error) error {
	var apiErr apiclient.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Violations) == 0 {
		return err
	}
	var b strings.Builder
	b.WriteString(apiErr.Error())
	for _, v := range apiErr.Violations {
		fmt.Fprintf(&b, "\n  %s: %s", v.Field, v.Message)
	}
	return errors.New(b.String())
}
