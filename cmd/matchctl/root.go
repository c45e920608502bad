package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qbeka/matchmaking-nat/internal/app/pipeline"
	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/pkg/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	root := &cobra.Command{
		Use:           "matchctl",
		Short:         "Form teams and assign them to tasks",
		Version:       buildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initConfig(cmd)
		},
	}
	root.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/matchctl/config.yaml)")
	root.PersistentFlags().String("profile", "", "weight profile YAML")
	root.PersistentFlags().String("log-level", "warn", "log level (debug|info|warn|error)")

	root.AddCommand(
		c.newRunCmd(),
		c.newValidateCmd(),
		c.newHashKeyCmd(),
		c.newTokenCmd(),
		c.newRemoteCmd(),
	)
	return root
}

// initConfig binds the flags of the command being run and layers the
// environment and an optional config file beneath them.
func (c *cli) initConfig(cmd *cobra.Command) error {
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	c.v.SetEnvPrefix("MATCHCTL")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	c.v.AutomaticEnv()

	if file := c.v.GetString("config"); file != "" {
		c.v.SetConfigFile(file)
		if err := c.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}
	c.v.SetConfigName("config")
	c.v.SetConfigType("yaml")
	if dir, err := os.UserConfigDir(); err == nil {
		c.v.AddConfigPath(dir + "/matchctl")
	}
	c.v.AddConfigPath(".")
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func (c *cli) logger(cmd *cobra.Command) *slog.Logger {
	h := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logger.ParseLevel(c.v.GetString("log-level"))})
	return slog.New(h).With("service", "matchctl")
}

func (c *cli) params() pipeline.Params {
	return pipeline.Params{
		ProfilePath:       c.v.GetString("profile"),
		DesiredTeamSize:   c.v.GetInt("team-size"),
		Seed:              c.v.GetInt64("seed"),
		Workers:           c.v.GetInt("workers"),
		DefaultCapacity:   c.v.GetInt("capacity"),
		ReviewConcurrency: c.v.GetInt("review-concurrency"),
		AllowedRoles:      c.v.GetStringSlice("roles"),
		AllowedSkills:     c.v.GetStringSlice("skills"),
		RequireMotivation: c.v.GetBool("require-motivation"),
	}
}

func addTuningFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("team-size", 0, "desired team size")
	f.Int64("seed", 0, "clustering seed")
	f.Int("workers", 0, "parallel workers for refinement")
	f.Int("capacity", 0, "default slots per task")
	f.Int("review-concurrency", 0, "concurrent team reviews")
	f.StringSlice("roles", nil, "allowed roles, overriding the profile catalog")
	f.StringSlice("skills", nil, "allowed skills, overriding the profile catalog")
	f.Bool("require-motivation", false, "enforce a minimum motivation length")
}

// poolFile is the document read by run, validate and remote submit.
type poolFile struct {
	Individuals []domain.Individual `json:"individuals"`
	Tasks       []domain.Task       `json:"tasks"`
}

func readPool(path string) (poolFile, error) {
	if strings.TrimSpace(path) == "" {
		return poolFile{}, errors.New("--pool is required")
	}
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return poolFile{}, fmt.Errorf("open pool: %w", err)
		}
		defer f.Close()
		r = f
	}
	var pool poolFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&pool); err != nil {
		return poolFile{}, fmt.Errorf("decode pool: %w", err)
	}
	return pool, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
