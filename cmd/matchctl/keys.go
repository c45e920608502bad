package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/qbeka/matchmaking-nat/pkg/crypto"
	"github.com/qbeka/matchmaking-nat/pkg/jwt"
)

func (c *cli) newHashKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-key",
		Short: "Hash an operator API key for MATCHD_API_KEY_HASH",
		Long: `hash-key reads an API key from the terminal (or stdin when piped) and
prints its bcrypt hash. With --generate a fresh key is created and printed
alongside the hash.`,
		Args: cobra.NoArgs,
		RunE: c.runHashKey,
	}
	cmd.Flags().Bool("generate", false, "generate a random key instead of reading one")
	return cmd
}

func (c *cli) runHashKey(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	var key string
	if c.v.GetBool("generate") {
		generated, err := crypto.NewKey(32)
		if err != nil {
			return err
		}
		key = generated
		fmt.Fprintf(out, "key:  %s\n", key)
	} else {
		read, err := readSecret(cmd, "API key: ")
		if err != nil {
			return err
		}
		key = read
	}
	if key == "" {
		return errors.New("empty key")
	}
	hash, err := crypto.HashKey(key)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "hash: %s\n", hash)
	return nil
}

// readSecret prompts without echo on a terminal and reads one line otherwise.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

const defaultTokenTTL = time.Hour

func (c *cli) newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator bearer token",
		Args:  cobra.NoArgs,
		RunE:  c.runToken,
	}
	cmd.Flags().String("operator", "", "operator name recorded in the token")
	cmd.Flags().String("jwt-secret", "", "signing secret shared with matchd")
	cmd.Flags().Duration("ttl", 0, "token lifetime (default 1h)")
	return cmd
}

func (c *cli) runToken(cmd *cobra.Command, _ []string) error {
	operator := strings.TrimSpace(c.v.GetString("operator"))
	if operator == "" {
		return errors.New("--operator is required")
	}
	secret := c.v.GetString("jwt-secret")
	if secret == "" {
		return errors.New("--jwt-secret or MATCHCTL_JWT_SECRET is required")
	}
	ttl := c.v.GetDuration("ttl")
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	token, err := jwt.GenerateToken(operator, jwt.ScopeMatch, secret, ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
