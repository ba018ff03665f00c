// arbctl - консольный клиент read-only API демона арбитража.
//
// Использование:
//
//	arbctl [-addr URL] [-token TOKEN] status|risk|positions|opportunities [-limit N]
//	arbctl gen-token [-cost N]
//	arbctl hash-token [-cost N] TOKEN
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"arbd/pkg/crypto"
)

const defaultAddr = "http://localhost:8080"

var errUsage = errors.New("usage: arbctl [-addr URL] [-token TOKEN] status|risk|positions|opportunities|gen-token|hash-token")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("arbctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", envOr("ARBCTL_ADDR", defaultAddr), "daemon status API base URL")
	token := fs.String("token", os.Getenv("ARBCTL_TOKEN"), "API bearer token")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	cmd := "status"
	rest := fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	switch cmd {
	case "gen-token", "hash-token":
		return runToken(cmd, rest, out)
	}

	client := newStatusClient(*addr, *token, *timeout)

	switch cmd {
	case "status":
		s, err := client.Status(ctx)
		if err != nil {
			return err
		}
		renderStatus(out, s)
	case "risk":
		r, err := client.Risk(ctx)
		if err != nil {
			return err
		}
		renderRisk(out, r)
	case "positions":
		p, err := client.Positions(ctx)
		if err != nil {
			return err
		}
		renderPositions(out, p)
	case "opportunities":
		sub := flag.NewFlagSet("opportunities", flag.ContinueOnError)
		sub.SetOutput(io.Discard)
		limit := sub.Int("limit", 20, "number of opportunities")
		if err := sub.Parse(rest); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		o, err := client.Opportunities(ctx, *limit)
		if err != nil {
			return err
		}
		renderOpportunities(out, o)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	return nil
}

// runToken генерирует токен API и/или его bcrypt-хеш для server.token_hash
func runToken(cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cost := fs.Int("cost", crypto.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	var token string
	switch cmd {
	case "gen-token":
		t, err := crypto.GenerateToken()
		if err != nil {
			return err
		}
		token = t
		fmt.Fprintf(out, "token: %s\n", token)
	case "hash-token":
		if fs.NArg() != 1 {
			return fmt.Errorf("%w: hash-token requires TOKEN", errUsage)
		}
		token = fs.Arg(0)
	}

	hash, err := crypto.HashToken(token, *cost)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "hash: %s\n", hash)
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
