package main

import (
	"fmt"
	"time"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/room"
	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v2"
)

var ResolveApp = &ResolveCommand{}

type ResolveCommand struct {
}

func (r *ResolveCommand) Command() *cli.Command {
	return &cli.Command{
		Name:            "resolve",
		Usage:           "resolve a live room to its canonical id, token and relay hosts",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:     "room",
				Aliases:  []string{"r"},
				Usage:    "room id, short ids are accepted",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:  "uid",
				Usage: "account uid the token is issued for",
			},
			&cli.StringFlag{
				Name:    "sessdata",
				Usage:   "SESSDATA cookie of the account",
				EnvVars: []string{"SESSDATA"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "request timeout",
				Value: time.Second * 10,
			},
		},
		Action: r.action,
	}
}

func (r *ResolveCommand) action(c *cli.Context) error {
	resolver := room.NewResolver(c.String("sessdata"), c.Duration("timeout"))
	session, hosts, err := resolver.Resolve(c.Context, c.Uint64("room"), c.Uint64("uid"))
	if err != nil {
		return err
	}
	out, err := sonic.ConfigDefault.MarshalIndent(map[string]any{
		"session": session,
		"hosts":   hosts,
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(out))
	return err
}
