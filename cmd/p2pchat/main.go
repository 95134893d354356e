package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// Version - app version fingerprint
const Version = "0.4.0"

func main() {
	app := &cli.Command{
		Name:    "p2pchat",
		Usage:   "Peer-to-peer chat over TCP",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Config file, p2pchat.yaml in current folder or $HOME/.p2pchat by default",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error, disabled)",
				Value: "warn",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port",
				Value:   defaultPort,
			},
			&cli.StringFlag{
				Name:  "address",
				Usage: "Listen address, requires single address family",
			},
			&cli.StringFlag{
				Name:  "family",
				Usage: "Address family: dual, ipv4 or ipv6",
				Value: "dual",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Connect, read and write timeout in seconds",
				Value: defaultTimeout,
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Display name, OS user name by default",
			},
			&cli.StringFlag{
				Name:  "icon",
				Usage: "Icon file sent on registration",
			},
			&cli.StringFlag{
				Name:  "otel-endpoint",
				Usage: "OTLP/HTTP endpoint for connection traces, e.g. http://localhost:4318/v1/traces",
			},
			&cli.StringFlag{
				Name:  "icons-dir",
				Usage: "Folder for icons of registered peers",
				Value: defaultIconsDir,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "listen",
				Usage:  "Wait for other peers and print their messages",
				Action: runListen,
			},
			{
				Name:      "talk",
				Usage:     "Connect to peer and send every line of stdin",
				ArgsUsage: "<host:port>",
				Action:    runTalk,
			},
			{
				Name:      "send",
				Usage:     "Send single message and print acknowledgements",
				ArgsUsage: "<host:port> <text>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "register",
						Usage: "Register with the icon before the message",
					},
				},
				Action: runSend,
			},
			{
				Name:      "icon",
				Usage:     "Print icon file of registered peer",
				ArgsUsage: "<name>",
				Action:    runIcon,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
