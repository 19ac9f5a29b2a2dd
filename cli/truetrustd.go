package main

import (
	"log"
	"os"

	"github.com/truetrustorg/truetrust-go/cli/cmd"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:                 "truetrustd",
		Usage:                "proof-of-trust consensus daemon",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:   "node",
				Usage:  "runs the consensus node",
				Action: cmd.RunNode,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "Path to the YAML node config",
						Value: "truetrust.yml",
					},
					&cli.StringFlag{
						Name:  "explorer",
						Usage: "Listen address for the explorer API (overrides config)",
					},
					&cli.Uint64Flag{
						Name:  "slot-millis",
						Usage: "Slot duration in milliseconds (overrides config)",
					},
					&cli.Uint64Flag{
						Name:  "slots-per-epoch",
						Usage: "Slots per epoch (overrides config)",
					},
				},
			},
			{
				Name:   "verify-witness",
				Usage:  "verifies an encoded weight witness against a snapshot root",
				Action: cmd.RunVerifyWitness,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "root",
						Usage:    "Snapshot root, 32 bytes of hex",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "witness",
						Usage:    "Hex-encoded witness",
						Required: true,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
