// Command seeder loads concepts, materials and credits into the matsearch store.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/matsearch/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	fileFlag := &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "Path to the YAML seed file",
		Required: true,
	}
	return &cli.App{
		Name:    "seeder",
		Usage:   "Seed the matsearch store",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Configuration environment (local, dev, prod)",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "indexes",
				Usage:  "Create the concept and material search indexes",
				Action: indexesCommand,
			},
			{
				Name:   "concepts",
				Usage:  "Embed and store semantic concepts",
				Action: conceptsCommand,
				Flags:  []cli.Flag{fileFlag},
			},
			{
				Name:   "materials",
				Usage:  "Embed and store catalogue materials",
				Action: materialsCommand,
				Flags:  []cli.Flag{fileFlag},
			},
			{
				Name:   "credits",
				Usage:  "Grant metered credits to a user",
				Action: creditsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User id to credit",
						Required: true,
					},
					&cli.Int64Flag{
						Name:     "units",
						Usage:    "Credits to grant",
						Required: true,
					},
				},
			},
		},
	}
}
