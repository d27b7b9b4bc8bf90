package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"torpathsim/internal/config"
)

var configCommand = cli.Command{
	Name:  "config",
	Usage: "Manage the YAML config file.",
	Subcommands: []cli.Command{
		{
			Name: "init",
			Usage: "Write the effective configuration (defaults, " +
				"--config file and environment) to a file.",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "out",
					Value: "torpathsim.yaml",
					Usage: "file to write",
				},
				cli.BoolFlag{
					Name:  "force",
					Usage: "overwrite an existing file",
				},
			},
			Action: configInit,
		},
	},
}

func configInit(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	out := c.String("out")
	if _, err := os.Stat(out); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s exists; pass --force to overwrite", out)
	}

	if err := config.Save(out, s.cfg); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "wrote config to %s\n", out)
	return nil
}
