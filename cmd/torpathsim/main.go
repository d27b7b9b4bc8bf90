package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

// Commit stores the current commit hash of this build. This should be set
// using -ldflags during compilation.
var Commit string

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[torpathsim] %v\n", err)
	os.Exit(1)
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "torpathsim"
	app.Version = fmt.Sprintf("%s commit=%s", "0.1.0", Commit)
	app.Usage = "simulate Tor circuit path selection and measure " +
		"country diversity"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "path to YAML config",
		},
		cli.StringFlag{
			Name:  "envfile",
			Value: ".env",
			Usage: "dotenv file with TORPATHSIM_* overrides",
		},
		cli.StringFlag{
			Name:  "loglevel",
			Value: "info",
			Usage: "trace, debug, info, warn, error or critical",
		},
		cli.StringFlag{
			Name:  "metrics-textfile",
			Usage: "write Prometheus metrics to this file on exit",
		},
	}
	app.Commands = []cli.Command{
		configCommand,
		fetchCommand,
		relaysCommand,
		selectCommand,
		simulateCommand,
		whereamiCommand,
	}

	return app
}
