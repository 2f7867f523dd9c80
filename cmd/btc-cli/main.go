package main

import (
	"fmt"
	"os"

	"github.com/btccli/btc-cli/build"
	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[btc-cli] %v\n", err)
	os.Exit(1)
}

// newApp assembles the command line application.
func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "btc-cli"
	app.Version = build.Version() + " commit=" + build.CommitHash()
	app.Usage = "submit bitcoin transactions through the local node, " +
		"public explorers and peers, and check their propagation"
	app.Flags = globalFlags
	app.Commands = []cli.Command{
		sendRawTransactionCommand,
		broadcastCommand,
		verifyTxCommand,
		seedsCommand,
	}

	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}
