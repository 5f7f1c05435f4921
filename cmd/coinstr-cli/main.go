package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "coinstr-cli"
	app.Usage = "inspect and drive a coinstr vault client"
	app.Commands = []cli.Command{
		balanceCommand,
		listUtxosCommand,
		newAddressCommand,
		spendCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
