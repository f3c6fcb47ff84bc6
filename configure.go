package main

import (
	"github.com/urfave/cli"
)

func configure(app *cli.App) {
	app.Flags = registerLogFlags(app.Flags)
	app.Before = setupLogging
	app.After = closeLogging
	serveCMD := makeServeCMD()
	cleanCMD := makeCleanCMD()
	app.Commands = []cli.Command{serveCMD, cleanCMD}
}
