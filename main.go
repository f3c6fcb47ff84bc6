package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "stremio-resolver"
	app.Usage = "resolves stremio streams from jackett indexers and debrid services"
	app.Version = "1.0.0"
	configure(app)
	err := app.Run(os.Args)
	if err != nil {
		log.WithError(err).Fatal("failed to run application")
	}
}
