package main

import (
	"context"
	"log"
	"os"

	"github.com/mkravtsov/cropsync/internal/buildinfo"
	"github.com/mkravtsov/cropsync/internal/cli"
	"github.com/mkravtsov/cropsync/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
