package main

import (
	"os"

	"github.com/rprtr258/udevwatch/internal/cli"
	"github.com/rprtr258/udevwatch/internal/infra/log"
)

func main() {
	if errRun := cli.Run(os.Args); errRun != nil {
		logger := log.New(false)
		logger.Fatal().Err(errRun).Msg("app exited abnormally")
	}
}
