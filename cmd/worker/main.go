package main

import (
	"os"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/logger"
)

func main() {
	log, err := logger.Init(logger.Options{Level: os.Getenv("LOG_LEVEL"), Format: "console", Output: "stderr"})
	if err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}

	if len(os.Args) < 2 {
		log.Fatal().Msg("usage: worker place-sensors <network> [out] | run <network> [sensors] [ticks]")
	}

	switch os.Args[1] {
	case "place-sensors":
		err = RunPlaceSensors(os.Args[2:])
	case "run":
		err = RunSession(os.Args[2:])
	default:
		log.Fatal().Msgf("unknown command: %s", os.Args[1])
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("worker failed")
	}
}
