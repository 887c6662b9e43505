package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-squid-simulation/pkg/level"
	"github.com/lao-tseu-is-alive/go-squid-simulation/pkg/scene"
)

func main() {
	// Defaults may come from a .env file or the environment.
	envConfig, envWalls, err := scene.LoadEnv()
	if err != nil {
		log.Fatal(err)
	}
	configFile := flag.String("config", envConfig, "JSON config file (defaults are used when empty)")
	wallsFile := flag.String("walls", envWalls, "walls file to load and save (overrides the config)")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	ctx := context.Background()

	// 1. Configuration
	cfg := scene.DefaultConfig()
	if *configFile != "" {
		if cfg, err = scene.LoadConfig(*configFile); err != nil {
			log.Fatal(err)
		}
	}
	if *wallsFile != "" {
		cfg.WallsFile = *wallsFile
	}

	// 2. Level. A missing file starts an empty level that Enter will create.
	walls, err := level.Load(cfg.WallsFile)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("no walls at %s, starting with an empty level", cfg.WallsFile)
	} else if err != nil {
		log.Fatal(err)
	}

	// 3. Actor system
	logLevel := golog.InfoLevel
	if *debug {
		logLevel = golog.DebugLevel
	}
	system, err := actor.NewActorSystem("SquidWorld",
		actor.WithLogger(golog.New(logLevel, os.Stdout)),
		actor.WithActorInitMaxRetries(3))
	if err != nil {
		log.Fatal(err)
	}
	if err := system.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer system.Stop(ctx)

	// 4. Viewer
	game, err := GetNewGame(ctx, cfg, walls, cfg.WallsFile, system)
	if err != nil {
		log.Fatal(err)
	}
	ebiten.SetWindowSize(int(cfg.WorldWidth), int(cfg.WorldHeight))
	ebiten.SetWindowTitle("Squid")
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
