// Command headless drives the squid through a scripted swim without a window
// and logs what happens. It exercises the same world actor as the viewer.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lao-tseu-is-alive/go-squid-simulation/pkg/level"
	"github.com/lao-tseu-is-alive/go-squid-simulation/pkg/scene"
	"github.com/lao-tseu-is-alive/go-squid-simulation/pkg/simulation"
	"github.com/lao-tseu-is-alive/go-squid-simulation/pkg/stream"
)

const (
	chargeFrames = 120 // one full buildup at 60 Hz
	strokeFrames = 180
	turnRadius   = 400.0
)

// script is the player's input for frame i: charge, release into a push,
// and steer toward a point circling the spawn.
func script(i int, spawn cp.Vector) scene.Input {
	stroke := i / strokeFrames
	angle := float64(stroke) * math.Pi / 4
	target := spawn.Add(cp.Vector{X: math.Sin(angle) * turnRadius, Y: -math.Cos(angle) * turnRadius})
	return scene.Input{
		Pointer: target,
		Primary: i%strokeFrames < chargeFrames,
	}
}

func main() {
	// Defaults may come from a .env file or the environment.
	envConfig, envWalls, err := scene.LoadEnv()
	if err != nil {
		log.Fatal(err)
	}
	configFile := flag.String("config", envConfig, "JSON config file (defaults are used when empty)")
	wallsFile := flag.String("walls", envWalls, "walls file (overrides the config)")
	frames := flag.Int("frames", 1200, "number of steps to run")
	every := flag.Int("every", 60, "log the squid state every n frames")
	saveTo := flag.String("save", "", "write the walls to this file when done")
	serve := flag.String("serve", "", "stream every frame as JSON to websocket clients on this address (e.g. :8080, path /ws)")
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
	walls, err := level.Load(cfg.WallsFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal(err)
	}

	// 2. Actor system and world
	logger := golog.New(golog.InfoLevel, os.Stdout)
	system, err := actor.NewActorSystem("SquidHeadless", actor.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	if err := system.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer system.Stop(ctx)

	snapshotCh := make(chan *scene.Snapshot, 1)
	worldPID, err := system.Spawn(ctx, "world", simulation.NewWorldActor(snapshotCh, cfg, walls))
	if err != nil {
		log.Fatal(err)
	}

	// 3. Optional frame stream
	var hub *stream.Hub
	if *serve != "" {
		hub = stream.NewHub(logger)
		defer hub.Close()
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		srv := &http.Server{Addr: *serve, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("stream server: %v", err)
			}
		}()
		defer srv.Shutdown(ctx)
		logger.Infof("streaming frames on ws://%s/ws", *serve)
	}

	// 4. Run in lockstep: one frame out, one snapshot back. The world pushes
	// a snapshot when it starts; it must be drained first or the next one is dropped.
	snap, err := waitFrame(snapshotCh, 0)
	if err != nil {
		log.Fatal(err)
	}
	spawn := cfg.Squid.Vector()
	start := time.Now()
	for i := 0; i < *frames; i++ {
		if err := actor.Tell(ctx, worldPID, simulation.FrameMessage(script(i, spawn))); err != nil {
			log.Fatal(err)
		}
		if snap, err = waitFrame(snapshotCh, int64(i+1)); err != nil {
			log.Fatal(err)
		}
		if hub != nil {
			// Walls only change between runs here, send them once a second.
			if err := hub.Broadcast(stream.FromSnapshot(snap, snap.Frame%60 == 1)); err != nil {
				logger.Warnf("stream: %v", err)
			}
		}
		if *every > 0 && snap.Frame%int64(*every) == 0 {
			logger.Infof("frame %5d | pos (%7.1f, %7.1f) | speed %6.1f | %-8s %-8s buildup %.2f | npcs %d",
				snap.Frame, snap.Body.X, snap.Body.Y, snap.Speed, snap.Pose, snap.Push, snap.Buildup, len(snap.NPCs))
		}
	}
	elapsed := time.Since(start)
	logger.Infof("ran %d frames in %s (%.0f steps/s)", *frames, elapsed, float64(*frames)/elapsed.Seconds())

	// 5. Optional save
	if *saveTo != "" {
		resp, err := actor.Ask(ctx, worldPID, simulation.SaveWallsMessage(*saveTo), 5*time.Second)
		if err != nil {
			log.Fatal(err)
		}
		if ok, isBool := resp.(*wrapperspb.BoolValue); !isBool || !ok.GetValue() {
			log.Fatalf("walls not saved to %s", *saveTo)
		}
	}
}

// waitFrame reads snapshots until the one for frame arrives.
func waitFrame(ch <-chan *scene.Snapshot, frame int64) (*scene.Snapshot, error) {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap := <-ch:
			if snap.Frame >= frame {
				return snap, nil
			}
		case <-timeout:
			return nil, errors.New("world stopped answering")
		}
	}
}
