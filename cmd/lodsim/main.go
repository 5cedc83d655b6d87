// lodsim runs the terrain engine headless and reports how detail, the vertex
// pool and the build queue respond to a scripted camera.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/planetlod/internal/config"
	"github.com/Faultbox/planetlod/internal/engine/terrain"
	"github.com/Faultbox/planetlod/internal/engine/terrain/backend"
	"github.com/Faultbox/planetlod/internal/engine/terrain/heightfield"
	"github.com/Faultbox/planetlod/internal/logger"
	"github.com/Faultbox/planetlod/internal/sim"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "descend":
		err = cmdDescend(args, os.Stdout)
	case "config":
		err = cmdConfig(args, os.Stdout)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lodsim - headless planet terrain simulation

Usage:
  lodsim <command> [options]

Commands:
  descend [options]    Descend toward the surface and print terrain statistics
  config [file.yaml]   Print the effective configuration as YAML

Descend options:
  -config <file>       YAML config (defaults otherwise)
  -mode <mode>         quadtree or grid
  -pixel-error <px>    Tolerated screen-space error
  -from <alt>          Start altitude (default 10 radii)
  -to <alt>            End altitude (default radius/100)
  -steps <n>           Number of samples
  -height <px>         Viewport height
  -lat, -lon <deg>     Camera position
  -log <level>         Log level (default warn)

Examples:
  lodsim descend -mode grid -steps 20
  lodsim config > planet.yaml`)
}

func cmdConfig(args []string, out io.Writer) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	return cfg.Encode(out)
}

// cmdDescend steps the camera toward the surface and prints one row per
// sample.
func cmdDescend(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("descend", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	mode := fs.String("mode", "", "quadtree or grid")
	pixelError := fs.Float64("pixel-error", 0, "tolerated screen-space error in pixels")
	from := fs.Float64("from", 0, "start altitude")
	to := fs.Float64("to", 0, "end altitude")
	steps := fs.Int("steps", 0, "number of samples")
	height := fs.Int("height", 0, "viewport height in pixels")
	lat := fs.Float64("lat", 0, "latitude in degrees")
	lon := fs.Float64("lon", 0, "longitude in degrees")
	level := fs.String("log", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return err
	}
	if *mode != "" {
		cfg.Terrain.Mode = *mode
	}
	if *pixelError > 0 {
		cfg.Terrain.PixelError = *pixelError
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.Init(logger.Options{Level: *level, Console: true})
	if err != nil {
		return err
	}
	defer logger.Sync()

	script := sim.DefaultScript(cfg.Planet.Radius)
	if *from > 0 {
		script.From = *from
	}
	if *to > 0 {
		script.To = *to
	}
	if *steps > 0 {
		script.Steps = *steps
	}
	script.ViewportHeight = cfg.Graphics.Height
	if *height > 0 {
		script.ViewportHeight = *height
	}

	rec := backend.NewRecorder()
	m, err := terrain.NewManager(cfg.TerrainSettings(), heightfield.New(cfg.HeightfieldParams()), rec,
		terrain.WithLogger(log.Named("terrain")))
	if err != nil {
		return err
	}
	defer m.Close()

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lat":
			cfg.Camera.Latitude = *lat
		case "lon":
			cfg.Camera.Longitude = *lon
		}
	})
	cam := cfg.PlanetCamera()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(out, "Mode: %s  Radius: %g  Pixel error: %g  Viewport: %dpx\n\n",
		cfg.Terrain.Mode, cfg.Planet.Radius, cfg.Terrain.PixelError, script.ViewportHeight)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "step\taltitude\tframes\tpatches\ttriangles\tnodes\tfinest\tfaces\tpool used\tfree blocks\tdeferred\tbuilds\t")

	r := &sim.Runner{Manager: m, Recorder: rec, Camera: cam, Log: log.Named("sim")}
	start := time.Now()
	err = r.Descend(ctx, script, func(s sim.Sample) {
		frames := fmt.Sprint(s.Frames)
		if !s.Settled {
			frames += "*"
		}
		st := s.Stats
		fmt.Fprintf(tw, "%d\t%.1f\t%s\t%d\t%d\t%d\t%d\t%d\t%d/%d\t%d\t%d\t%d\t\n",
			s.Step, s.Altitude, frames, st.Patches, st.Triangles, st.Nodes, st.FinestLevel,
			st.VisibleFaces, st.Pool.Used, st.Pool.Capacity, st.Pool.FreeBlocks, st.Deferred, st.Queue.Applied)
	})
	tw.Flush()
	if err != nil {
		log.Error("descent aborted", zap.Error(err))
		return fmt.Errorf("descent aborted: %w", err)
	}

	fmt.Fprintf(out, "\nCompleted in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}
