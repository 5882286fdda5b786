// Command voxmesh generates an asteroid entity, builds its chunk meshes and
// reports the aggregates. It can store the entity in SQLite and write a
// top-down preview image.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"stationvox/internal/config"
	"stationvox/internal/gen"
	"stationvox/internal/logger"
	"stationvox/internal/meshing"
	"stationvox/internal/persistence"
	"stationvox/internal/pick"
	"stationvox/internal/preview"
	"stationvox/internal/profiling"
	"stationvox/internal/registry"
	"stationvox/internal/world"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/closer"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath  = flag.String("config", "", "YAML settings file (optional)")
		logLevel    = flag.String("log", "", "log level: debug, info, warn, error (overrides the settings file)")
		name        = flag.String("entity", "asteroid", "entity name")
		seed        = flag.Int64("seed", 0, "generator seed (0 keeps the configured one)")
		dbPath      = flag.String("db", "", "SQLite database to store the entity in (optional)")
		load        = flag.Bool("load", false, "load the entity from -db instead of generating it")
		previewPath = flag.String("preview", "", "write a top-down PNG preview to this path (optional)")
		scale       = flag.Int("scale", 4, "preview pixels per voxel column")
		dig         = flag.Int("dig", 1, "voxels to dig out of the asteroid's top after the first build")
	)
	flag.Parse()

	closer.Bind(logger.Sync)
	defer closer.Close()

	level := "info"
	if *configPath != "" {
		f, err := config.Load(*configPath)
		if err != nil {
			closer.Fatalln("load settings:", err)
		}
		f.Apply()
		if f.LogLevel != "" {
			level = f.LogLevel
		}
		if f.MaterialsPath != "" {
			reg, err := registry.LoadFile(f.MaterialsPath)
			if err != nil {
				closer.Fatalln("load materials:", err)
			}
			registry.SetDefault(reg)
		}
	}
	if *logLevel != "" {
		level = *logLevel
	}
	if err := logger.Init(level); err != nil {
		closer.Fatalln(err)
	}
	if *seed != 0 {
		config.SetSeed(*seed)
	}

	ctx := context.Background()
	var store *persistence.Store
	if *dbPath != "" {
		s, err := persistence.Open(*dbPath)
		if err != nil {
			closer.Fatalln("open store:", err)
		}
		closer.Bind(func() { _ = s.Close() })
		store = s
	}

	reg := registry.Default()
	var e *world.Entity
	if *load {
		if store == nil {
			closer.Fatalln("-load needs -db")
		}
		loaded, err := store.LoadEntity(ctx, *name)
		if err != nil {
			closer.Fatalln("load entity:", err)
		}
		e = loaded
	} else {
		g, err := gen.NewAsteroidFromConfig(reg)
		if err != nil {
			closer.Fatalln(err)
		}
		e = world.NewEntity(*name)
		lo, hi := g.ChunkRange()
		start := time.Now()
		n := gen.Build(e, g, lo, hi)
		logger.Log.Info("Asteroid generated",
			zap.String("entity", e.Name),
			zap.Int64("seed", config.GetSeed()),
			zap.Int("chunks", n),
			zap.Duration("took", time.Since(start)))
	}
	e.DefaultMass = reg.Mass
	e.Removal = world.RemovalFunc(func(x, y, z int, removed world.Voxel, light mgl32.Vec3) {
		logger.Log.Info("Debris released",
			zap.Int("x", x), zap.Int("y", y), zap.Int("z", z),
			zap.Int16("material", removed.MaterialID),
			zap.Float32("brightness", (light[0]+light[1]+light[2])/3))
	})

	rebuilder := meshing.NewRebuilder(config.GetRebuildWorkers(), 64, meshing.DefaultOptions())
	closer.Bind(rebuilder.Shutdown)

	start := time.Now()
	results, err := rebuilder.RebuildEntity(e)
	if err != nil {
		logger.Log.Error("Some chunks failed to rebuild", zap.Error(err))
	}
	report(e, results, time.Since(start))

	if *dig > 0 {
		removed := digDown(e, *dig)
		results, err := meshing.RebuildDirty(e, meshing.DefaultOptions())
		if err != nil {
			logger.Log.Error("Some chunks failed to rebuild", zap.Error(err))
		}
		logger.Log.Info("Dug into the surface", zap.Int("removed", removed), zap.Int("rebuilt", len(results)))
		report(e, results, 0)
	}

	if store != nil {
		if err := store.SaveEntity(ctx, e); err != nil {
			closer.Fatalln("save entity:", err)
		}
	}

	if *previewPath != "" {
		img, err := preview.TopDown(e, preview.Options{
			Scale:   *scale,
			Caption: fmt.Sprintf("%s  mass %d  chunks %d", e.Name, e.Mass(), e.Len()),
		})
		if err != nil {
			closer.Fatalln(err)
		}
		if err := preview.WritePNG(*previewPath, img); err != nil {
			closer.Fatalln(err)
		}
		logger.Log.Info("Preview written", zap.String("path", *previewPath))
	}

	logger.Log.Info("Profile", zap.String("top", profiling.TopN(5)))
}

// digDown casts a ray straight down through the entity origin column and
// removes the first n voxels it hits.
func digDown(e *world.Entity, n int) int {
	bounds, ok := e.Bounds()
	if !ok {
		return 0
	}
	start := mgl32.Vec3{0.5, bounds.Max[1] + 1, 0.5}
	reach := bounds.Size()[1] + 2
	removed := 0
	for removed < n {
		hit := pick.Raycast(e, start, mgl32.Vec3{0, -1, 0}, reach)
		if !hit.Hit {
			break
		}
		p := hit.HitPosition
		if _, _, err := e.Remove(p[0], p[1], p[2]); err != nil {
			logger.Log.Warn("Remove failed", zap.Ints("at", p[:]), zap.Error(err))
			break
		}
		removed++
	}
	return removed
}

func report(e *world.Entity, results []meshing.Result, took time.Duration) {
	faces, empty := 0, 0
	for _, r := range results {
		faces += r.Stats.Faces
		if r.Empty {
			empty++
		}
	}
	com, _ := e.CenterOfMass()
	bounds, _ := e.Bounds()
	logger.Log.Info("Entity rebuilt",
		zap.String("entity", e.Name),
		zap.Int("chunks", e.Len()),
		zap.Int("rebuilt", len(results)),
		zap.Int("dropped", empty),
		zap.Int("faces", faces),
		zap.Int("mass", e.Mass()),
		zap.String("centerOfMass", fmt.Sprintf("%.2f,%.2f,%.2f", com[0], com[1], com[2])),
		zap.String("bounds", fmt.Sprintf("%v..%v", bounds.Min, bounds.Max)),
		zap.Duration("took", took))
}
