package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk form of the settings. Zero fields keep the current value.
type File struct {
	LogLevel      string `yaml:"log_level"`
	MaterialsPath string `yaml:"materials"`

	Mesh struct {
		AmbientFloor   *float32 `yaml:"ambient_floor"`
		AtlasColumns   int      `yaml:"atlas_columns"`
		AtlasRows      int      `yaml:"atlas_rows"`
		RebuildWorkers int      `yaml:"rebuild_workers"`
	} `yaml:"mesh"`

	Asteroid struct {
		Seed        *int64   `yaml:"seed"`
		Radius      float64  `yaml:"radius"`
		Roughness   *float64 `yaml:"roughness"`
		LampSpacing *int     `yaml:"lamp_spacing"`
	} `yaml:"asteroid"`
}

// Load reads a YAML settings file.
func Load(path string) (File, error) {
	var f File
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Apply pushes the set fields into the global settings.
func (f File) Apply() {
	if f.Mesh.AmbientFloor != nil {
		SetAmbientFloor(*f.Mesh.AmbientFloor)
	}
	if f.Mesh.AtlasColumns > 0 || f.Mesh.AtlasRows > 0 {
		cols, rows := GetAtlasGrid()
		if f.Mesh.AtlasColumns > 0 {
			cols = f.Mesh.AtlasColumns
		}
		if f.Mesh.AtlasRows > 0 {
			rows = f.Mesh.AtlasRows
		}
		SetAtlasGrid(cols, rows)
	}
	if f.Mesh.RebuildWorkers > 0 {
		SetRebuildWorkers(f.Mesh.RebuildWorkers)
	}
	if f.Asteroid.Seed != nil {
		SetSeed(*f.Asteroid.Seed)
	}
	if f.Asteroid.Radius > 0 {
		SetRadius(f.Asteroid.Radius)
	}
	if f.Asteroid.Roughness != nil {
		SetRoughness(*f.Asteroid.Roughness)
	}
	if f.Asteroid.LampSpacing != nil {
		SetLampSpacing(*f.Asteroid.LampSpacing)
	}
}
