package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"stationvox/internal/logger"
	"stationvox/internal/world"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed materials.yaml
var defaultMaterials []byte

// ErrUnknownMaterial is returned for ids missing from the table.
var ErrUnknownMaterial = errors.New("registry: unknown material")

// Tiles are the atlas tiles of a material's faces relative to its orientation.
type Tiles struct {
	Top    int `yaml:"top"`
	Side   int `yaml:"side"`
	Bottom int `yaml:"bottom"`
}

// TileRole picks which of a material's tiles a face shows.
type TileRole uint8

const (
	RoleTop TileRole = iota
	RoleSide
	RoleBottom
)

// Material is the side-table entry for a material id. The meshing core only
// reads tiles from it; the rest seeds new voxels.
type Material struct {
	ID          int16       `yaml:"id"`
	Name        string      `yaml:"name"`
	Mass        uint8       `yaml:"mass"`
	Transparent bool        `yaml:"transparent"`
	Emission    float32     `yaml:"emission"`
	LightColor  [3]float32  `yaml:"light_color"`
	Color       *[3]float32 `yaml:"color"`
	Tiles       Tiles       `yaml:"tiles"`
}

// Tile returns the atlas tile for a face role.
func (m *Material) Tile(role TileRole) int {
	switch role {
	case RoleTop:
		return m.Tiles.Top
	case RoleBottom:
		return m.Tiles.Bottom
	default:
		return m.Tiles.Side
	}
}

// Voxel returns a fresh voxel of this material.
func (m *Material) Voxel() world.Voxel {
	v := world.NewVoxel(m.ID, m.Mass)
	v.Transparent = m.Transparent
	if m.Color != nil {
		v.Color = mgl32.Vec3(*m.Color)
	}
	if m.Emission > 0 {
		v.LightLevel = world.MaxLightLevel
		v.LightColor = mgl32.Vec3(m.LightColor)
	}
	return v
}

// Registry maps material ids to their definitions.
type Registry struct {
	materials map[int16]*Material
	names     map[string]int16
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		materials: make(map[int16]*Material),
		names:     make(map[string]int16),
	}
}

// Register adds a material. Ids must be positive and unique, names unique.
// Emission is either 0 or MaxLightLevel: partial emitters would not be light
// sources and propagation would reset them.
func (r *Registry) Register(m Material) error {
	if m.ID <= 0 {
		return fmt.Errorf("registry: material %q: id %d must be positive", m.Name, m.ID)
	}
	if m.Emission != 0 && m.Emission != world.MaxLightLevel {
		return fmt.Errorf("registry: material %q: emission %v must be 0 or %v", m.Name, m.Emission, world.MaxLightLevel)
	}
	if _, ok := r.materials[m.ID]; ok {
		return fmt.Errorf("registry: duplicate material id %d", m.ID)
	}
	if m.Name != "" {
		if _, ok := r.names[m.Name]; ok {
			return fmt.Errorf("registry: duplicate material name %q", m.Name)
		}
		r.names[m.Name] = m.ID
	}
	if m.Mass == 0 {
		m.Mass = 1
	}
	r.materials[m.ID] = &m
	return nil
}

// Lookup returns the material with the given id.
func (r *Registry) Lookup(id int16) (*Material, bool) {
	m, ok := r.materials[id]
	return m, ok
}

// ByName returns the material registered under name.
func (r *Registry) ByName(name string) (*Material, error) {
	id, ok := r.names[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMaterial, name)
	}
	return r.materials[id], nil
}

// Mass returns the default mass of a material, 1 for unknown ids.
func (r *Registry) Mass(id int16) uint8 {
	if m, ok := r.materials[id]; ok {
		return m.Mass
	}
	return 1
}

// Voxel returns a fresh voxel of material id.
func (r *Registry) Voxel(id int16) (world.Voxel, error) {
	m, ok := r.materials[id]
	if !ok {
		return world.Voxel{}, fmt.Errorf("%w: %d", ErrUnknownMaterial, id)
	}
	return m.Voxel(), nil
}

// IDs returns all registered ids in ascending order.
func (r *Registry) IDs() []int16 {
	ids := make([]int16, 0, len(r.materials))
	for id := range r.materials {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type materialFile struct {
	Materials []Material `yaml:"materials"`
}

// Parse builds a registry from a YAML material table.
func Parse(data []byte) (*Registry, error) {
	var f materialFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	r := New()
	for _, m := range f.Materials {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadFile reads a YAML material table from disk.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Log.Info("Material table loaded",
		zap.String("path", path),
		zap.Int("materials", len(r.materials)))
	return r, nil
}

var (
	defaultMu   sync.RWMutex
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, the embedded table unless
// SetDefault replaced it.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Parse(defaultMaterials)
		if err != nil {
			panic(fmt.Sprintf("registry: embedded materials: %v", err))
		}
		defaultMu.Lock()
		if defaultReg == nil {
			defaultReg = r
		}
		defaultMu.Unlock()
	})
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultReg
}

// SetDefault replaces the process-wide registry.
func SetDefault(r *Registry) {
	defaultMu.Lock()
	defaultReg = r
	defaultMu.Unlock()
}
