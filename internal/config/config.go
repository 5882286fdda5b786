package config

import "sync"

// MeshSettings holds mesher configuration
type MeshSettings struct {
	mu             sync.RWMutex
	ambientFloor   float32
	atlasColumns   int
	atlasRows      int
	rebuildWorkers int
}

var globalMeshSettings = &MeshSettings{
	ambientFloor:   0.3, // unlit faces stay readable
	atlasColumns:   16,
	atlasRows:      16,
	rebuildWorkers: 1,
}

// GetAmbientFloor returns the light added to every face before clamping
func GetAmbientFloor() float32 {
	globalMeshSettings.mu.RLock()
	defer globalMeshSettings.mu.RUnlock()
	return globalMeshSettings.ambientFloor
}

// SetAmbientFloor sets the ambient floor, clamped to [0,1]
func SetAmbientFloor(v float32) {
	globalMeshSettings.mu.Lock()
	defer globalMeshSettings.mu.Unlock()

	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	globalMeshSettings.ambientFloor = v
}

// GetAtlasGrid returns the number of tile columns and rows in the texture atlas
func GetAtlasGrid() (columns, rows int) {
	globalMeshSettings.mu.RLock()
	defer globalMeshSettings.mu.RUnlock()
	return globalMeshSettings.atlasColumns, globalMeshSettings.atlasRows
}

// SetAtlasGrid sets the atlas layout, each side clamped to [1,256]
func SetAtlasGrid(columns, rows int) {
	globalMeshSettings.mu.Lock()
	defer globalMeshSettings.mu.Unlock()
	globalMeshSettings.atlasColumns = clampInt(columns, 1, 256)
	globalMeshSettings.atlasRows = clampInt(rows, 1, 256)
}

// GetRebuildWorkers returns how many goroutines rebuild chunk meshes
func GetRebuildWorkers() int {
	globalMeshSettings.mu.RLock()
	defer globalMeshSettings.mu.RUnlock()
	return globalMeshSettings.rebuildWorkers
}

// SetRebuildWorkers sets the rebuild worker count, clamped to [1,64].
// More than one worker is only safe when no two adjacent chunks are queued
// while their neighbour links or voxels change.
func SetRebuildWorkers(n int) {
	globalMeshSettings.mu.Lock()
	defer globalMeshSettings.mu.Unlock()
	globalMeshSettings.rebuildWorkers = clampInt(n, 1, 64)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
