package config

import "sync"

// AsteroidGenSettings holds procedural asteroid configuration
type AsteroidGenSettings struct {
	mu          sync.RWMutex
	seed        int64
	radius      float64
	roughness   float64
	lampSpacing int
}

var globalAsteroidGenSettings = &AsteroidGenSettings{
	seed:        1337,
	radius:      40,
	roughness:   0.25,
	lampSpacing: 9,
}

// GetSeed returns the generator seed
func GetSeed() int64 {
	globalAsteroidGenSettings.mu.RLock()
	defer globalAsteroidGenSettings.mu.RUnlock()
	return globalAsteroidGenSettings.seed
}

// SetSeed sets the generator seed
func SetSeed(seed int64) {
	globalAsteroidGenSettings.mu.Lock()
	defer globalAsteroidGenSettings.mu.Unlock()
	globalAsteroidGenSettings.seed = seed
}

// GetRadius returns the mean asteroid radius in voxels
func GetRadius() float64 {
	globalAsteroidGenSettings.mu.RLock()
	defer globalAsteroidGenSettings.mu.RUnlock()
	return globalAsteroidGenSettings.radius
}

// SetRadius sets the mean radius, clamped to [1,512]
func SetRadius(r float64) {
	globalAsteroidGenSettings.mu.Lock()
	defer globalAsteroidGenSettings.mu.Unlock()
	if r < 1 {
		r = 1
	}
	if r > 512 {
		r = 512
	}
	globalAsteroidGenSettings.radius = r
}

// GetRoughness returns how far the surface may deviate from the mean radius, as a fraction
func GetRoughness() float64 {
	globalAsteroidGenSettings.mu.RLock()
	defer globalAsteroidGenSettings.mu.RUnlock()
	return globalAsteroidGenSettings.roughness
}

// SetRoughness sets the surface roughness, clamped to [0,0.9]
func SetRoughness(r float64) {
	globalAsteroidGenSettings.mu.Lock()
	defer globalAsteroidGenSettings.mu.Unlock()
	if r < 0 {
		r = 0
	}
	if r > 0.9 {
		r = 0.9
	}
	globalAsteroidGenSettings.roughness = r
}

// GetLampSpacing returns the grid spacing of embedded surface lamps (0 disables them)
func GetLampSpacing() int {
	globalAsteroidGenSettings.mu.RLock()
	defer globalAsteroidGenSettings.mu.RUnlock()
	return globalAsteroidGenSettings.lampSpacing
}

// SetLampSpacing sets the lamp spacing; negative values disable lamps
func SetLampSpacing(n int) {
	globalAsteroidGenSettings.mu.Lock()
	defer globalAsteroidGenSettings.mu.Unlock()
	if n < 0 {
		n = 0
	}
	globalAsteroidGenSettings.lampSpacing = n
}
