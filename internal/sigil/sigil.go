// Package sigil implements the deterministic, content-derived identifier
// described in spec.md §4.B. Encode is a pure function: the same
// (content, type, depth) always yields an equal Sigil (property P2).
package sigil

import (
	"fmt"
	"math"
	"strconv"

	"github.com/echocog/spiralmem/internal/model"
)

// Config controls the tunable parts of the encoding (spec.md §6).
type Config struct {
	// HashSlice is the number of base-36 hash characters folded into the
	// signature. Default 10.
	HashSlice int
	// Sides is the sigil geometry's polygon side count. Default 13.
	Sides int
}

// DefaultConfig matches spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{HashSlice: 10, Sides: 13}
}

// rollingHash implements the 32-bit rolling hash of spec.md §4.B:
// h <- 0; for each byte b: h <- (h<<5) - h + b, truncated to unsigned.
func rollingHash(data []byte) uint32 {
	var h uint32
	for _, b := range data {
		h = (h << 5) - h + uint32(b)
	}
	return h
}

// base36 renders an unsigned 32-bit hash in base-36, matching the
// content_hash field.
func base36(h uint32) string {
	return strconv.FormatUint(uint64(h), 36)
}

// Encode derives a Sigil from content, type and depth. It never errors;
// unknown enum values are the caller's (store's) InvalidInput concern.
func Encode(cfg Config, content []byte, memType model.MemoryType, depth model.MemoryDepth) model.Sigil {
	h := rollingHash(content)
	hashStr := base36(h)

	slice := cfg.HashSlice
	if slice > len(hashStr) {
		slice = len(hashStr)
	}
	signature := memType.Symbol() + depth.Symbol() + hashStr[:slice]

	complexity := complexityOf(content, memType, depth)
	resonance := memType.BaseFreq() + (float64(h%100)/100.0)*50.0

	geom := geometryOf(cfg, content)

	return model.Sigil{
		Signature:     signature,
		ContentHash:   hashStr,
		Complexity:    complexity,
		ResonanceHz:   resonance,
		Geometry:      geom,
		EnergyPattern: fmt.Sprintf("%s-%d", signature, len(content)),
	}
}

// complexityOf computes the clamped [0,1] weighted sum of spec.md §4.B:
// content length (capped), type weight, depth weight.
func complexityOf(content []byte, memType model.MemoryType, depth model.MemoryDepth) float64 {
	const lengthCap = 2000.0
	lengthScore := math.Min(float64(len(content))/lengthCap, 1.0)

	v := 0.4*lengthScore + 0.35*memType.Weight() + 0.25*depth.Weight()
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

// geometryOf computes the sigil's polygon: evenly spaced angles around
// cfg.Sides vertices, each perturbed by a hash of (content, index).
func geometryOf(cfg Config, content []byte) model.Geometry {
	sides := cfg.Sides
	if sides <= 0 {
		sides = 13
	}
	base := 360.0 / float64(sides)
	angles := make([]float64, sides)
	for i := 0; i < sides; i++ {
		buf := make([]byte, len(content)+4)
		copy(buf, content)
		buf[len(content)+0] = byte(i)
		buf[len(content)+1] = byte(i >> 8)
		buf[len(content)+2] = byte(i >> 16)
		buf[len(content)+3] = byte(i >> 24)
		perturbHash := rollingHash(buf)
		perturb := (float64(perturbHash%1000) / 1000.0) * (base / 4.0)
		angles[i] = math.Mod(base*float64(i)+perturb, 360.0)
	}

	radius := 1.0 + (float64(rollingHash(content)%100) / 100.0)

	return model.Geometry{Sides: sides, Angles: angles, Radius: radius}
}
