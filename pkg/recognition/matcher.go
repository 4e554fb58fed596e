package recognition

import (
	"math"
	"sync"

	"github.com/MrCodeEU/facelock/pkg/logging"
)

// Threshold bounds for runtime adjustment.
const (
	MinThreshold = 0.05
	MaxThreshold = 1.0
)

// FaceDB matches probe embeddings against the enrolled gallery by
// nearest Euclidean neighbour. The gallery and the acceptance
// threshold can both change at runtime (database reload, threshold
// keys); changes take effect on the next Match call.
type FaceDB struct {
	mu        sync.RWMutex
	threshold float64
	names     []string
	gallery   []Descriptor
}

// NewFaceDB creates an empty matcher with the given acceptance
// threshold.
func NewFaceDB(threshold float64) *FaceDB {
	return &FaceDB{threshold: threshold}
}

// Load replaces the gallery with the given identities and their
// enrolled descriptors.
func (db *FaceDB) Load(identities map[string][]Descriptor) {
	var names []string
	var gallery []Descriptor
	for name, descs := range identities {
		for _, d := range descs {
			names = append(names, name)
			gallery = append(gallery, d)
		}
	}

	db.mu.Lock()
	db.names = names
	db.gallery = gallery
	db.mu.Unlock()

	logging.Component("matcher").Debugf("Loaded %d descriptors for %d identities",
		len(gallery), len(identities))
}

// Identities returns the number of enrolled descriptors.
func (db *FaceDB) Identities() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.gallery)
}

// Match finds the nearest enrolled descriptor. With an empty gallery
// the result has no identity and is not accepted.
func (db *FaceDB) Match(probe Descriptor) IdentityMatch {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.gallery) == 0 {
		return IdentityMatch{Distance: math.MaxFloat64}
	}

	bestIdx := 0
	bestDist := math.MaxFloat64
	for i, d := range db.gallery {
		if dist := EuclideanDistance(probe, d); dist < bestDist {
			bestDist = dist
			bestIdx = i
		}
	}

	return IdentityMatch{
		Identity: db.names[bestIdx],
		Distance: bestDist,
		Accepted: bestDist < db.threshold,
	}
}

// Threshold returns the current acceptance threshold.
func (db *FaceDB) Threshold() float64 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.threshold
}

// AdjustThreshold shifts the acceptance threshold by delta, clamped to
// [MinThreshold, MaxThreshold], and returns the new value.
func (db *FaceDB) AdjustThreshold(delta float64) float64 {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.threshold += delta
	if db.threshold < MinThreshold {
		db.threshold = MinThreshold
	}
	if db.threshold > MaxThreshold {
		db.threshold = MaxThreshold
	}
	return db.threshold
}

// EuclideanDistance calculates the Euclidean distance between two
// descriptors.
func EuclideanDistance(d1, d2 Descriptor) float64 {
	if len(d1) != len(d2) {
		return math.MaxFloat64
	}

	var sum float64
	for i := range d1 {
		diff := float64(d1[i] - d2[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
