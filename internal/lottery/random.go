package lottery

import (
	crand "crypto/rand"
	"math/rand/v2"
	"sync"

	"facilityops/lottery/internal/model"
)

// Random is the randomness source for draws and random distribution.
type Random interface {
	// IntN returns a uniform integer in [0, n). n must be positive.
	IntN(n int) int
}

type lockedRandom struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (r *lockedRandom) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.IntN(n)
}

// NewRandom returns a goroutine-safe source seeded from crypto/rand.
func NewRandom() Random {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(err)
	}
	return &lockedRandom{rnd: rand.New(rand.NewChaCha8(seed))}
}

// NewSeededRandom returns a deterministic source for tests and replays.
func NewSeededRandom(seed uint64) Random {
	return &lockedRandom{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Shuffle permutes records in place with a Fisher-Yates pass over rnd.
func Shuffle(rnd Random, records []model.InvitationRecord) {
	for i := len(records) - 1; i > 0; i-- {
		j := rnd.IntN(i + 1)
		records[i], records[j] = records[j], records[i]
	}
}
