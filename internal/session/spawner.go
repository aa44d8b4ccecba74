package session

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skydrop/server/internal/domain/object"
)

// SpawnJitterMax bounds the random extra fall time added to each object so
// falls are not visually synchronized.
const SpawnJitterMax = 600 * time.Millisecond

// Spawner is a repeating timer that manufactures falling-object descriptors
// at a configured cadence. It knows nothing about scoring or registry
// storage; it only hands descriptors to a callback. Same single-active-run
// and idempotent-stop guarantees as Clock.
type Spawner struct {
	mu   sync.Mutex
	rng  *rand.Rand
	stop chan struct{}
}

// NewSpawner creates a stopped spawner with its own RNG.
func NewSpawner() *Spawner {
	return &Spawner{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins producing one object per interval, with position and size
// drawn independently and uniformly within the viewport bounds, and a fall
// duration of fallBase plus a bounded random jitter. onSpawn must return
// quickly.
func (s *Spawner) Start(interval, fallBase time.Duration, onSpawn func(object.Falling)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
	}
	stop := make(chan struct{})
	s.stop = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				onSpawn(s.manufacture(fallBase))
			}
		}
	}()
}

// Stop halts the spawner. Safe to call when already stopped.
func (s *Spawner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

// manufacture draws one falling-object descriptor.
func (s *Spawner) manufacture(fallBase time.Duration) object.Falling {
	s.mu.Lock()
	size := object.MinSize + s.rng.Float64()*(object.MaxSize-object.MinSize)
	x := object.Padding + s.rng.Float64()*(object.ViewportWidth-2*object.Padding-size)
	jitter := time.Duration(s.rng.Int63n(int64(SpawnJitterMax)))
	s.mu.Unlock()

	return object.Falling{
		ID:           uuid.NewString(),
		X:            x,
		Size:         size,
		FallDuration: fallBase + jitter,
		CreatedAt:    time.Now(),
	}
}
