// Package id generates identifiers for events and bus transactions.
package id

import (
	"log"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator creates unique IDs.
type Generator interface {
	Generate() string
}

var (
	mu        sync.Mutex
	generator Generator
)

// UseParallel makes Generate return globally unique xid strings instead of
// "1", "2", "3", ... It must be called before the first ID is generated.
func UseParallel() {
	mu.Lock()
	defer mu.Unlock()

	if generator != nil {
		log.Panic("cannot change the id generator after it is used")
	}

	generator = parallel{}
}

func current() Generator {
	mu.Lock()
	defer mu.Unlock()

	if generator == nil {
		generator = &sequential{}
	}

	return generator
}

// Generate returns a new ID from the current generator.
func Generate() string {
	return current().Generate()
}

type sequential struct {
	next uint64
}

func (g *sequential) Generate() string {
	return strconv.FormatUint(atomic.AddUint64(&g.next, 1), 10)
}

type parallel struct{}

func (parallel) Generate() string {
	return xid.New().String()
}
