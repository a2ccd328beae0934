package sim

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator produces identifiers used for internal bookkeeping, such as
// correlation IDs on external-bus envelopes. It never appears in ComponentID
// or PortID, which are always supplied by configuration.
type Generator interface {
	Generate() string
}

var (
	generatorMu          sync.Mutex
	generatorInitialised bool
	generator            Generator
)

// UseSequentialGenerator configures the package-level Generator to produce
// small, deterministic, monotonically increasing IDs. Intended for tests
// and single-threaded runs where reproducibility matters.
func UseSequentialGenerator() {
	setGenerator(&sequentialGenerator{})
}

// UseParallelGenerator configures the package-level Generator to produce
// globally unique IDs safe for concurrent use, at the cost of determinism.
func UseParallelGenerator() {
	setGenerator(&parallelGenerator{})
}

func setGenerator(g Generator) {
	generatorMu.Lock()
	defer generatorMu.Unlock()

	if generatorInitialised {
		panic("tickit: cannot change ID generator after it has been used")
	}

	generator = g
	generatorInitialised = true
}

// GetGenerator returns the package-level Generator, defaulting to a
// sequential generator if none has been configured yet.
func GetGenerator() Generator {
	generatorMu.Lock()
	defer generatorMu.Unlock()

	if !generatorInitialised {
		generator = &sequentialGenerator{}
		generatorInitialised = true
	}

	return generator
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() string {
	return strconv.FormatUint(atomic.AddUint64(&g.next, 1), 10)
}

type parallelGenerator struct{}

func (parallelGenerator) Generate() string {
	return xid.New().String()
}
