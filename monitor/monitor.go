// Package monitor exposes a running simulation's status over HTTP: current
// simulated time, the component list, in-flight progress bars, process
// resource usage, and Go's standard pprof profiles. It is adapted from the
// teacher's monitoring package, trimmed to what a Tickit scheduler can
// meaningfully expose: Handler implementations are opaque to the kernel, so
// the per-buffer and per-field reflection endpoints the teacher exposes over
// akita's introspectable component/port structs have no equivalent here.
package monitor

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"

	// Registers the standard pprof handlers on http.DefaultServeMux; Monitor
	// forwards /debug/pprof/ requests to that mux.
	_ "net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"

	"github.com/dls-controls/tickit/sim"
)

// Simulation is the subset of scheduler.Master (or scheduler.Slave, via a
// thin adapter) a Monitor needs in order to report status.
type Simulation interface {
	CurrentTime() sim.SimTime
	Components() []sim.ComponentID
}

// Monitor serves a simulation's status over HTTP.
type Monitor struct {
	simulation Simulation
	listener   net.Listener
	server     *http.Server

	progressMu sync.Mutex
	progress   []*ProgressBar
}

// New builds a Monitor reporting on simulation.
func New(simulation Simulation) *Monitor {
	return &Monitor{simulation: simulation}
}

// CreateProgressBar registers and returns a new progress bar named name
// tracking total units of work.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{ID: sim.GetGenerator().Generate(), Name: name, Total: total}

	m.progressMu.Lock()
	m.progress = append(m.progress, bar)
	m.progressMu.Unlock()

	return bar
}

// CompleteProgressBar removes bar from the set reported by the status
// endpoint.
func (m *Monitor) CompleteProgressBar(bar *ProgressBar) {
	m.progressMu.Lock()
	defer m.progressMu.Unlock()

	kept := m.progress[:0]
	for _, b := range m.progress {
		if b != bar {
			kept = append(kept, b)
		}
	}

	m.progress = kept
}

// ListenAndServe starts the status server on addr in the background and
// returns once it is accepting connections.
func (m *Monitor) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return sim.NewTransportError(err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/status/now", m.handleNow)
	r.HandleFunc("/status/components", m.handleComponents)
	r.HandleFunc("/status/progress", m.handleProgress)
	r.HandleFunc("/status/resources", m.handleResources)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	m.listener = listener
	m.server = &http.Server{Handler: r}

	go func() {
		_ = m.server.Serve(listener)
	}()

	return nil
}

// Addr returns the address the status server is listening on.
func (m *Monitor) Addr() net.Addr {
	return m.listener.Addr()
}

// Close shuts the status server down.
func (m *Monitor) Close() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

func (m *Monitor) handleNow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]sim.SimTime{"now": m.simulation.CurrentTime()})
}

func (m *Monitor) handleComponents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.simulation.Components())
}

func (m *Monitor) handleProgress(w http.ResponseWriter, _ *http.Request) {
	m.progressMu.Lock()
	snapshots := make([]ProgressBar, len(m.progress))
	for i, b := range m.progress {
		snapshots[i] = b.Snapshot()
	}
	m.progressMu.Unlock()

	writeJSON(w, snapshots)
}

type resourceReport struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
}

func (m *Monitor) handleResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceReport{CPUPercent: cpuPercent, MemoryRSS: memInfo.RSS})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "monitor: failed to encode response: %v\n", err)
	}
}
