package monitor_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dls-controls/tickit/monitor"
	"github.com/dls-controls/tickit/sim"
)

type fakeSimulation struct {
	now        sim.SimTime
	components []sim.ComponentID
}

func (f *fakeSimulation) CurrentTime() sim.SimTime        { return f.now }
func (f *fakeSimulation) Components() []sim.ComponentID { return f.components }

func TestMonitorReportsCurrentTimeAndComponents(t *testing.T) {
	sim1 := &fakeSimulation{now: 42, components: []sim.ComponentID{"a", "b"}}
	m := monitor.New(sim1)

	require.NoError(t, m.ListenAndServe("127.0.0.1:0"))
	defer m.Close()

	time.Sleep(10 * time.Millisecond)

	base := "http://" + m.Addr().String()

	resp, err := http.Get(base + "/status/now")
	require.NoError(t, err)
	defer resp.Body.Close()

	var now map[string]sim.SimTime
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&now))
	require.Equal(t, sim.SimTime(42), now["now"])

	resp2, err := http.Get(base + "/status/components")
	require.NoError(t, err)
	defer resp2.Body.Close()

	var components []string
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&components))
	require.ElementsMatch(t, []string{"a", "b"}, components)
}

func TestMonitorProgressBarLifecycle(t *testing.T) {
	m := monitor.New(&fakeSimulation{})

	bar := m.CreateProgressBar("ticks", 100)
	bar.IncrementInProgress(10)
	bar.MoveInProgressToFinished(10)

	require.NoError(t, m.ListenAndServe("127.0.0.1:0"))
	defer m.Close()

	time.Sleep(10 * time.Millisecond)

	resp, err := http.Get("http://" + m.Addr().String() + "/status/progress")
	require.NoError(t, err)
	defer resp.Body.Close()

	var bars []monitor.ProgressBar
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bars))
	require.Len(t, bars, 1)
	require.Equal(t, uint64(10), bars[0].Finished)

	m.CompleteProgressBar(bar)

	resp2, err := http.Get("http://" + m.Addr().String() + "/status/progress")
	require.NoError(t, err)
	defer resp2.Body.Close()

	var barsAfter []monitor.ProgressBar
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&barsAfter))
	require.Empty(t, barsAfter)
}
