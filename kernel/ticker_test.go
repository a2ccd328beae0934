package kernel_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dls-controls/tickit/kernel"
	"github.com/dls-controls/tickit/sim"
	"github.com/dls-controls/tickit/wiring"
)

// deviceStub is a tiny synchronous device used to drive the Ticker in
// tests: on receiving an Input it immediately calls back into the ticker
// with a fixed Output, exactly like a real component's on-tick handler
// would once it has computed its result.
type deviceStub struct {
	ticker *kernel.Ticker
	output func(sim.Input) sim.Output
	calls  []sim.Input
}

func (d *deviceStub) update(ctx context.Context, in sim.Input) error {
	d.calls = append(d.calls, in)
	return d.ticker.Propagate(ctx, d.output(in))
}

var _ = Describe("Ticker", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("pure timer with no wiring", func() {
		It("ticks a single unconnected component once", func() {
			w := wiring.New(map[wiring.Endpoint][]wiring.Endpoint{
				{Component: "timer", Port: "out"}: nil,
			})
			router, err := wiring.NewRouter(w)
			Expect(err).NotTo(HaveOccurred())

			var stub deviceStub
			ticker := kernel.NewTicker(router, func(ctx context.Context, in sim.Input) error {
				return stub.update(ctx, in)
			})
			stub.ticker = ticker
			stub.output = func(in sim.Input) sim.Output {
				return sim.Output{Source: "timer", Time: in.Time}
			}

			err = ticker.Tick(ctx, 5, map[sim.ComponentID]struct{}{"timer": {}})

			Expect(err).NotTo(HaveOccurred())
			Expect(stub.calls).To(HaveLen(1))
			Expect(stub.calls[0].Time).To(Equal(sim.SimTime(5)))
		})
	})

	Context("linear chain a -> b -> c", func() {
		It("updates components in dependency order and collates inputs", func() {
			w := wiring.New(map[wiring.Endpoint][]wiring.Endpoint{
				{Component: "a", Port: "out"}: {{Component: "b", Port: "in"}},
				{Component: "b", Port: "out"}: {{Component: "c", Port: "in"}},
			})
			router, err := wiring.NewRouter(w)
			Expect(err).NotTo(HaveOccurred())

			var order []sim.ComponentID

			var ticker *kernel.Ticker
			update := func(ctx context.Context, in sim.Input) error {
				order = append(order, in.Target)

				var out sim.Output
				switch in.Target {
				case "a":
					out = sim.Output{Source: "a", Time: in.Time, Changes: sim.Changes{"out": 1}}
				case "b":
					value := in.Changes["in"]
					out = sim.Output{Source: "b", Time: in.Time, Changes: sim.Changes{"out": value}}
				case "c":
					out = sim.Output{Source: "c", Time: in.Time}
				}

				return ticker.Propagate(ctx, out)
			}
			ticker = kernel.NewTicker(router, update)

			err = ticker.Tick(ctx, 0, map[sim.ComponentID]struct{}{"a": {}})

			Expect(err).NotTo(HaveOccurred())
			Expect(order).To(Equal([]sim.ComponentID{"a", "b", "c"}))
		})
	})

	Context("fan-out to two consumers", func() {
		It("delivers the same value to every wired consumer", func() {
			w := wiring.New(map[wiring.Endpoint][]wiring.Endpoint{
				{Component: "src", Port: "out"}: {
					{Component: "x", Port: "in"},
					{Component: "y", Port: "in"},
				},
			})
			router, err := wiring.NewRouter(w)
			Expect(err).NotTo(HaveOccurred())

			received := map[sim.ComponentID]sim.Value{}

			var ticker *kernel.Ticker
			update := func(ctx context.Context, in sim.Input) error {
				if in.Target == "src" {
					return ticker.Propagate(ctx, sim.Output{
						Source: "src", Time: in.Time, Changes: sim.Changes{"out": 7},
					})
				}

				received[in.Target] = in.Changes["in"]
				return ticker.Propagate(ctx, sim.Output{Source: in.Target, Time: in.Time})
			}
			ticker = kernel.NewTicker(router, update)

			err = ticker.Tick(ctx, 0, map[sim.ComponentID]struct{}{"src": {}})

			Expect(err).NotTo(HaveOccurred())
			Expect(received).To(Equal(map[sim.ComponentID]sim.Value{"x": 7, "y": 7}))
		})
	})

	Context("per-tick reply deadline", func() {
		It("fails the tick with ComponentTimeout when a component never replies", func() {
			w := wiring.New(map[wiring.Endpoint][]wiring.Endpoint{
				{Component: "slow", Port: "out"}: nil,
			})
			router, err := wiring.NewRouter(w)
			Expect(err).NotTo(HaveOccurred())

			ticker := kernel.NewTicker(router, func(ctx context.Context, in sim.Input) error {
				return nil
			})
			ticker.SetTimeout(10 * time.Millisecond)

			err = ticker.Tick(ctx, 0, map[sim.ComponentID]struct{}{"slow": {}})

			var timeoutErr *sim.ComponentTimeout
			Expect(err).To(BeAssignableToTypeOf(timeoutErr))
			Expect(err.(*sim.ComponentTimeout).Component).To(Equal(sim.ComponentID("slow")))
		})

		It("does not time out a component that replies within the deadline", func() {
			w := wiring.New(map[wiring.Endpoint][]wiring.Endpoint{
				{Component: "fast", Port: "out"}: nil,
			})
			router, err := wiring.NewRouter(w)
			Expect(err).NotTo(HaveOccurred())

			var stub deviceStub
			ticker := kernel.NewTicker(router, func(ctx context.Context, in sim.Input) error {
				return stub.update(ctx, in)
			})
			stub.ticker = ticker
			stub.output = func(in sim.Input) sim.Output {
				return sim.Output{Source: "fast", Time: in.Time}
			}
			ticker.SetTimeout(50 * time.Millisecond)

			err = ticker.Tick(ctx, 0, map[sim.ComponentID]struct{}{"fast": {}})

			Expect(err).NotTo(HaveOccurred())

			time.Sleep(75 * time.Millisecond)
			Expect(stub.calls).To(HaveLen(1))
		})
	})

	Context("well-formedness violations", func() {
		It("rejects an Output from a component not scheduled this tick", func() {
			w := wiring.New(map[wiring.Endpoint][]wiring.Endpoint{
				{Component: "a", Port: "out"}: nil,
			})
			router, err := wiring.NewRouter(w)
			Expect(err).NotTo(HaveOccurred())

			ticker := kernel.NewTicker(router, func(ctx context.Context, in sim.Input) error {
				return nil
			})

			err = ticker.Propagate(ctx, sim.Output{Source: "a", Time: 0})

			var orderingErr *sim.OrderingError
			Expect(err).To(BeAssignableToTypeOf(orderingErr))
		})
	})
})
