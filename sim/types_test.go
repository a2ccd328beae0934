package sim_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dls-controls/tickit/sim"
)

var _ = Describe("Changes", func() {
	It("merges with the right-hand side taking precedence", func() {
		a := sim.Changes{"x": 1, "y": 2}
		b := sim.Changes{"y": 3, "z": 4}

		merged := a.Merge(b)

		Expect(merged).To(Equal(sim.Changes{"x": 1, "y": 3, "z": 4}))
	})

	It("clones without aliasing the original map", func() {
		a := sim.Changes{"x": 1}
		b := a.Clone()
		b["x"] = 2

		Expect(a["x"]).To(Equal(sim.Value(1)))
	})
})

var _ = Describe("ValueEqual", func() {
	It("treats equal comparable values as equal", func() {
		Expect(sim.ValueEqual(sim.Value(3), sim.Value(3))).To(BeTrue())
	})

	It("treats differing comparable values as unequal", func() {
		Expect(sim.ValueEqual(sim.Value(3), sim.Value(4))).To(BeFalse())
	})

	It("falls back to deep equality for non-comparable values", func() {
		a := sim.Value([]int{1, 2, 3})
		b := sim.Value([]int{1, 2, 3})

		Expect(sim.ValueEqual(a, b)).To(BeTrue())
	})

	It("treats nil as equal only to nil", func() {
		Expect(sim.ValueEqual(nil, nil)).To(BeTrue())
		Expect(sim.ValueEqual(nil, sim.Value(0))).To(BeFalse())
	})
})
