package fm

// Role indexes a voice's four operators. Fixed naming per §4.12.1.
type Role int

const (
	RoleA Role = iota
	RoleB1
	RoleB2
	RoleC
	numRoles
)

// Algorithm is one of the 8 fixed modulation topologies from §4.12.1. Each
// renders all four operators for one sample, in an order that respects the
// modulation dependency, and returns the sum of the algorithm's carriers
// (not yet normalized by carrier count — the voice does that).
type Algorithm int

const (
	Algorithm1 Algorithm = iota + 1
	Algorithm2
	Algorithm3
	Algorithm4
	Algorithm5
	Algorithm6
	Algorithm7
	Algorithm8
)

// CarrierCount returns how many operators are carriers under this
// algorithm, used to normalize the summed output.
func (a Algorithm) CarrierCount() int {
	switch a {
	case Algorithm6:
		return 2
	case Algorithm7:
		return 3
	case Algorithm8:
		return 4
	default:
		return 1
	}
}

// Render steps all four operators by one sample under this algorithm's
// topology and returns the sum of carrier outputs.
func (a Algorithm) Render(ops [numRoles]*Operator, sampleRate, baseFreq float64) float64 {
	opA, opB1, opB2, opC := ops[RoleA], ops[RoleB1], ops[RoleB2], ops[RoleC]

	switch a {
	case Algorithm1:
		// C -> B2 -> B1 -> A, carrier A.
		c := opC.Render(sampleRate, baseFreq, 0)
		b2 := opB2.Render(sampleRate, baseFreq, c*opC.ModIndex)
		b1 := opB1.Render(sampleRate, baseFreq, b2*opB2.ModIndex)
		return opA.Render(sampleRate, baseFreq, b1*opB1.ModIndex)

	case Algorithm2:
		// (C -> B2 -> B1) feeds A, and B2 also feeds A directly. Carrier A.
		c := opC.Render(sampleRate, baseFreq, 0)
		b2 := opB2.Render(sampleRate, baseFreq, c*opC.ModIndex)
		b1 := opB1.Render(sampleRate, baseFreq, b2*opB2.ModIndex)
		return opA.Render(sampleRate, baseFreq, b1*opB1.ModIndex+b2*opB2.ModIndex)

	case Algorithm3:
		// C -> B2 -> A; B1 -> A in parallel. Carrier A.
		c := opC.Render(sampleRate, baseFreq, 0)
		b2 := opB2.Render(sampleRate, baseFreq, c*opC.ModIndex)
		b1 := opB1.Render(sampleRate, baseFreq, 0)
		return opA.Render(sampleRate, baseFreq, b2*opB2.ModIndex+b1*opB1.ModIndex)

	case Algorithm4:
		// C -> B2 -> A; B1 -> A. Carrier A. Renders exactly like alg 3: same
		// topology and the same modulation taps.
		c := opC.Render(sampleRate, baseFreq, 0)
		b2 := opB2.Render(sampleRate, baseFreq, c*opC.ModIndex)
		b1 := opB1.Render(sampleRate, baseFreq, 0)
		return opA.Render(sampleRate, baseFreq, b2*opB2.ModIndex+b1*opB1.ModIndex)

	case Algorithm5:
		// C, B2, B1 each independently modulate A. Carrier A.
		c := opC.Render(sampleRate, baseFreq, 0)
		b2 := opB2.Render(sampleRate, baseFreq, 0)
		b1 := opB1.Render(sampleRate, baseFreq, 0)
		return opA.Render(sampleRate, baseFreq, c*opC.ModIndex+b2*opB2.ModIndex+b1*opB1.ModIndex)

	case Algorithm6:
		// Two independent 2-op stacks: C -> B2 (carrier), B1 -> A (carrier).
		c := opC.Render(sampleRate, baseFreq, 0)
		b2 := opB2.Render(sampleRate, baseFreq, c*opC.ModIndex)
		b1 := opB1.Render(sampleRate, baseFreq, 0)
		a := opA.Render(sampleRate, baseFreq, b1*opB1.ModIndex)
		return a + b2

	case Algorithm7:
		// B2 -> B1 (carrier); A and C stand alone (carriers).
		b2 := opB2.Render(sampleRate, baseFreq, 0)
		b1 := opB1.Render(sampleRate, baseFreq, b2*opB2.ModIndex)
		a := opA.Render(sampleRate, baseFreq, 0)
		c := opC.Render(sampleRate, baseFreq, 0)
		return a + b1 + c

	default: // Algorithm8: all independent carriers.
		a := opA.Render(sampleRate, baseFreq, 0)
		b1 := opB1.Render(sampleRate, baseFreq, 0)
		b2 := opB2.Render(sampleRate, baseFreq, 0)
		c := opC.Render(sampleRate, baseFreq, 0)
		return a + b1 + b2 + c
	}
}

// Valid reports whether a is one of the 8 defined algorithms.
func (a Algorithm) Valid() bool { return a >= Algorithm1 && a <= Algorithm8 }
