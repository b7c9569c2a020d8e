/*------------------------------------------------------------------------------
* prn.go : GPS L1 C/A PRN (Gold) code generator
*
* component 4.A of the design: the standard G1/G2 LFSR pair with the
* documented phase-select tap per PRN. Deterministic, no state retained
* across calls.
*-----------------------------------------------------------------------------*/
package gnss

import "fmt"

// g2Delay is the ICD-GPS-200 G2 phase-select delay (in chips) for PRN 1..32,
// indexed PRN-1.
var g2Delay = [32]int{
	5, 6, 7, 8, 17, 18, 139, 140, 141, 251,
	252, 254, 255, 256, 257, 258, 469, 470, 471, 472,
	473, 474, 509, 512, 513, 514, 515, 516, 859, 860,
	861, 862,
}

// g1Taps / g2Taps are the feedback tap positions (1-indexed, from the MSB
// end of the 10-bit shift register) for the G1 and G2 polynomials.
var g1Taps = [2]int{3, 10}
var g2Taps = [6]int{2, 3, 6, 8, 9, 10}

// GenerateCACode fills out with one period (CACodeLength chips) of ±1
// values for the given PRN (1..32), generated from first principles for
// every call — the generator is stateless across calls.
func GenerateCACode(prn int, out []int8) error {
	if prn < 1 || prn > 32 {
		return fmt.Errorf("gnss: prn %d out of range [1,32]", prn)
	}
	if len(out) < CACodeLength {
		return fmt.Errorf("gnss: output buffer too small: have %d need %d", len(out), CACodeLength)
	}

	delay := g2Delay[prn-1]

	// Run both 10-bit shift registers (seeded all-ones, i.e. -1 chips) for
	// one CACodeLength-chip period, recording each register's output tap;
	// g2's contribution to the final code is read back "delay" chips behind
	// g1's, wrapping modulo the period.
	var g1, g2 [10]int8
	for i := range g1 {
		g1[i] = -1
		g2[i] = -1
	}
	g1seq := make([]int8, CACodeLength)
	g2seq := make([]int8, CACodeLength)
	for i := range g1seq {
		g1seq[i] = g1[9]
		g2seq[i] = g2[9]

		g1fb := xorChips(g1[g1Taps[0]-1], g1[g1Taps[1]-1])
		g2fb := xorChips(g2[g2Taps[0]-1], g2[g2Taps[1]-1], g2[g2Taps[2]-1],
			g2[g2Taps[3]-1], g2[g2Taps[4]-1], g2[g2Taps[5]-1])

		copy(g1[1:], g1[:9])
		g1[0] = g1fb
		copy(g2[1:], g2[:9])
		g2[0] = g2fb
	}

	for i := 0; i < CACodeLength; i++ {
		out[i] = xorChips(g1seq[i], g2seq[(i+CACodeLength-delay)%CACodeLength])
	}
	return nil
}

// xorChips combines ±1-valued "chips" the way XOR combines bits: the
// product of two ±1 values is +1 when they agree and -1 when they differ,
// which is exactly XOR under the {0,1}->{1,-1} encoding used here.
func xorChips(chips ...int8) int8 {
	p := int8(1)
	for _, c := range chips {
		p *= c
	}
	return p
}

// CACodeTable builds the guard-padded ca_code table used by tracking
// (spec §4.A): index 0 holds the last chip, index 1024 holds the first
// chip, so fractional-sample early/late interpolation windows around
// indices [1, 1023] never address out of range.
func CACodeTable(prn int) ([]float32, error) {
	raw := make([]int8, CACodeLength)
	if err := GenerateCACode(prn, raw); err != nil {
		return nil, err
	}
	table := make([]float32, CACodeLength+2)
	table[0] = float32(raw[CACodeLength-1])
	for i, c := range raw {
		table[i+1] = float32(c)
	}
	table[CACodeLength+1] = float32(raw[0])
	return table, nil
}
