package subtitle

import (
	"math/big"
	"time"
	"unicode"
)

const (
	minDuration = 1000 * time.Millisecond
	maxDuration = 8000 * time.Millisecond
	shortLimit  = 1400 * time.Millisecond
	shortFloor  = 1680 * time.Millisecond
	longLimit   = 2900 * time.Millisecond
	minCueGap   = 24 * time.Millisecond

	// DefaultCPS is the assumed comfortable reading speed.
	DefaultCPS = 14.7
)

// AdjustDuration recomputes each cue's end time from how much text it
// carries. Reading time is chars/cps; very short cues get stretched,
// very long ones trimmed, and every cue ends before the next begins.
// Running it twice produces the same output as running it once.
func AdjustDuration(sub *Subtitle, cps float64, extendOnly bool) {
	if cps < 2 {
		cps = 2
	} else if cps > 100 {
		cps = 100
	}

	for i, cue := range sub.Cues {
		chars := 0
		for _, line := range cue.PlainLines {
			chars += countChars(line)
		}
		d := time.Duration(float64(chars) / cps * float64(time.Second))

		switch {
		case d < shortLimit:
			d = time.Duration(float64(d) * 1.2)
			// 1.2 * shortLimit = 1680ms, so the stretched value already
			// meets shortFloor where the next band takes over. The cap
			// keeps the curve flat across the band boundary.
			if d > shortFloor {
				d = shortFloor
			}
		case d < shortFloor:
			d = shortFloor
		case d > longLimit:
			trimmed := time.Duration(float64(d) * 0.96)
			if trimmed < longLimit {
				trimmed = longLimit
			}
			d = trimmed
		}
		if d < minDuration {
			d = minDuration
		} else if d > maxDuration {
			d = maxDuration
		}

		end := cue.Start + d
		if extendOnly && end < cue.End {
			end = cue.End
		}
		if i+1 < len(sub.Cues) {
			limit := sub.Cues[i+1].Start - minCueGap
			if end > limit {
				end = limit
			}
		}
		if end <= cue.Start {
			end = cue.Start + time.Millisecond
		}
		cue.End = end
	}
}

// ChangeFrameRate rescales all cue times from one frame rate to
// another. NTSC drop-frame rates are snapped to their exact fractions
// first so 23.976 -> 24 conversions do not drift.
func ChangeFrameRate(sub *Subtitle, from, to float64) {
	if from == to || from <= 0 || to <= 0 {
		return
	}
	ratio := new(big.Rat).Quo(exactRate(from), exactRate(to))
	for _, cue := range sub.Cues {
		cue.Start = scaleDuration(cue.Start, ratio)
		cue.End = scaleDuration(cue.End, ratio)
	}
	sub.FPS = to
}

func exactRate(fps float64) *big.Rat {
	switch fps {
	case 23.976:
		return big.NewRat(24000, 1001)
	case 29.97:
		return big.NewRat(30000, 1001)
	case 59.94:
		return big.NewRat(60000, 1001)
	}
	return new(big.Rat).SetFloat64(fps)
}

func scaleDuration(d time.Duration, ratio *big.Rat) time.Duration {
	v := new(big.Rat).Mul(new(big.Rat).SetInt64(int64(d)), ratio)
	f, _ := v.Float64()
	return time.Duration(f)
}

// countChars counts the visible runes in a line. Control characters
// and invisible direction or joiner marks do not slow a reader down.
func countChars(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsControl(r) || isInvisible(r) {
			continue
		}
		n++
	}
	return n
}

func isInvisible(r rune) bool {
	switch {
	case r >= 0x200B && r <= 0x200F:
		return true
	case r >= 0x202A && r <= 0x202E:
		return true
	case r == 0x2060, r == 0xFEFF, r == 0x061C:
		return true
	}
	return false
}
