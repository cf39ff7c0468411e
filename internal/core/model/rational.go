// Package model holds the data types shared across the transcode core:
// the job policy, the opaque packet/frame handles, time bases, and the
// persisted job record. None of these types own a codec resource directly;
// internal/core/codec defines the handles that do.
package model

import "time"

// Rational is a num/den pair, reduced to lowest terms by Reduce. It is used
// for every time base that flows through the pipeline: a stream's native
// time base, an encoder's requested time base, and the time base a muxer
// actually assigns a stream (which may differ from what was requested).
type Rational struct {
	Num int64
	Den int64
}

// NewRational returns a reduced Rational. A zero denominator is left as-is
// rather than panicking; callers treat Den==0 as "undefined" the way an
// absent PTS is treated as "undefined" rather than zero.
func NewRational(num, den int64) Rational {
	r := Rational{Num: num, Den: den}
	return r.Reduce()
}

// Reduce returns r in lowest terms with a positive denominator.
func (r Rational) Reduce() Rational {
	if r.Den == 0 {
		return r
	}
	if r.Den < 0 {
		r.Num, r.Den = -r.Num, -r.Den
	}
	g := gcd(abs64(r.Num), r.Den)
	if g > 1 {
		r.Num /= g
		r.Den /= g
	}
	return r
}

// Seconds converts a tick count expressed in r to fractional seconds.
func (r Rational) Seconds(ticks int64) float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(ticks) * float64(r.Num) / float64(r.Den)
}

// ToDuration converts a tick count expressed in r to a time.Duration.
func (r Rational) ToDuration(ticks int64) time.Duration {
	return time.Duration(r.Seconds(ticks) * float64(time.Second))
}

// Rescale converts a tick count from r to dst using symmetric (half-to-even)
// rounding, the way TimestampMapper rescales pts/dts/duration between an
// encoder's time base and a muxer's actual time base.
func Rescale(ticks int64, src, dst Rational) int64 {
	if src.Den == 0 || dst.Den == 0 || src == dst {
		return ticks
	}
	// ticks * (src.Num/src.Den) / (dst.Num/dst.Den)
	num := ticks * src.Num * dst.Den
	den := src.Den * dst.Num
	return roundHalfToEven(num, den)
}

func roundHalfToEven(num, den int64) int64 {
	if den < 0 {
		num, den = -num, -den
	}
	neg := num < 0
	if neg {
		num = -num
	}
	q := num / den
	rem := num % den
	twice := rem * 2
	switch {
	case twice < den:
		// round down
	case twice > den:
		q++
	default:
		// exactly half: round to even
		if q%2 != 0 {
			q++
		}
	}
	if neg {
		q = -q
	}
	return q
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Milliseconds is the encoder time base video pipelines default to
// (spec: "video encoders request 1/1000 unless a higher-resolution tick
// is needed").
var Milliseconds = Rational{Num: 1, Den: 1000}

// SampleRateBase returns the 1/sample_rate time base audio encoders request.
func SampleRateBase(sampleRate int) Rational {
	return Rational{Num: 1, Den: int64(sampleRate)}
}
