package nexus

import "time"

// calibrationSink defeats dead-code elimination of the calibration loop.
var calibrationSink uint64

// measureFreqGHz estimates the rate of the calibration counter in ticks per
// nanosecond by timing a fixed number of loop iterations against the
// monotonic clock. Endpoint threads use the value to convert counter deltas
// into wall time for latency accounting.
func measureFreqGHz() float64 {
	const iters = 1 << 22

	acc := calibrationSink | 1
	start := time.Now()
	for i := 0; i < iters; i++ {
		acc = acc*6364136223846793005 + 1442695040888963407
	}
	elapsed := time.Since(start)
	calibrationSink = acc

	ns := float64(elapsed.Nanoseconds())
	if ns <= 0 {
		return 1.0
	}
	return iters / ns
}
