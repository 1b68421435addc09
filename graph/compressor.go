package graph

import "math"

// Compressor is a stereo-linked feed-forward dynamics compressor with a soft knee
// and automatic makeup gain
type Compressor struct {
	base

	Threshold *Param
	Knee      *Param
	Ratio     *Param
	Attack    *Param
	Release   *Param

	envelope  float64
	reduction float64
}

// NewCompressor creates a compressor with standard defaults
func (c *Context) NewCompressor() *Compressor {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := &Compressor{}
	cp.init(c, cp, 2)
	cp.Threshold = cp.newParam("threshold", -24, -100, 0)
	cp.Knee = cp.newParam("knee", 30, 0, 40)
	cp.Ratio = cp.newParam("ratio", 12, 1, 20)
	cp.Attack = cp.newParam("attack", 0.003, 0, 1)
	cp.Release = cp.newParam("release", 0.25, 0, 1)
	c.register(cp)
	return cp
}

// Reduction returns the current gain reduction in dB, zero or negative
func (cp *Compressor) Reduction() float64 {
	cp.ctx.mu.Lock()
	defer cp.ctx.mu.Unlock()
	return cp.reduction
}

func (cp *Compressor) process(c *Context) {
	cp.channels = cp.mixInputs(c, cp.out)
	threshold := cp.Threshold.compute(c)[0]
	knee := cp.Knee.compute(c)[0]
	ratio := cp.Ratio.compute(c)[0]
	attack := cp.Attack.compute(c)[0]
	release := cp.Release.compute(c)[0]

	rate := float64(c.rate)
	attackCoef := smoothingCoef(attack, rate)
	releaseCoef := smoothingCoef(release, rate)

	// Makeup restores a share of the reduction a full-scale signal would get
	makeup := dbToLinear(0.6 * staticReduction(0, threshold, knee, ratio))

	left, right := cp.out[0], cp.out[1]
	for i := range left {
		peak := max(math.Abs(left[i]), math.Abs(right[i]))
		target := 0.0
		if peak > 1e-9 {
			target = staticReduction(linearToDB(peak), threshold, knee, ratio)
		}
		if target > cp.envelope {
			cp.envelope += (target - cp.envelope) * attackCoef
		} else {
			cp.envelope += (target - cp.envelope) * releaseCoef
		}
		g := dbToLinear(-cp.envelope) * makeup
		left[i] *= g
		right[i] *= g
	}
	cp.reduction = -cp.envelope
}

// staticReduction returns the gain reduction in dB for an input level in dB
func staticReduction(x, threshold, knee, ratio float64) float64 {
	over := x - threshold
	var y float64
	switch {
	case 2*over < -knee:
		y = x
	case knee > 0 && 2*math.Abs(over) <= knee:
		d := over + knee/2
		y = x + (1/ratio-1)*d*d/(2*knee)
	default:
		y = threshold + over/ratio
	}
	return max(0, x-y)
}

func smoothingCoef(seconds, rate float64) float64 {
	if seconds <= 0 {
		return 1
	}
	return 1 - math.Exp(-1/(seconds*rate))
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

func linearToDB(v float64) float64 {
	return 20 * math.Log10(v)
}
