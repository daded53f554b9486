package risk

// FallbackStopPct is the stop distance used when ATR is unavailable.
const FallbackStopPct = 0.05

// InitialStop places a long stop mult ATRs below entry, or
// FallbackStopPct below it when atr is not positive.
func InitialStop(entry, atr, mult float64) float64 {
	if atr > 0 {
		return entry - atr*mult
	}
	return entry * (1 - FallbackStopPct)
}

// TrailingStop trails the highest price since entry by mult ATRs and
// never drops below floor. With no ATR the floor is returned.
func TrailingStop(highest, atr, mult, floor float64) float64 {
	if atr <= 0 {
		return floor
	}
	stop := highest - atr*mult
	if stop < floor {
		return floor
	}
	return stop
}
