package logic

// Default control parameters.
const (
	DefaultSetpoint   = 21.8
	DefaultHysteresis = 0.2
)

// Policy is a binary hysteresis policy around a setpoint.
type Policy struct {
	Setpoint   float64
	Hysteresis float64
}

// Decide returns the action to take given the current power state, the
// measured temperature and whether a comfort period is active.
// Outside comfort periods the heater is always turned off.
func (p Policy) Decide(current PowerState, temperature float64, comfort bool) Action {
	switch {
	case !comfort:
		return ActionTurnOff
	case current == PowerOn && temperature > p.Setpoint+p.Hysteresis:
		return ActionTurnOff
	case current != PowerOn && temperature < p.Setpoint-p.Hysteresis:
		return ActionTurnOn
	default:
		return ActionNoChange
	}
}
