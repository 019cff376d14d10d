package ups

import (
	"math"

	"github.com/nerrad567/upsdash-core/internal/nut"
)

// Standard NUT variable names used across the service.
const (
	VarBatteryCharge       = "battery.charge"
	VarBatteryRuntime      = "battery.runtime"
	VarInputVoltage        = "input.voltage"
	VarOutputVoltage       = "output.voltage"
	VarUPSLoad             = "ups.load"
	VarUPSStatus           = "ups.status"
	VarUPSPower            = "ups.power"
	VarUPSPowerNominal     = "ups.power.nominal"
	VarUPSRealPower        = "ups.realpower"
	VarUPSRealPowerNominal = "ups.realpower.nominal"
)

// EstimatePower returns the output power in watts. Reported ups.realpower or
// ups.power is used as is; otherwise ups.load is applied to the nominal power
// and the result is flagged approximate. ok is false when nothing usable is
// reported.
func EstimatePower(vars map[string]nut.Value) (watts float64, approx, ok bool) {
	if w, found := floatVar(vars, VarUPSRealPower); found {
		return w, false, true
	}
	if w, found := floatVar(vars, VarUPSPower); found {
		return w, false, true
	}

	load, found := floatVar(vars, VarUPSLoad)
	if !found {
		return 0, false, false
	}
	nominal, found := floatVar(vars, VarUPSRealPowerNominal)
	if !found {
		nominal, found = floatVar(vars, VarUPSPowerNominal)
	}
	if !found {
		return 0, false, false
	}
	return math.Round(nominal * load / 100), true, true
}

func floatVar(vars map[string]nut.Value, name string) (float64, bool) {
	v, ok := vars[name]
	if !ok {
		return 0, false
	}
	return v.Float()
}
