package estimate

import (
	"slices"
	"strings"

	"github.com/raterudder/payback/pkg/types"
)

var builtinBatteries = []types.BatteryDevice{
	{
		ID:                  "franklin-apower2",
		Name:                "FranklinWH aPower 2",
		UsableKWH:           15,
		NominalKWH:          15,
		RoundTripEfficiency: 0.89,
		MaxPowerKW:          10,
	},
	{
		ID:                  "tesla-powerwall-3",
		Name:                "Tesla Powerwall 3",
		UsableKWH:           13.5,
		NominalKWH:          14.2,
		UsableFraction:      0.96,
		RoundTripEfficiency: 0.9,
		MaxPowerKW:          11.5,
	},
	{
		ID:                  "enphase-5p",
		Name:                "Enphase IQ Battery 5P",
		UsableKWH:           5,
		NominalKWH:          5,
		RoundTripEfficiency: 0.9,
		MaxPowerKW:          3.84,
	},
	{
		ID:                  "generic-16",
		Name:                "Generic 16 kWh",
		UsableKWH:           16,
		RoundTripEfficiency: 0.9,
		MaxPowerKW:          8,
	},
}

// BuiltinBatteries returns the batteries known without a catalog, sorted by
// ID.
func BuiltinBatteries() []types.BatteryDevice {
	out := slices.Clone(builtinBatteries)
	slices.SortFunc(out, func(a, b types.BatteryDevice) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// BuiltinBattery returns the builtin battery with the ID.
func BuiltinBattery(id string) (types.BatteryDevice, bool) {
	for _, b := range builtinBatteries {
		if b.ID == id {
			return b, true
		}
	}
	return types.BatteryDevice{}, false
}
