package thresholds

import (
	"math"
	"strings"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

// Machine types with an industrial baseline row. The table is the safety
// floor and must always be available, whatever the state of the reading
// log.
const (
	TypeOvenHardening    = "oven-hardening"
	TypeMillingVibration = "mesin-frais-getaran"
	TypePneumaticTrainer = "pneumatic-trainer"
	TypeMillingMotor     = "motor-mesin-frais"
)

// industrialBaselines holds fixed severity boundaries per machine type.
// References: ASM Handbook (hardening ovens), ISO 10816-3 (machine
// vibration), ISO 4414 (pneumatics), IEC 60034-1 (rotating machines).
var industrialBaselines = map[string]rntmodels.ThresholdProfile{
	TypeOvenHardening: {
		MachineType: TypeOvenHardening,
		SensorType:  "suhu",
		Normal:      800,
		Caution:     900,
		Warning:     925,
		Critical:    950,
		Unit:        "°C",
	},
	TypeMillingVibration: {
		MachineType: TypeMillingVibration,
		SensorType:  "getaran",
		Normal:      1.0,
		Caution:     2.5,
		Warning:     3.5,
		Critical:    4.5,
		Unit:        "mm/s",
	},
	TypePneumaticTrainer: {
		MachineType: TypePneumaticTrainer,
		SensorType:  "tekanan",
		Normal:      5.0,
		Caution:     6.5,
		Warning:     7.5,
		Critical:    8.0,
		Unit:        "bar",
	},
	TypeMillingMotor: {
		MachineType: TypeMillingMotor,
		SensorType:  "suhu",
		Normal:      50,
		Caution:     70,
		Warning:     80,
		Critical:    90,
		Unit:        "°C",
	},
}

// fallbackBaselines covers sensor types on machine types without a
// dedicated row.
var fallbackBaselines = map[string]rntmodels.ThresholdProfile{
	"suhu":    {SensorType: "suhu", Normal: 40, Caution: 60, Warning: 80, Critical: 100, Unit: "°C"},
	"getaran": {SensorType: "getaran", Normal: 0.5, Caution: 1.5, Warning: 2.5, Critical: 4.0, Unit: "mm/s"},
	"tekanan": {SensorType: "tekanan", Normal: 4.0, Caution: 6.0, Warning: 7.0, Critical: 8.0, Unit: "bar"},
	"current": {SensorType: "current", Normal: 10, Caution: 30, Warning: 60, Critical: 90, Unit: "A"},
}

// Baseline returns the industrial baseline profile for a
// (machine type, sensor type) pair.
func Baseline(machineType, sensorType string) rntmodels.ThresholdProfile {
	if profile, ok := industrialBaselines[machineType]; ok && profile.SensorType == sensorType {
		profile.Basis = rntmodels.BasisIndustrial
		return profile
	}
	if profile, ok := fallbackBaselines[sensorType]; ok {
		profile.MachineType = machineType
		profile.Basis = rntmodels.BasisIndustrial
		return profile
	}
	// Unknown sensor type: boundaries at +Inf so everything classifies
	// as normal until a baseline row is added.
	inf := math.Inf(1)
	return rntmodels.ThresholdProfile{
		MachineType: machineType,
		SensorType:  sensorType,
		Normal:      0,
		Caution:     inf,
		Warning:     inf,
		Critical:    inf,
		Basis:       rntmodels.BasisIndustrial,
	}
}

// MachineTypeFor maps a catalog machine to its baseline row by
// inspecting name and type.
func MachineTypeFor(machine rntmodels.Machine) string {
	name := strings.ToLower(machine.Name)
	kind := strings.ToLower(machine.Type)

	switch {
	case strings.Contains(name, "oven") || strings.Contains(name, "hardening"):
		return TypeOvenHardening
	case (strings.Contains(name, "frais") || strings.Contains(name, "milling")) && strings.Contains(kind, "getaran"):
		return TypeMillingVibration
	case strings.Contains(name, "pneumatic") || strings.Contains(kind, "pneumatic"):
		return TypePneumaticTrainer
	default:
		return TypeMillingMotor
	}
}
