package models

import "strings"

// AliasType is one of the three identifiers a device carries.
type AliasType string

const (
	AliasIMEI     AliasType = "IMEI"
	AliasSerial   AliasType = "SN"
	AliasDeviceID AliasType = "DeviceID"
)

// ParseAliasType accepts the canonical names case-insensitively.
func ParseAliasType(s string) (AliasType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "imei":
		return AliasIMEI, nil
	case "sn", "serial", "serialno":
		return AliasSerial, nil
	case "deviceid", "device_id":
		return AliasDeviceID, nil
	}
	return "", NewValidationError("type", "unknown alias type %q", s)
}

func (t AliasType) Valid() bool {
	return t == AliasIMEI || t == AliasSerial || t == AliasDeviceID
}

// Stage is a manufacturing milestone. Carton means the device is dispatched.
type Stage string

const (
	StageFlash   Stage = "Flash"
	StageILQC    Stage = "ILQC"
	StageGiftbox Stage = "Giftbox"
	StageCarton  Stage = "Carton"
)

var stageOrder = map[Stage]int{
	StageFlash:   1,
	StageILQC:    2,
	StageGiftbox: 3,
	StageCarton:  4,
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(strings.TrimSpace(s))
	if _, ok := stageOrder[st]; !ok {
		return "", NewValidationError("stage", "unknown stage %q", s)
	}
	return st, nil
}

// Before reports whether s comes earlier in the manufacturing line than other.
func (s Stage) Before(other Stage) bool {
	return stageOrder[s] < stageOrder[other]
}
