package models

import "time"

// Mapping binds the three aliases of one device.
type Mapping struct {
	Ref       int64     `json:"ref"`
	IMEIRef   int64     `json:"imei_ref"`
	SerialRef int64     `json:"serial_ref"`
	DeviceRef int64     `json:"device_ref"`
	CreatedBy int       `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	// Joined fields, populated by lookups
	IMEI     string `json:"imei,omitempty"`
	SerialNo string `json:"serialNo,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
}

// RefFor returns the whitelist reference held in the slot for t.
func (m *Mapping) RefFor(t AliasType) int64 {
	switch t {
	case AliasIMEI:
		return m.IMEIRef
	case AliasSerial:
		return m.SerialRef
	case AliasDeviceID:
		return m.DeviceRef
	}
	return 0
}

// AliasTriple names a device by its three raw identifiers.
type AliasTriple struct {
	IMEI     string `json:"imei"`
	SerialNo string `json:"serialNo"`
	DeviceID string `json:"deviceId"`
}

// AliasQuery addresses a device by any one of its aliases.
type AliasQuery struct {
	ID   string    `json:"id"`
	Type AliasType `json:"type"`
}

// UpdateMappingRequest rebinds one or more slots of a mapping.
type UpdateMappingRequest struct {
	IMEI     string `json:"imei,omitempty"`
	SerialNo string `json:"serialNo,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
}

// AvailableAliases is the next unassigned serial number and device id.
type AvailableAliases struct {
	SerialNo *WhitelistEntry `json:"serialNo"`
	DeviceID *WhitelistEntry `json:"deviceId"`
}

// DeviceIdentity is the tagged result of resolving any alias to its device.
// IMEI is always set. Mapping is nil only when an IMEI alias has not been
// mapped yet.
type DeviceIdentity struct {
	Alias   *WhitelistEntry `json:"alias"`
	IMEI    *WhitelistEntry `json:"imei"`
	Mapping *Mapping        `json:"mapping,omitempty"`
}
