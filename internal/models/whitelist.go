package models

import "time"

// WhitelistEntry is a raw device identifier. AliasID is unique within Type.
type WhitelistEntry struct {
	Ref       int64     `json:"ref"`
	AliasID   string    `json:"id"`
	IDPrefix  string    `json:"id_prefix,omitempty"`
	Type      AliasType `json:"type"`
	CreatedBy int       `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// WhitelistRequest is one group of a registration call. SN groups carry
// IDPrefix and Count; IMEI and DeviceID groups carry explicit IDs.
type WhitelistRequest struct {
	Type     AliasType `json:"type"`
	IDPrefix string    `json:"id_prefix,omitempty"`
	Count    int       `json:"count,omitempty"`
	IDs      []string  `json:"ids,omitempty"`
}
