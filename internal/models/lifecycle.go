package models

import "time"

// LifeCycle records a stage reached by the device holding IMEIRef.
type LifeCycle struct {
	Ref       int64     `json:"ref"`
	IMEIRef   int64     `json:"imei_ref"`
	Stage     Stage     `json:"stage"`
	CreatedBy int       `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined
	IMEI string `json:"imei,omitempty"`
}

// StageRequest writes a stage for the device behind any alias.
type StageRequest struct {
	ID    string    `json:"id"`
	Type  AliasType `json:"type"`
	Stage Stage     `json:"stage"`
}

// DispatchStatus answers whether a device has been packed for shipment.
type DispatchStatus struct {
	LifeCycle    *LifeCycle `json:"lifeCycle"`
	IsDispatched bool       `json:"isDispatched"`
}

// StageEvent is published to live listeners after every stage write.
type StageEvent struct {
	IMEI      string    `json:"imei"`
	Stage     Stage     `json:"stage"`
	Previous  Stage     `json:"previous,omitempty"`
	Regressed bool      `json:"regressed,omitempty"`
	By        int       `json:"by"`
	At        time.Time `json:"at"`
}
