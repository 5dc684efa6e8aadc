package models

import "time"

// Batch groups devices under a 12 character structured id.
type Batch struct {
	Ref        int64     `json:"ref"`
	BatchID    string    `json:"batchId"`
	IDPrefix   string    `json:"id_prefix"`
	BatchSize  int       `json:"batch_size"`
	CartonSize int       `json:"cartonSize"`
	CreatedBy  int       `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`

	Cartons []*Carton `json:"cartons,omitempty"`
}

// Carton is a 16 character id of the form batchId-seq.
type Carton struct {
	Ref        int64     `json:"ref"`
	CartonID   string    `json:"cartonId"`
	CartonSize int       `json:"cartonSize"`
	BatchRef   int64     `json:"batch_ref"`
	CreatedBy  int       `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`

	// Joined
	BatchID string `json:"batchId,omitempty"`
}

// CreateBatchRequest asks for enough batches to hold Count whitelisted devices.
type CreateBatchRequest struct {
	IDPrefix   string `json:"id_prefix"`
	BatchSize  int    `json:"batch_size"`
	CartonSize int    `json:"cartonSize"`
	Count      int    `json:"count"`
}

// CreateCartonRequest adds cartons to an existing batch.
type CreateCartonRequest struct {
	BatchID    string `json:"batchId"`
	CartonSize int    `json:"cartonSize,omitempty"`
}

// UpdateBatchRequest is the allowed patch on a batch.
type UpdateBatchRequest struct {
	CartonSize *int `json:"cartonSize,omitempty"`
}

// BatchAllocation is the result of a bulk batch creation.
type BatchAllocation struct {
	Batches []*Batch `json:"batches"`
	Cartons int      `json:"cartonCount"`
}
