package health

import (
	"context"
	"time"
)

type Component string

const (
	ComponentDatabase Component = "database"
	ComponentValkey   Component = "valkey"
)

type Status string

const (
	StatusOk       Status = "OK"
	StatusError    Status = "ERROR"
	StatusDisabled Status = "DISABLED"
)

type HealthRecord struct {
	Component   Component `json:"component"`
	Status      Status    `json:"status"`
	LastMessage string    `json:"last_message"`
	Latency     string    `json:"latency,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

type IHealthUsecase interface {
	GetStatus(ctx context.Context) ([]HealthRecord, error)
}

// Healthy is true when no component reports an error.
func Healthy(records []HealthRecord) bool {
	for _, r := range records {
		if r.Status == StatusError {
			return false
		}
	}
	return true
}
