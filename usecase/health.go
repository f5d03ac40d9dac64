package usecase

import (
	"context"
	"time"

	"github.com/AzielCF/az-publish/core/database"
	"github.com/AzielCF/az-publish/domains/health"
	"gorm.io/gorm"
)

const healthCheckTimeout = 3 * time.Second

// Pinger is satisfied by the Valkey client.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthService struct {
	db     *gorm.DB
	valkey Pinger
}

// NewHealthService checks the database and, when configured, Valkey. valkey may be nil.
func NewHealthService(db *gorm.DB, valkey Pinger) health.IHealthUsecase {
	return &healthService{db: db, valkey: valkey}
}

func (s *healthService) GetStatus(ctx context.Context) ([]health.HealthRecord, error) {
	records := []health.HealthRecord{
		check(ctx, health.ComponentDatabase, func(ctx context.Context) error {
			return database.Ping(ctx, s.db)
		}),
	}

	if s.valkey == nil {
		records = append(records, health.HealthRecord{
			Component:   health.ComponentValkey,
			Status:      health.StatusDisabled,
			LastMessage: "Valkey is not enabled, using in-memory stats",
			LastChecked: time.Now(),
		})
	} else {
		records = append(records, check(ctx, health.ComponentValkey, s.valkey.Ping))
	}
	return records, nil
}

func check(ctx context.Context, component health.Component, ping func(context.Context) error) health.HealthRecord {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	started := time.Now()
	err := ping(ctx)
	record := health.HealthRecord{
		Component:   component,
		Status:      health.StatusOk,
		LastMessage: "Connection successful",
		Latency:     time.Since(started).Round(time.Microsecond).String(),
		LastChecked: started,
	}
	if err != nil {
		record.Status = health.StatusError
		record.LastMessage = err.Error()
	}
	return record
}
