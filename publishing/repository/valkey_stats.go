package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/AzielCF/az-publish/infrastructure/valkey"
	"github.com/AzielCF/az-publish/publishing/domain/monitoring"
	"github.com/sirupsen/logrus"
)

// ValkeyStatsStore implements monitoring.StatsStore on Valkey hashes so every node
// running the engine reports into the same counters.
type ValkeyStatsStore struct {
	client *valkey.Client
	prefix string
}

func NewValkeyStatsStore(client *valkey.Client) *ValkeyStatsStore {
	return &ValkeyStatsStore{
		client: client,
		prefix: client.Key("publish") + ":",
	}
}

func (s *ValkeyStatsStore) countersKey() string { return s.prefix + "stats" }
func (s *ValkeyStatsStore) channelsKey() string { return s.prefix + "channels" }
func (s *ValkeyStatsStore) runsKey() string     { return s.prefix + "runs" }

func (s *ValkeyStatsStore) IncrementStat(ctx context.Context, key string) error {
	return s.IncrementStatBy(ctx, key, 1)
}

func (s *ValkeyStatsStore) IncrementStatBy(ctx context.Context, key string, n int64) error {
	cmd := s.client.Inner().B().Hincrby().Key(s.countersKey()).Field(key).Increment(n).Build()
	return s.client.Inner().Do(ctx, cmd).Error()
}

func (s *ValkeyStatsStore) IncrementChannelStat(ctx context.Context, channel, outcome string) error {
	cmd := s.client.Inner().B().Hincrby().Key(s.channelsKey()).Field(channel + ":" + outcome).Increment(1).Build()
	return s.client.Inner().Do(ctx, cmd).Error()
}

func (s *ValkeyStatsStore) ReportRun(ctx context.Context, summary monitoring.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	cmd := s.client.Inner().B().Hset().
		Key(s.runsKey()).
		FieldValue().
		FieldValue(summary.ServerID, string(data)).
		Build()
	return s.client.Inner().Do(ctx, cmd).Error()
}

func (s *ValkeyStatsStore) GetGlobalStats(ctx context.Context) (monitoring.GlobalStats, error) {
	counters, err := s.readCounters(ctx, s.countersKey())
	if err != nil {
		return monitoring.GlobalStats{}, err
	}
	byChannel, err := s.readCounters(ctx, s.channelsKey())
	if err != nil {
		return monitoring.GlobalStats{}, err
	}

	entries, err := s.client.Inner().Do(ctx, s.client.Inner().B().Hgetall().Key(s.runsKey()).Build()).AsStrMap()
	if err != nil && !valkey.IsNil(err) {
		return monitoring.GlobalStats{}, err
	}

	stats := monitoring.GlobalStats{
		Counters:   counters,
		ByChannel:  byChannel,
		SharedView: true,
	}
	for serverID, raw := range entries {
		var run monitoring.RunSummary
		if err := json.Unmarshal([]byte(raw), &run); err != nil {
			logrus.WithError(err).WithField("server_id", serverID).Warn("[STATS] Ignoring malformed run summary")
			continue
		}
		stats.LastRuns = append(stats.LastRuns, run)
	}
	sortRuns(stats.LastRuns)
	return stats, nil
}

func (s *ValkeyStatsStore) readCounters(ctx context.Context, key string) (map[string]int64, error) {
	entries, err := s.client.Inner().Do(ctx, s.client.Inner().B().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil && !valkey.IsNil(err) {
		return nil, err
	}
	res := make(map[string]int64, len(entries))
	for field, raw := range entries {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s/%s: %w", key, field, err)
		}
		res[field] = n
	}
	return res, nil
}
