package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/AzielCF/az-publish/publishing/domain/monitoring"
)

// MemoryStatsStore keeps counters for a single node.
type MemoryStatsStore struct {
	mu sync.RWMutex

	counters  map[string]int64
	byChannel map[string]int64
	runs      map[string]monitoring.RunSummary // key: server id
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{
		counters:  make(map[string]int64),
		byChannel: make(map[string]int64),
		runs:      make(map[string]monitoring.RunSummary),
	}
}

func (s *MemoryStatsStore) IncrementStat(ctx context.Context, key string) error {
	return s.IncrementStatBy(ctx, key, 1)
}

func (s *MemoryStatsStore) IncrementStatBy(ctx context.Context, key string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key] += n
	return nil
}

func (s *MemoryStatsStore) IncrementChannelStat(ctx context.Context, channel, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byChannel[channel+":"+outcome]++
	return nil
}

func (s *MemoryStatsStore) ReportRun(ctx context.Context, summary monitoring.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[summary.ServerID] = summary
	return nil
}

func (s *MemoryStatsStore) GetGlobalStats(ctx context.Context) (monitoring.GlobalStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := monitoring.GlobalStats{
		Counters:  make(map[string]int64, len(s.counters)),
		ByChannel: make(map[string]int64, len(s.byChannel)),
	}
	for k, v := range s.counters {
		stats.Counters[k] = v
	}
	for k, v := range s.byChannel {
		stats.ByChannel[k] = v
	}
	for _, run := range s.runs {
		stats.LastRuns = append(stats.LastRuns, run)
	}
	sortRuns(stats.LastRuns)
	return stats, nil
}

func sortRuns(runs []monitoring.RunSummary) {
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}
