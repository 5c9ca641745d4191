package influxdb

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-persist/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-persist/internal/persistence"
)

func TestTransactionPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := transactionPoint(persistence.RunReport{
		Name:     "audit.create",
		ID:       "run-42",
		Attempts: 3,
		Outcome:  persistence.OutcomeExhausted,
		Duration: 1500 * time.Microsecond,
		Err:      errors.New("database is locked"),
	}, at)

	if p.Name() != measurementTransactions {
		t.Errorf("Name() = %q", p.Name())
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}

	got := map[string]string{}
	for _, tag := range p.TagList() {
		got[tag.Key] = tag.Value
	}
	if got["tx"] != "audit.create" || got["outcome"] != "exhausted" || len(got) != 2 {
		t.Errorf("tags = %v", got)
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["run_id"] != "run-42" {
		t.Errorf("run_id = %v", fields["run_id"])
	}
	if fields["attempts"] != int64(3) || fields["retries"] != int64(2) {
		t.Errorf("attempts/retries = %v/%v", fields["attempts"], fields["retries"])
	}
	if fields["duration_ms"] != 1.5 {
		t.Errorf("duration_ms = %v", fields["duration_ms"])
	}
	if fields["error"] != "database is locked" {
		t.Errorf("error = %v", fields["error"])
	}
}

func TestTransactionPoint_CommittedHasNoError(t *testing.T) {
	p := transactionPoint(persistence.RunReport{Name: "x", Attempts: 1, Outcome: persistence.OutcomeCommitted}, time.Now())
	for _, f := range p.FieldList() {
		if f.Key == "error" {
			t.Error("committed run should not carry an error field")
		}
		if f.Key == "retries" && f.Value != int64(0) {
			t.Errorf("retries = %v, want 0", f.Value)
		}
	}
}

func TestStatsPoint(t *testing.T) {
	p := statsPoint(
		persistence.Stats{Runs: 5, Commits: 4, Failures: 1},
		persistence.PoolStats{Active: 1, Opened: 3, Closed: 2},
		SinkStats{Written: 9, Dropped: 2, WriteErrors: 1},
		time.Now(),
	)

	if p.Name() != measurementRunnerStats {
		t.Errorf("Name() = %q", p.Name())
	}
	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["runs"] != uint64(5) || fields["commits"] != uint64(4) || fields["connections_opened"] != uint64(3) {
		t.Errorf("fields = %v", fields)
	}
	if fields["active_leases"] != int64(1) {
		t.Errorf("active_leases = %v", fields["active_leases"])
	}
	if fields["points_dropped"] != uint64(2) || fields["write_errors"] != uint64(1) {
		t.Errorf("sink fields = %v/%v", fields["points_dropped"], fields["write_errors"])
	}
}

func TestClientOptions_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.InfluxDBConfig
		wantBatch uint
		wantFlush uint
	}{
		{"configured", config.InfluxDBConfig{BatchSize: 50, FlushInterval: 2}, 50, 2000},
		{"zero", config.InfluxDBConfig{}, defaultBatchSize, 10000},
		{"negative", config.InfluxDBConfig{BatchSize: -1, FlushInterval: -5}, defaultBatchSize, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := clientOptions(tt.cfg)
			if got := opts.BatchSize(); got != tt.wantBatch {
				t.Errorf("BatchSize() = %d, want %d", got, tt.wantBatch)
			}
			if got := opts.FlushInterval(); got != tt.wantFlush {
				t.Errorf("FlushInterval() = %d, want %d", got, tt.wantFlush)
			}
		})
	}
}
