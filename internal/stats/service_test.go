package stats

import (
	"context"
	"testing"
	"time"

	"github.com/seekarr/seekarr/internal/testutil"
)

func TestIncrementAndTotals(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	if err := service.Increment(ctx, "sonarr", MetricHunted, 3); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if err := service.Increment(ctx, "sonarr", MetricHunted, 2); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if err := service.Increment(ctx, "sonarr", MetricUpgraded, 1); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}

	value, err := service.Get(ctx, "sonarr", MetricHunted)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != 5 {
		t.Errorf("expected hunted=5, got %d", value)
	}

	totals, err := service.Totals(ctx, "sonarr")
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if totals[MetricHunted] != 5 || totals[MetricUpgraded] != 1 {
		t.Errorf("unexpected totals: %v", totals)
	}

	value, err = service.Get(ctx, "sonarr", "unknown")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != 0 {
		t.Errorf("unknown metric should read 0, got %d", value)
	}
}

func TestHourlyUsageBuckets(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	if err := service.IncrementHourlyUsage(ctx, "sonarr", 4); err != nil {
		t.Fatalf("IncrementHourlyUsage failed: %v", err)
	}

	usage, err := service.HourlyUsage(ctx, "sonarr")
	if err != nil {
		t.Fatalf("HourlyUsage failed: %v", err)
	}
	if usage != 4 {
		t.Errorf("expected usage 4, got %d", usage)
	}

	// A new hour starts a fresh bucket.
	now = now.Add(time.Hour)
	usage, err = service.HourlyUsage(ctx, "sonarr")
	if err != nil {
		t.Fatalf("HourlyUsage failed: %v", err)
	}
	if usage != 0 {
		t.Errorf("expected fresh bucket, got %d", usage)
	}
}

func TestHourlyCapExceeded(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	if err := service.IncrementHourlyUsage(ctx, "sonarr", 20); err != nil {
		t.Fatalf("IncrementHourlyUsage failed: %v", err)
	}

	exceeded, err := service.HourlyCapExceeded(ctx, "sonarr", 20)
	if err != nil {
		t.Fatalf("HourlyCapExceeded failed: %v", err)
	}
	if !exceeded {
		t.Error("usage at cap should report exceeded")
	}

	exceeded, err = service.HourlyCapExceeded(ctx, "sonarr", 21)
	if err != nil {
		t.Fatalf("HourlyCapExceeded failed: %v", err)
	}
	if exceeded {
		t.Error("usage below cap should not report exceeded")
	}

	// Non-positive cap disables the quota entirely.
	exceeded, err = service.HourlyCapExceeded(ctx, "sonarr", 0)
	if err != nil {
		t.Fatalf("HourlyCapExceeded failed: %v", err)
	}
	if exceeded {
		t.Error("zero cap should never report exceeded")
	}
}

func TestPruneHourlyUsage(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now.Add(-72 * time.Hour) }
	if err := service.IncrementHourlyUsage(ctx, "sonarr", 5); err != nil {
		t.Fatalf("IncrementHourlyUsage failed: %v", err)
	}

	service.now = func() time.Time { return now }
	if err := service.IncrementHourlyUsage(ctx, "sonarr", 2); err != nil {
		t.Fatalf("IncrementHourlyUsage failed: %v", err)
	}

	if err := service.PruneHourlyUsage(ctx, 48*time.Hour); err != nil {
		t.Fatalf("PruneHourlyUsage failed: %v", err)
	}

	usage, err := service.HourlyUsage(ctx, "sonarr")
	if err != nil {
		t.Fatalf("HourlyUsage failed: %v", err)
	}
	if usage != 2 {
		t.Errorf("expected current bucket to survive prune, got %d", usage)
	}
}
