package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashbridge/advance-engine/internal/advance"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "advance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(approved bool) *advance.ApprovalRun {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	run := &advance.ApprovalRun{
		ID:              uuid.NewString(),
		UserID:          "user-1",
		BankAccountID:   "acct-1",
		Initiator:       advance.InitiatorUser,
		Created:         created,
		ApprovedAmounts: []float64{},
	}
	if approved {
		payback := created.AddDate(0, 0, 14)
		run.Approved = true
		run.ApprovedAmounts = []float64{25, 50, 75}
		run.DefaultPaybackDate = &payback
	}
	return run
}

func sampleRecords() []advance.NodeRecord {
	return []advance.NodeRecord{
		{
			Seq: 0,
			Log: advance.NodeExecutionLog{
				NodeName:        "EligibilityNode",
				Success:         true,
				SuccessNodeName: "PaydaySolvencyNode",
			},
			Rules: []advance.RuleExecutionLog{
				{RuleName: "accountActive", NodeName: "EligibilityNode", Success: true},
				{RuleName: "hasInitialPull", NodeName: "EligibilityNode", Success: true,
					Data: map[string]any{"initialPullAt": "2026-06-01T00:00:00Z"}},
			},
		},
		{
			Seq: 1,
			Log: advance.NodeExecutionLog{
				NodeName: "PaydaySolvencyNode",
				Success:  true,
				ApprovalResponse: map[string]any{
					"tiers": []any{25.0, 50.0, 75.0},
				},
			},
			Rules: []advance.RuleExecutionLog{
				{RuleName: "paydayWithinWindow", NodeName: "PaydaySolvencyNode", Success: true},
			},
		},
	}
}

func TestAppendAndReadBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := sampleRun(true)
	require.NoError(t, s.InsertRun(ctx, run))
	for _, rec := range sampleRecords() {
		require.NoError(t, s.AppendNodeLog(ctx, run.ID, rec))
	}

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, got.Approved)
	assert.Equal(t, []float64{25, 50, 75}, got.ApprovedAmounts)
	require.NotNil(t, got.DefaultPaybackDate)
	assert.True(t, got.DefaultPaybackDate.Equal(*run.DefaultPaybackDate))
	assert.True(t, got.Created.Equal(run.Created))

	records, err := s.ReadRunLogs(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "EligibilityNode", records[0].Log.NodeName)
	assert.Equal(t, "PaydaySolvencyNode", records[0].Log.SuccessNodeName)
	require.Len(t, records[0].Rules, 2)
	assert.Equal(t, "accountActive", records[0].Rules[0].RuleName)
	assert.Equal(t, "hasInitialPull", records[0].Rules[1].RuleName)
	assert.Equal(t, "2026-06-01T00:00:00Z", records[0].Rules[1].Data["initialPullAt"])
	require.Len(t, records[1].Rules, 1)
}

func TestReadBack_IsByteIdenticalAcrossReads(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := sampleRun(true)
	require.NoError(t, s.InsertRun(ctx, run))
	for _, rec := range sampleRecords() {
		require.NoError(t, s.AppendNodeLog(ctx, run.ID, rec))
	}

	first, err := s.ReadRunLogs(ctx, run.ID)
	require.NoError(t, err)
	second, err := s.ReadRunLogs(ctx, run.ID)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, advance.ErrRunNotFound)
}

func TestRunsByUser_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := sampleRun(false)
	older.Created = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	newer := sampleRun(true)
	newer.Created = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	other := sampleRun(true)
	other.UserID = "someone-else"

	require.NoError(t, s.InsertRun(ctx, older))
	require.NoError(t, s.InsertRun(ctx, newer))
	require.NoError(t, s.InsertRun(ctx, other))

	runs, err := s.RunsByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
}

func TestConcurrentAppends_NoCrossRunInterference(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const n = 8
	runIDs := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		runIDs[i] = uuid.NewString()
		wg.Add(1)
		go func(runID string) {
			defer wg.Done()
			for _, rec := range sampleRecords() {
				if err := s.AppendNodeLog(ctx, runID, rec); err != nil {
					t.Error(err)
					return
				}
			}
		}(runIDs[i])
	}
	wg.Wait()

	for _, runID := range runIDs {
		records, err := s.ReadRunLogs(ctx, runID)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, 0, records[0].Seq)
		assert.Equal(t, 1, records[1].Seq)
	}
}
