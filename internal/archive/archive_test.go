// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/decision-engine/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "decisions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDecision(verdict types.Verdict, at time.Time) types.FinalDecision {
	rerank := 0.91
	return types.FinalDecision{
		RunID:         uuid.NewString(),
		SchemaVersion: types.DecisionSchemaVersion,
		Verdict:       verdict,
		Confidence:    0.75,
		Rationale:     "majority verdict " + string(verdict),
		ContributingReports: map[types.AgentName]types.AgentReport{
			types.AgentMarket: {Verdict: verdict, Confidence: 0.8, Rationale: "m", Evidence: []string{"finding: demand"}},
			types.AgentTech:   {Verdict: verdict, Confidence: 0.7, Rationale: "t"},
		},
		StrategyCitations: []types.RetrievedPassage{
			{Text: "focus on B2B", SourceDocumentID: "strategy-2026", RelevanceScore: 0.6, RerankScore: &rerank},
		},
		Timestamp: at,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := sampleDecision(types.VerdictGo, time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Get(ctx, want.RunID)
	require.NoError(t, err)
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.Verdict, got.Verdict)
	assert.Equal(t, want.Confidence, got.Confidence)
	assert.Equal(t, want.ContributingReports, got.ContributingReports)
	assert.Equal(t, want.StrategyCitations, got.StrategyCitations)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
}

func TestGetUnknownRun(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveDuplicateRunFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := sampleDecision(types.VerdictPivot, time.Now())
	require.NoError(t, s.Save(ctx, d))
	assert.Error(t, s.Save(ctx, d))
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	oldest := sampleDecision(types.VerdictNoGo, base)
	middle := sampleDecision(types.VerdictPivot, base.Add(time.Hour))
	newest := sampleDecision(types.VerdictGo, base.Add(2*time.Hour))
	for _, d := range []types.FinalDecision{oldest, newest, middle} {
		require.NoError(t, s.Save(ctx, d))
	}

	got, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, newest.RunID, got[0].RunID)
	assert.Equal(t, middle.RunID, got[1].RunID)
	assert.Equal(t, oldest.RunID, got[2].RunID)

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, newest.RunID, limited[0].RunID)
}

func TestExportYAML(t *testing.T) {
	d := sampleDecision(types.VerdictGo, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, ExportYAML(&buf, []types.FinalDecision{d}))

	out := buf.String()
	assert.Contains(t, out, "run_id: "+d.RunID)
	assert.Contains(t, out, "verdict: GO")
	assert.Contains(t, out, "source_document_id: strategy-2026")
}

func TestSaveOnClosedStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	err := s.Save(context.Background(), sampleDecision(types.VerdictGo, time.Now()))
	assert.Error(t, err)
}
