package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/exceptions-cli/internal/inference"
	"github.com/sells-group/exceptions-cli/internal/model"
	"github.com/sells-group/exceptions-cli/internal/store"
)

// Interface compliance checks.
var (
	_ Evidence    = (*mockEvidence)(nil)
	_ Prompter    = (*mockPrompter)(nil)
	_ Inference   = (*mockInference)(nil)
	_ store.Store = (*mockStore)(nil)
)

type mockEvidence struct{ mock.Mock }

func (m *mockEvidence) Extract(ctx context.Context, docName string) model.Extraction {
	args := m.Called(ctx, docName)
	return args.Get(0).(model.Extraction)
}

type mockPrompter struct{ mock.Mock }

func (m *mockPrompter) Compile(rec model.ExceptionRecord, ev model.Extraction, includeEvidence bool) string {
	args := m.Called(rec, ev, includeEvidence)
	return args.String(0)
}

type mockInference struct{ mock.Mock }

func (m *mockInference) Generate(ctx context.Context, promptText, recordID string) inference.Result {
	args := m.Called(ctx, promptText, recordID)
	return args.Get(0).(inference.Result)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) QueryExceptions(ctx context.Context, filter store.Filter) ([]model.ExceptionRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ExceptionRecord), args.Error(1)
}

func (m *mockStore) ImportExceptions(ctx context.Context, records []model.ExceptionRecord) (int64, error) {
	args := m.Called(ctx, records)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ApplyCorrection(ctx context.Context, w store.CorrectionWrite) (int64, int64, error) {
	args := m.Called(ctx, w)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *mockStore) SaveAnalysis(ctx context.Context, res model.AnalysisResult) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}

func (m *mockStore) ListAnalyses(ctx context.Context, runID string) ([]model.AnalysisResult, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AnalysisResult), args.Error(1)
}

func (m *mockStore) SaveUpdateStats(ctx context.Context, stats model.UpdateStats) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

func (m *mockStore) LatestUpdateStats(ctx context.Context) (*model.UpdateStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UpdateStats), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
