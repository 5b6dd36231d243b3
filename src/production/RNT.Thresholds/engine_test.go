package thresholds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Config"
	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
	interfaces "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Repository/Interfaces"
)

type fakeReadingRepo struct {
	values []float64
	err    error
	calls  int
}

func (f *fakeReadingRepo) CreateReading(ctx context.Context, reading rntmodels.SensorReading) error {
	return nil
}

func (f *fakeReadingRepo) ValidValuesSince(ctx context.Context, sensorType, machineID string, since time.Time) ([]float64, error) {
	f.calls++
	return f.values, f.err
}

func (f *fakeReadingRepo) LatestReadings(ctx context.Context, query interfaces.ReadingQuery) ([]rntmodels.SensorReading, error) {
	return nil, nil
}

func newTestEngine(repo interfaces.ReadingRepository) *Engine {
	return NewEngine(config.ThresholdsConfig{
		HistoryWindow: 30 * 24 * time.Hour,
		MinSamples:    20,
		CacheTTL:      time.Minute,
	}, repo, logger.NewNop())
}

func samples(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestProfileFallsBackToBaselineWithThinHistory(t *testing.T) {
	repo := &fakeReadingRepo{values: samples(850, 5)}
	engine := newTestEngine(repo)

	profile := engine.Profile(context.Background(), TypeOvenHardening, "suhu", "m-1")

	assert.Equal(t, rntmodels.BasisIndustrial, profile.Basis)
	assert.Equal(t, 800.0, profile.Normal)
	assert.Equal(t, 950.0, profile.Critical)
	assert.Equal(t, 5, profile.SampleCount)
}

func TestProfileFallsBackToBaselineOnRepoError(t *testing.T) {
	repo := &fakeReadingRepo{err: errors.New("mongo down")}
	engine := newTestEngine(repo)

	profile := engine.Profile(context.Background(), TypeOvenHardening, "suhu", "m-1")

	assert.Equal(t, rntmodels.BasisIndustrial, profile.Basis)
	assert.Equal(t, 950.0, profile.Critical)
}

func TestBaselineClassification(t *testing.T) {
	repo := &fakeReadingRepo{}
	engine := newTestEngine(repo)

	severity, _ := engine.Classify(context.Background(), TypeOvenHardening, "suhu", "m-1", 930)
	assert.Equal(t, rntmodels.SeverityWarning, severity)

	severity, _ = engine.Classify(context.Background(), TypeOvenHardening, "suhu", "m-1", 780)
	assert.Equal(t, rntmodels.SeverityNormal, severity)

	severity, _ = engine.Classify(context.Background(), TypeOvenHardening, "suhu", "m-1", 950)
	assert.Equal(t, rntmodels.SeverityCritical, severity)
}

func TestHybridProfileTightensBoundaries(t *testing.T) {
	// Stable history around 850 with stddev 10: caution and warning pull
	// in below the baseline, critical stays at the industrial ceiling.
	values := make([]float64, 0, 100)
	for i := 0; i < 50; i++ {
		values = append(values, 840, 860)
	}
	repo := &fakeReadingRepo{values: values}
	engine := newTestEngine(repo)

	profile := engine.Profile(context.Background(), TypeOvenHardening, "suhu", "m-1")

	require.Equal(t, rntmodels.BasisHybrid, profile.Basis)
	assert.Equal(t, 850.0, profile.Normal) // max(800, mean)
	assert.InDelta(t, 860.0, profile.Caution, 0.5)
	assert.InDelta(t, 870.0, profile.Warning, 0.5)
	assert.Equal(t, 950.0, profile.Critical)

	severity := profile.Classify(875)
	assert.Equal(t, rntmodels.SeverityWarning, severity)
}

func TestHybridProfileStaysAscending(t *testing.T) {
	// A mean above the baseline caution boundary would fold the tiers
	// without repair.
	repo := &fakeReadingRepo{values: samples(910, 40)}
	engine := newTestEngine(repo)

	profile := engine.Profile(context.Background(), TypeOvenHardening, "suhu", "m-1")

	assert.Less(t, profile.Normal, profile.Caution)
	assert.Less(t, profile.Caution, profile.Warning)
	assert.Less(t, profile.Warning, profile.Critical)
}

func TestHybridProfileFoldsToStrictAscendingOrder(t *testing.T) {
	// Mean 905 with stddev 2: the blend yields caution 900 below normal
	// 905 and warning 909. The repaired caution must sit strictly between
	// them, not collapse onto normal.
	values := make([]float64, 0, 100)
	for i := 0; i < 50; i++ {
		values = append(values, 903, 907)
	}
	repo := &fakeReadingRepo{values: values}
	engine := newTestEngine(repo)

	profile := engine.Profile(context.Background(), TypeOvenHardening, "suhu", "m-1")

	require.Equal(t, rntmodels.BasisHybrid, profile.Basis)
	assert.Equal(t, 905.0, profile.Normal)
	assert.Less(t, profile.Normal, profile.Caution)
	assert.Less(t, profile.Caution, profile.Warning)
	assert.InDelta(t, 909.0, profile.Warning, 0.5)
	assert.Equal(t, 950.0, profile.Critical)
}

func TestHybridRevertsToBaselineWhenMeanAtCriticalCeiling(t *testing.T) {
	repo := &fakeReadingRepo{values: samples(960, 40)}
	engine := newTestEngine(repo)

	profile := engine.Profile(context.Background(), TypeOvenHardening, "suhu", "m-1")

	assert.Equal(t, rntmodels.BasisIndustrial, profile.Basis)
	assert.Equal(t, 800.0, profile.Normal)
}

func TestProfileCaching(t *testing.T) {
	repo := &fakeReadingRepo{values: samples(850, 40)}
	engine := newTestEngine(repo)

	base := time.Now()
	engine.now = func() time.Time { return base }

	engine.Profile(context.Background(), TypeOvenHardening, "suhu", "m-1")
	engine.Profile(context.Background(), TypeOvenHardening, "suhu", "m-1")
	assert.Equal(t, 1, repo.calls)

	engine.now = func() time.Time { return base.Add(2 * time.Minute) }
	engine.Profile(context.Background(), TypeOvenHardening, "suhu", "m-1")
	assert.Equal(t, 2, repo.calls)
}

func TestConfidenceScore(t *testing.T) {
	// 100 samples and stddev <= 10 maxes out both components.
	assert.InDelta(t, 1.0, confidence(100, 5), 0.001)

	// Half the samples at stddev 20: 0.5*0.6 + 0.5*0.4.
	assert.InDelta(t, 0.5, confidence(50, 20), 0.001)

	// Zero spread counts as fully consistent.
	assert.InDelta(t, 0.4+0.6*0.2, confidence(20, 0), 0.001)
}

func TestUnknownSensorTypeAlwaysNormal(t *testing.T) {
	profile := Baseline(TypeOvenHardening, "flux")

	assert.Equal(t, rntmodels.SeverityNormal, profile.Classify(1e9))
}

func TestMachineTypeFor(t *testing.T) {
	assert.Equal(t, TypeOvenHardening, MachineTypeFor(rntmodels.Machine{Name: "Oven Hardening A"}))
	assert.Equal(t, TypeMillingVibration, MachineTypeFor(rntmodels.Machine{Name: "Mesin Frais 2", Type: "getaran"}))
	assert.Equal(t, TypePneumaticTrainer, MachineTypeFor(rntmodels.Machine{Name: "Pneumatic Trainer"}))
	assert.Equal(t, TypeMillingMotor, MachineTypeFor(rntmodels.Machine{Name: "Something Else"}))
}
