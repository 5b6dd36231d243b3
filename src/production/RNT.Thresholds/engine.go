package thresholds

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/montanaflynn/stats"

	config "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Config"
	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
	interfaces "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Repository/Interfaces"
)

// Engine computes adaptive severity thresholds per
// (machine type, sensor type) and classifies readings against them.
// Profiles blend a fixed industrial baseline with rolling sample
// statistics; the baseline is the safety floor and the critical boundary
// is never statistically relaxed.
type Engine struct {
	readings interfaces.ReadingRepository
	logger   *logger.Logger

	historyWindow time.Duration
	minSamples    int
	cacheTTL      time.Duration

	mu    sync.Mutex
	cache map[string]cachedProfile

	now func() time.Time
}

type cachedProfile struct {
	profile  rntmodels.ThresholdProfile
	cachedAt time.Time
}

func NewEngine(cfg config.ThresholdsConfig, readings interfaces.ReadingRepository, log *logger.Logger) *Engine {
	return &Engine{
		readings:      readings,
		logger:        log.WithComponent("thresholds"),
		historyWindow: cfg.HistoryWindow,
		minSamples:    cfg.MinSamples,
		cacheTTL:      cfg.CacheTTL,
		cache:         make(map[string]cachedProfile),
		now:           time.Now,
	}
}

// Profile returns the current threshold profile for the pair, optionally
// scoped to one machine's history. Falls back to the industrial baseline
// when history is thin or the reading log is unreachable.
func (e *Engine) Profile(ctx context.Context, machineType, sensorType, machineID string) rntmodels.ThresholdProfile {
	key := machineType + "|" + sensorType + "|" + machineID

	e.mu.Lock()
	if cached, ok := e.cache[key]; ok && e.now().Sub(cached.cachedAt) < e.cacheTTL {
		e.mu.Unlock()
		return cached.profile
	}
	e.mu.Unlock()

	profile := e.compute(ctx, machineType, sensorType, machineID)

	e.mu.Lock()
	e.cache[key] = cachedProfile{profile: profile, cachedAt: e.now()}
	e.mu.Unlock()

	return profile
}

// Classify returns the severity tier for a value together with the
// profile that produced it.
func (e *Engine) Classify(ctx context.Context, machineType, sensorType, machineID string, value float64) (rntmodels.Severity, rntmodels.ThresholdProfile) {
	profile := e.Profile(ctx, machineType, sensorType, machineID)
	return profile.Classify(value), profile
}

func (e *Engine) compute(ctx context.Context, machineType, sensorType, machineID string) rntmodels.ThresholdProfile {
	baseline := Baseline(machineType, sensorType)

	since := e.now().Add(-e.historyWindow)
	values, err := e.readings.ValidValuesSince(ctx, sensorType, machineID, since)
	if err != nil {
		e.logger.ErrorWithError(err, "reading history unavailable, using industrial baseline")
		return baseline
	}

	if len(values) < e.minSamples {
		baseline.SampleCount = len(values)
		return baseline
	}

	mean, err := stats.Mean(values)
	if err != nil {
		e.logger.ErrorWithError(err, "mean computation failed, using industrial baseline")
		return baseline
	}
	stdDev, err := stats.StandardDeviation(values)
	if err != nil {
		e.logger.ErrorWithError(err, "stddev computation failed, using industrial baseline")
		return baseline
	}

	profile := rntmodels.ThresholdProfile{
		MachineType: machineType,
		SensorType:  sensorType,
		Normal:      maxFloat(baseline.Normal, mean),
		Caution:     minFloat(baseline.Caution, mean+stdDev),
		Warning:     minFloat(baseline.Warning, mean+2*stdDev),
		Critical:    baseline.Critical,
		Basis:       rntmodels.BasisHybrid,
		Confidence:  confidence(len(values), stdDev),
		SampleCount: len(values),
		Unit:        baseline.Unit,
	}

	// The blend can fold tiers over each other when the sample mean sits
	// near the baseline boundaries. Restore strictly ascending order; the
	// critical ceiling stays fixed.
	if profile.Caution <= profile.Normal {
		profile.Caution = math.Nextafter(profile.Normal, math.Inf(1))
	}
	if profile.Warning <= profile.Caution {
		profile.Warning = math.Nextafter(profile.Caution, math.Inf(1))
	}
	if profile.Normal >= profile.Critical || profile.Warning >= profile.Critical {
		e.logger.Warn("sample mean at or above critical ceiling for " + machineType + "/" + sensorType + ", using industrial baseline")
		return baseline
	}

	return profile
}

// confidence scores a hybrid profile by sample count and consistency.
func confidence(sampleCount int, stdDev float64) float64 {
	countScore := minFloat(float64(sampleCount)/100, 1.0)
	consistencyScore := 1.0
	if stdDev > 0 {
		consistencyScore = minFloat(10/stdDev, 1.0)
	}
	return countScore*0.6 + consistencyScore*0.4
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
