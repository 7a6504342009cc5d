package common

import (
	"sync"
	"time"
)

// PerformanceMetrics defines the interface for performance tracking
type PerformanceMetrics interface {
	GetMetrics() map[string]interface{}
}

// BaseMetrics provides common fields used across different metrics types
type BaseMetrics struct {
	TotalOperations int64
	SuccessfulOps   int64
	FailedOps       int64
	LastOperation   time.Time
	Mu              sync.RWMutex
}

// UpdateBaseMetrics updates common metrics fields
func (bm *BaseMetrics) UpdateBaseMetrics(success bool) {
	bm.Mu.Lock()
	defer bm.Mu.Unlock()

	bm.TotalOperations++
	if success {
		bm.SuccessfulOps++
	} else {
		bm.FailedOps++
	}
	bm.LastOperation = time.Now()
}

// GetBaseMetrics returns the common metrics as a map
func (bm *BaseMetrics) GetBaseMetrics() map[string]interface{} {
	bm.Mu.RLock()
	defer bm.Mu.RUnlock()

	return map[string]interface{}{
		"total_operations": bm.TotalOperations,
		"successful_ops":   bm.SuccessfulOps,
		"failed_ops":       bm.FailedOps,
		"last_operation":   bm.LastOperation,
	}
}

// RefillMetrics tracks the cost of buffer refills in a batch stream
type RefillMetrics struct {
	BaseMetrics
	ExamplesRead int64
	BatchesBuilt int64
	AverageTime  time.Duration
}

var _ PerformanceMetrics = (*RefillMetrics)(nil)

// UpdateMetrics records one refill that started at start
func (rm *RefillMetrics) UpdateMetrics(start time.Time, success bool, examples, batches int) {
	rm.UpdateBaseMetrics(success)

	duration := time.Since(start)

	rm.Mu.Lock()
	defer rm.Mu.Unlock()

	rm.ExamplesRead += int64(examples)
	rm.BatchesBuilt += int64(batches)

	// Calculate rolling average
	if rm.TotalOperations == 1 {
		rm.AverageTime = duration
	} else {
		rm.AverageTime = (rm.AverageTime*time.Duration(rm.TotalOperations-1) + duration) / time.Duration(rm.TotalOperations)
	}
}

// GetMetrics returns refill metrics as a map
func (rm *RefillMetrics) GetMetrics() map[string]interface{} {
	metrics := rm.GetBaseMetrics()
	rm.Mu.RLock()
	defer rm.Mu.RUnlock()

	metrics["examples_read"] = rm.ExamplesRead
	metrics["batches_built"] = rm.BatchesBuilt
	metrics["average_time"] = rm.AverageTime
	return metrics
}
