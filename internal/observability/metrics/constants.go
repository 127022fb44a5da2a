// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Submission outcomes
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// File results
const (
	FileStored   = "stored"
	FileRejected = "rejected"
	FileError    = "error"
)

// Histogram bucket parameters
const (
	// BucketStart1ms is the starting bucket for 1ms histograms
	BucketStart1ms = 0.001
	// BucketStart100B is the starting bucket for 100 byte histograms
	BucketStart100B = 100.0
	// BucketStart1KB is the starting bucket for 1KB histograms
	BucketStart1KB = 1024.0

	BucketFactor2  = 2
	BucketFactor4  = 4
	BucketFactor10 = 10

	BucketCount6  = 6
	BucketCount10 = 10
	BucketCount12 = 12
	BucketCount15 = 15
)

// ShutdownTimeout bounds graceful server shutdown
const ShutdownTimeout = 5 * time.Second
