package common

// This package contains shared utilities and types used across the qab packages.
// It provides sentinel errors, input validation, error wrapping and refill
// performance tracking.
