package sampler

import (
	"errors"
	"strconv"
)

var (
	// ErrAllocationFailure means an entry or burst handle could not be created.
	ErrAllocationFailure = errors.New("sampler: allocation failure")

	// ErrWriterClosed means an operation was attempted on a burst whose
	// writer has already been closed.
	ErrWriterClosed = errors.New("sampler: writer closed")

	// ErrInvalidLineSize means the configured line-size log2 is out of range.
	ErrInvalidLineSize = errors.New("sampler: invalid line_size_log2")

	// ErrInvalidPeriod means a configured sample or burst period is invalid
	// for the chosen policy.
	ErrInvalidPeriod = errors.New("sampler: invalid period")

	// ErrMissingOutputPrefix means no output path prefix was configured
	// while bursting is enabled.
	ErrMissingOutputPrefix = errors.New("sampler: missing output path prefix")

	// ErrNoSamplingFunc means a required sample_rnd/burst_rnd handle was
	// not supplied.
	ErrNoSamplingFunc = errors.New("sampler: missing sampling function")
)

// WriterError wraps a failure returned by the underlying trace writer.
// All WriterErrors are fatal to the dispatcher (spec §7): the caller
// gets the error back unmodified, with no local retry.
type WriterError struct {
	Burst int
	Op    string
	Err   error
}

func (e *WriterError) Error() string {
	return "sampler: writer error in burst " + strconv.Itoa(e.Burst) + " during " + e.Op + ": " + e.Err.Error()
}

func (e *WriterError) Unwrap() error { return e.Err }

// ConfigError reports an invalid configuration field found at init.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "sampler: config error on " + e.Field + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }
