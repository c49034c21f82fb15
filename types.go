package tflow

import "github.com/Swind/go-tflow/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the tflow package for most use cases.

// TaskRunner is the FIFO deferral hook every flow transition is posted to
type TaskRunner = core.TaskRunner

// SequencedTaskRunner runs tasks one at a time on a thread pool
type SequencedTaskRunner = core.SequencedTaskRunner

// SingleThreadTaskRunner runs tasks on one dedicated goroutine
type SingleThreadTaskRunner = core.SingleThreadTaskRunner

// ThreadPool is re-exported for type compatibility
type ThreadPool = core.ThreadPool

// Logger and Field are the structured logging interface
type (
	Logger = core.Logger
	Field  = core.Field
)

// Metrics receives flow and task measurements
type Metrics = core.Metrics

// Config describes a pool loaded from YAML
type Config = core.Config

// NewSequencedTaskRunner creates a new SequencedTaskRunner with the given thread pool.
// This is re-exported for advanced users who want to create runners with custom pools.
func NewSequencedTaskRunner(pool ThreadPool) *SequencedTaskRunner {
	return core.NewSequencedTaskRunner(pool)
}

// NewSingleThreadTaskRunner creates a new SingleThreadTaskRunner with a dedicated goroutine.
func NewSingleThreadTaskRunner() *SingleThreadTaskRunner {
	return core.NewSingleThreadTaskRunner()
}

var (
	// F creates a logging Field
	F = core.F
	// LoadConfig decodes a YAML Config
	LoadConfig = core.LoadConfig
	// LoadConfigFile reads a YAML Config from disk
	LoadConfigFile = core.LoadConfigFile
)
