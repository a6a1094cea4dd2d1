// Package sinks implements progress consumers: the job store sink that keeps
// live counters on running jobs and a structured log sink.
package sinks
