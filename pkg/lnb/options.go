// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lnb

import "time"

// Link and poller defaults
const (
	DefaultRetryCount       = 6
	DefaultReadTimeout      = 300 * time.Millisecond
	DefaultPollInterval     = 700 * time.Millisecond
	DefaultFailureThreshold = 3
	DefaultVoltageSamples   = 5
)

// Options tunes a session. Zero fields take the defaults.
type Options struct {
	BaudRate         int
	RetryCount       int           // readiness waits per response
	ReadTimeout      time.Duration // per readiness wait
	PollInterval     time.Duration
	FailureThreshold int // consecutive poll failures tolerated
	VoltageSamples   int // reads averaged per channel voltage
}

// DefaultOptions returns the controller's stock timing
func DefaultOptions() Options {
	return Options{
		BaudRate:         115200,
		RetryCount:       DefaultRetryCount,
		ReadTimeout:      DefaultReadTimeout,
		PollInterval:     DefaultPollInterval,
		FailureThreshold: DefaultFailureThreshold,
		VoltageSamples:   DefaultVoltageSamples,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BaudRate <= 0 {
		o.BaudRate = d.BaudRate
	}
	if o.RetryCount <= 0 {
		o.RetryCount = d.RetryCount
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = d.FailureThreshold
	}
	if o.VoltageSamples <= 0 {
		o.VoltageSamples = d.VoltageSamples
	}
	return o
}

// ResponseBudget is the longest a single transaction waits for its answer
func (o Options) ResponseBudget() time.Duration {
	o = o.withDefaults()
	return time.Duration(o.RetryCount) * o.ReadTimeout
}
