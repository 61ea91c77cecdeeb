// SPDX-License-Identifier: MIT

package types

// TestResult is the outcome of a single connectivity probe.
//
// Failure to reach a stream is an expected outcome, not an error: probes
// always produce a TestResult, never panic or return reachability errors.
type TestResult struct {
	Working        bool   `json:"working"`
	StatusCode     *int   `json:"statusCode"`
	ResponseTimeMs int64  `json:"responseTime"`
	ErrorReason    string `json:"error,omitempty"`
	Message        string `json:"message,omitempty"`
}

// ChannelResult is a per-channel entry in a batch test report.
type ChannelResult struct {
	ChannelID   string `json:"channelId"`
	ChannelName string `json:"channelName,omitempty"`
	NotFound    bool   `json:"notFound,omitempty"`
	TestResult
}
