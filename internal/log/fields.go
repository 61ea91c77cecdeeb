// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldBatchID   = "batch_id"
	FieldChannelID = "channel_id"
	FieldUserID    = "user_id"
	FieldCode      = "code"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Probe fields
	FieldURL          = "url"
	FieldStatusCode   = "status_code"
	FieldResponseTime = "response_time_ms"
	FieldWorking      = "working"

	// Lock fields
	FieldLockHolder = "lock_holder"
)
