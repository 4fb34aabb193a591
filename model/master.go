/*
Copyright 2025 Exportd Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import "time"

// Master record lifecycle states. COMPLETED and FAILED are terminal; the
// worker never transitions out of them.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// MasterRecord is the unit of work: one master produces one output file.
// LockedBy and LockedAt together form an advisory lease; a PROCESSING row
// whose lease is older than the configured lock horizon is eligible for
// re-claim by any worker.
type MasterRecord struct {
	MasterID           int64      `json:"master_id"`
	BusinessCenterCode string     `json:"business_center_code"`
	Priority           int        `json:"priority"`
	Status             string     `json:"status"`
	LockedBy           string     `json:"locked_by,omitempty"`
	LockedAt           *time.Time `json:"locked_at,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}
