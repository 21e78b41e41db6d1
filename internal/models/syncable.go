// Package models defines the syncable record types persisted in the local
// store and mirrored to the remote backend.
package models

import "time"

// SyncStatus tracks how a local record relates to the remote copy.
type SyncStatus string

const (
	// SyncStatusPending means the record has local changes awaiting push.
	SyncStatusPending SyncStatus = "pending"
	// SyncStatusSynced means the last known local state matches the remote.
	SyncStatusSynced SyncStatus = "synced"
	// SyncStatusFailed means the last push attempt errored.
	SyncStatusFailed SyncStatus = "failed"
)

// Operation is the remote intent recorded in the sync queue.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Table names of the syncable entities.
const (
	TableUsers         = "users"
	TableScans         = "scans"
	TableDiagnoses     = "diagnoses"
	TableTips          = "tips"
	TableNotifications = "notifications"
)

// SyncTables lists every table that carries the Syncable base columns.
// Outbox operations validate table names against this set before
// interpolating them into SQL.
func SyncTables() []string {
	return []string{TableUsers, TableScans, TableDiagnoses, TableTips, TableNotifications}
}

// IsSyncTable reports whether name is a known syncable table.
func IsSyncTable(name string) bool {
	for _, t := range SyncTables() {
		if t == name {
			return true
		}
	}
	return false
}

// Syncable is the base shape shared by every syncable entity.
//
// LocalID is client-generated and immutable; ServerID stays empty until the
// first successful push. Version is a logical clock: it increases by exactly
// one on every local mutation, including soft deletes, and never resets.
type Syncable struct {
	LocalID    string     `json:"local_id"`
	ServerID   string     `json:"server_id,omitempty"`
	SyncStatus SyncStatus `json:"sync_status"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	DeviceID   string     `json:"device_id"`
	Version    int64      `json:"version"`
}

// Touch registers a local mutation: bumps the version, stamps the device and
// modification time, and flags the record pending.
func (s *Syncable) Touch(deviceID string, now time.Time) {
	s.Version++
	s.UpdatedAt = now
	s.DeviceID = deviceID
	s.SyncStatus = SyncStatusPending
}

// MarkDeleted places a tombstone. Deletion is itself a synchronizable
// mutation: the row stays in the store and the version advances.
func (s *Syncable) MarkDeleted(deviceID string, now time.Time) {
	t := now
	s.DeletedAt = &t
	s.Touch(deviceID, now)
}

// Deleted reports whether the record carries a tombstone.
func (s *Syncable) Deleted() bool {
	return s.DeletedAt != nil
}

// SyncKey returns the record's stable identity for merge bookkeeping.
func (s *Syncable) SyncKey() string { return s.LocalID }

// SyncVersion returns the logical clock used by last-write-wins.
func (s *Syncable) SyncVersion() int64 { return s.Version }

// SyncUpdatedAt returns the modification time used as the LWW tiebreak.
func (s *Syncable) SyncUpdatedAt() time.Time { return s.UpdatedAt }
