// Package syncer implements the reconciliation engine: draining the outbox
// to the remote backend and merging pulled scopes into the local cache.
package syncer

import (
	"sort"
	"time"
)

// syncRow is what the merge needs from a record: a stable key, the logical
// clock, the tiebreak timestamp, and the display ordering key.
type syncRow interface {
	SyncKey() string
	SyncVersion() int64
	SyncUpdatedAt() time.Time
	CreatedTime() time.Time
}

// Origin tags where a merged row survives from.
type Origin string

const (
	// OriginRemote marks a row the server also has. The row content is the
	// last-write-wins winner between the two copies.
	OriginRemote Origin = "remote"

	// OriginLocalOnly marks a row the server has never seen. It always
	// survives the merge; a pending push will carry it up later.
	OriginLocalOnly Origin = "local-only"
)

// Tagged is one merged row with its provenance.
type Tagged[T syncRow] struct {
	Row    T
	Origin Origin

	// RemoteWon is set when a local counterpart existed and lost
	// last-write-wins. The caller discards any queued intents for such a
	// row: the remote copy superseded whatever the queue was about to push.
	RemoteWon bool
}

// remoteWins applies last-write-wins: version is the primary clock,
// updated_at breaks ties. A full tie keeps the local copy, which makes
// re-merging identical input a no-op.
func remoteWins[T syncRow](remote, local T) bool {
	if remote.SyncVersion() != local.SyncVersion() {
		return remote.SyncVersion() > local.SyncVersion()
	}
	return remote.SyncUpdatedAt().After(local.SyncUpdatedAt())
}

// merge reconciles a pulled remote scope with the local cache. Pure and
// I/O-free: remote rows win or lose per last-write-wins, local-only rows
// survive untouched, and the result is ordered by creation time descending
// (key ascending on ties) so repeated merges of the same input are
// byte-identical.
func merge[T syncRow](remote, local []T) []Tagged[T] {
	localByKey := make(map[string]T, len(local))
	for _, l := range local {
		localByKey[l.SyncKey()] = l
	}

	out := make([]Tagged[T], 0, len(remote)+len(local))

	for _, r := range remote {
		tagged := Tagged[T]{Row: r, Origin: OriginRemote}
		if l, ok := localByKey[r.SyncKey()]; ok {
			if remoteWins(r, l) {
				tagged.RemoteWon = true
			} else {
				tagged.Row = l
			}
			delete(localByKey, r.SyncKey())
		}
		out = append(out, tagged)
	}

	for _, l := range local {
		if _, ok := localByKey[l.SyncKey()]; ok {
			out = append(out, Tagged[T]{Row: l, Origin: OriginLocalOnly})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Row.CreatedTime(), out[j].Row.CreatedTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].Row.SyncKey() < out[j].Row.SyncKey()
	})
	return out
}
