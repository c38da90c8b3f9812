package geolib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxMarkers          = 100
	DefaultRehydrateBatchSize  = 5
	DefaultRehydrateBatchDelay = 100 * time.Millisecond
)

type MarkerOptions struct {
	MaxMarkers          int
	Retention           time.Duration
	RehydrateBatchSize  int
	RehydrateBatchDelay time.Duration

	Surface RenderSurface
	Storage Storage
	Logger  Logger
	Now     func() time.Time

	// OnClear is called after explicit Clear.
	OnClear func()
}

type markerMetadata struct {
	Seq    uint64          `json:"seq"`
	Record *LocationRecord `json:"record"`
}

// MarkerCollection is a bounded collection of markers. If collection is
// full, the oldest marker is evicted.
type MarkerCollection struct {
	mutex   sync.Mutex
	markers []Marker
	seq     uint64

	maxMarkers  int
	retention   time.Duration
	batchSize   int
	batchDelay  time.Duration
	surface     RenderSurface
	storage     Storage
	logger      Logger
	now         func() time.Time
	onClear     func()
	newMarkerID func() string
}

// Add creates a marker for the record. Records without valid
// coordinates are silently ignored: ok is false in that case.
func (m *MarkerCollection) Add(record *LocationRecord) (string, bool) {
	if !record.HasLocation() {
		return "", false
	}

	now := m.now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for len(m.markers) >= m.maxMarkers {
		m.evictOldest()
	}

	marker := Marker{
		ID:        m.newMarkerID(),
		Record:    record.Copy(),
		CreatedAt: now,
		Seq:       m.seq,
	}
	m.seq++

	m.insert(marker)
	m.surface.AddMarker(marker)
	m.persist()

	return marker.ID, true
}

// EvictOldest removes the oldest marker.
func (m *MarkerCollection) EvictOldest() (Marker, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	marker, ok := m.evictOldest()
	if ok {
		m.persist()
	}

	return marker, ok
}

// Clear drops all markers. This is a user-initiated reset so OnClear
// hook is executed.
func (m *MarkerCollection) Clear() {
	m.mutex.Lock()

	m.markers = nil

	m.surface.Clear()

	if err := m.storage.Delete(StorageKeyMarkers); err != nil {
		m.logger.StorageError(StorageKeyMarkers, err)
	}

	m.mutex.Unlock()

	if m.onClear != nil {
		m.onClear()
	}
}

// Markers returns markers, the oldest first.
func (m *MarkerCollection) Markers() []Marker {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	rv := make([]Marker, len(m.markers))

	for i, v := range m.markers {
		v.Record = v.Record.Copy()
		rv[i] = v
	}

	return rv
}

func (m *MarkerCollection) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return len(m.markers)
}

// Rehydrate restores markers after restart. Markers are taken from
// the marker snapshot; if it is empty, last known records of visited
// entries are used. Markers older than retention are dropped.
//
// Restored markers are passed to the render surface in small batches
// in background. Returned channel is closed when all batches are
// passed or ctx is closed.
func (m *MarkerCollection) Rehydrate(ctx context.Context, visited []VisitedEntry) <-chan struct{} {
	restored := m.loadSnapshot()
	if len(restored) == 0 {
		restored = m.markersFromVisited(visited)
	}

	now := m.now()
	fresh := make([]Marker, 0, len(restored))

	for _, v := range restored {
		if v.Record.HasLocation() && now.Sub(v.CreatedAt) <= m.retention {
			fresh = append(fresh, v)
		}
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].olderThan(fresh[j])
	})

	m.mutex.Lock()

	pending := make([]Marker, 0, len(fresh))

	for _, v := range fresh {
		if m.indexOf(v.ID) < 0 {
			pending = append(pending, v)
		}
	}

	// only the newest markers fit. Restored markers which do not fit
	// were never shown, so the surface is not notified about them.
	if excess := len(m.markers) + len(pending) - m.maxMarkers; excess > 0 {
		pending = pending[excess:]
	}

	for _, v := range pending {
		m.insert(v)

		if v.Seq >= m.seq {
			m.seq = v.Seq + 1
		}
	}

	m.persist()
	m.mutex.Unlock()

	done := make(chan struct{})

	go m.feedSurface(ctx, pending, done)

	return done
}

func (m *MarkerCollection) feedSurface(ctx context.Context, markers []Marker, done chan<- struct{}) {
	defer close(done)

	for start := 0; start < len(markers); start += m.batchSize {
		if start > 0 {
			timer := time.NewTimer(m.batchDelay)

			select {
			case <-ctx.Done():
				timer.Stop()

				return
			case <-timer.C:
			}
		}

		end := start + m.batchSize
		if end > len(markers) {
			end = len(markers)
		}

		m.mutex.Lock()

		// some markers could be evicted or cleared while we were waiting
		for _, v := range markers[start:end] {
			if m.indexOf(v.ID) >= 0 {
				m.surface.AddMarker(v)
			}
		}

		m.mutex.Unlock()
	}
}

func (m *MarkerCollection) evictOldest() (Marker, bool) {
	if len(m.markers) == 0 {
		return Marker{}, false
	}

	oldest := m.markers[0]
	m.markers = append(m.markers[:0:0], m.markers[1:]...)

	m.surface.RemoveMarker(oldest.ID)

	return oldest, true
}

func (m *MarkerCollection) insert(marker Marker) {
	idx := sort.Search(len(m.markers), func(i int) bool {
		return marker.olderThan(m.markers[i])
	})

	m.markers = append(m.markers, Marker{})
	copy(m.markers[idx+1:], m.markers[idx:])
	m.markers[idx] = marker
}

func (m *MarkerCollection) indexOf(id string) int {
	for i := range m.markers {
		if m.markers[i].ID == id {
			return i
		}
	}

	return -1
}

func (m *MarkerCollection) persist() {
	snapshot := make([]snapshotEntry, 0, len(m.markers))

	for _, v := range m.markers {
		metadata, err := json.Marshal(markerMetadata{
			Seq:    v.Seq,
			Record: v.Record,
		})
		if err != nil {
			m.logger.StorageError(StorageKeyMarkers, fmt.Errorf("cannot encode marker %s: %w", v.ID, err))

			continue
		}

		snapshot = append(snapshot, snapshotEntry{
			Identity:  v.ID,
			Timestamp: v.CreatedAt,
			Metadata:  metadata,
		})
	}

	data, err := encodeSnapshot(snapshot)
	if err == nil {
		err = m.storage.Save(StorageKeyMarkers, data)
	}

	if err != nil {
		m.logger.StorageError(StorageKeyMarkers, err)
	}
}

func (m *MarkerCollection) loadSnapshot() []Marker {
	snapshot, err := loadSnapshot(m.storage, StorageKeyMarkers)

	switch {
	case errors.Is(err, ErrStorageNoData):
		return nil
	case err != nil:
		m.logger.StorageError(StorageKeyMarkers, err)

		return nil
	}

	rv := make([]Marker, 0, len(snapshot))

	for _, v := range snapshot {
		metadata := markerMetadata{}

		if err := json.Unmarshal(v.Metadata, &metadata); err != nil {
			m.logger.StorageError(StorageKeyMarkers,
				fmt.Errorf("cannot decode marker %s: %w", v.Identity, err))

			continue
		}

		rv = append(rv, Marker{
			ID:        v.Identity,
			Record:    metadata.Record,
			CreatedAt: v.Timestamp,
			Seq:       metadata.Seq,
		})
	}

	return rv
}

func (m *MarkerCollection) markersFromVisited(visited []VisitedEntry) []Marker {
	rv := make([]Marker, 0, len(visited))

	for i, v := range visited {
		if v.LastKnownRecord == nil {
			continue
		}

		rv = append(rv, Marker{
			ID:        m.newMarkerID(),
			Record:    v.LastKnownRecord.Copy(),
			CreatedAt: v.LastSeen,
			Seq:       uint64(i),
		})
	}

	return rv
}

func newMarkerID() string {
	// UUIDv7 is time ordered
	return uuid.Must(uuid.NewV7()).String()
}

type noopSurface struct{}

func (noopSurface) AddMarker(Marker) {}

func (noopSurface) RemoveMarker(string) {}

func (noopSurface) Clear() {}

func NewMarkerCollection(opts MarkerOptions) *MarkerCollection {
	rv := &MarkerCollection{
		maxMarkers:  opts.MaxMarkers,
		retention:   opts.Retention,
		batchSize:   opts.RehydrateBatchSize,
		batchDelay:  opts.RehydrateBatchDelay,
		surface:     opts.Surface,
		storage:     opts.Storage,
		logger:      opts.Logger,
		now:         opts.Now,
		onClear:     opts.OnClear,
		newMarkerID: newMarkerID,
	}

	if rv.maxMarkers <= 0 {
		rv.maxMarkers = DefaultMaxMarkers
	}

	if rv.retention <= 0 {
		rv.retention = DefaultRetention
	}

	if rv.batchSize <= 0 {
		rv.batchSize = DefaultRehydrateBatchSize
	}

	if rv.batchDelay <= 0 {
		rv.batchDelay = DefaultRehydrateBatchDelay
	}

	if rv.surface == nil {
		rv.surface = noopSurface{}
	}

	if rv.storage == nil {
		rv.storage = NewMemoryStorage()
	}

	if rv.logger == nil {
		rv.logger = noopLogger{}
	}

	if rv.now == nil {
		rv.now = time.Now
	}

	return rv
}
