package geolib

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultRetention  = 30 * 24 * time.Hour
	DefaultMaxVisited = 1000

	// a share of entries (in percents) which is evicted on overflow.
	retentionOverflowEvictPercent = 10

	calendarDayLayout = "2006-01-02"
)

type RetentionOptions struct {
	Retention  time.Duration
	MaxEntries int

	// DedupCooldown switches deduplication from calendar days to a
	// sliding window: a visitor is counted again only if this time has
	// passed since the last counted visit.
	DedupCooldown time.Duration

	// Location defines calendar days. Default is time.Local.
	Location *time.Location

	Storage Storage
	Logger  Logger
	Now     func() time.Time
}

type retentionMetadata struct {
	FirstSeen  time.Time       `json:"first_seen"`
	VisitCount uint64          `json:"visit_count"`
	Record     *LocationRecord `json:"record,omitempty"`
}

// RetentionStore keeps visitors which were seen recently to prevent
// duplicate counting.
type RetentionStore struct {
	mutex     sync.Mutex
	entries   map[string]*VisitedEntry
	order     []string
	dedupKeys map[string]time.Time

	retention  time.Duration
	maxEntries int
	cooldown   time.Duration
	location   *time.Location
	storage    Storage
	logger     Logger
	now        func() time.Time
}

// ShouldRecord checks if a visitor of this record should be counted.
// This is check-and-set: a dedup key is registered, so the next call
// with the same identity within the same window returns false.
func (r *RetentionStore) ShouldRecord(record *LocationRecord) bool {
	if record == nil {
		return false
	}

	now := r.now()
	key := r.dedupKey(record.DedupIdentity(), now)

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if registeredAt, ok := r.dedupKeys[key]; ok && r.isDuplicate(registeredAt, now) {
		return false
	}

	r.dedupKeys[key] = now

	return true
}

// Record stores a visit and persists a snapshot.
func (r *RetentionStore) Record(record *LocationRecord) {
	if record == nil {
		return
	}

	now := r.now()
	identity := record.DedupIdentity()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	entry, ok := r.entries[identity]
	if !ok {
		entry = &VisitedEntry{
			Identity:  identity,
			FirstSeen: now,
		}
		r.entries[identity] = entry
		r.order = append(r.order, identity)
	}

	entry.LastSeen = now
	entry.VisitCount++
	entry.LastKnownRecord = record.Copy()

	r.evictOverflow()
	r.persist()
}

// PurgeExpired removes all entries which were not seen within a
// retention window.
func (r *RetentionStore) PurgeExpired() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.purgeExpired(r.now()) {
		r.persist()
	}
}

// Reset drops all entries and dedup keys.
func (r *RetentionStore) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.entries = map[string]*VisitedEntry{}
	r.order = nil
	r.dedupKeys = map[string]time.Time{}

	if err := r.storage.Delete(StorageKeyRetention); err != nil {
		r.logger.StorageError(StorageKeyRetention, err)
	}
}

// Entries returns copies of all entries in insertion order.
func (r *RetentionStore) Entries() []VisitedEntry {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rv := make([]VisitedEntry, 0, len(r.order))

	for _, identity := range r.order {
		entry := *r.entries[identity]
		entry.LastKnownRecord = entry.LastKnownRecord.Copy()
		rv = append(rv, entry)
	}

	return rv
}

func (r *RetentionStore) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.order)
}

func (r *RetentionStore) dedupKey(identity string, now time.Time) string {
	if r.cooldown > 0 {
		return identity
	}

	return identity + "|" + now.In(r.location).Format(calendarDayLayout)
}

func (r *RetentionStore) isDuplicate(registeredAt, now time.Time) bool {
	if r.cooldown > 0 {
		return now.Sub(registeredAt) < r.cooldown
	}

	// calendar day is a part of the key
	return true
}

func (r *RetentionStore) evictOverflow() {
	excess := len(r.order) - r.maxEntries
	if excess <= 0 {
		return
	}

	toEvict := r.maxEntries * retentionOverflowEvictPercent / 100
	if toEvict < excess {
		toEvict = excess
	}

	for _, identity := range r.order[:toEvict] {
		delete(r.entries, identity)
	}

	r.order = append([]string(nil), r.order[toEvict:]...)
}

func (r *RetentionStore) purgeExpired(now time.Time) bool {
	purged := false
	order := r.order[:0]

	for _, identity := range r.order {
		if now.Sub(r.entries[identity].LastSeen) > r.retention {
			delete(r.entries, identity)

			purged = true

			continue
		}

		order = append(order, identity)
	}

	r.order = order

	// dedup keys do not need to outlive a dedup window. For calendar
	// days this is 2 days to cover timezone shifts.
	keyTTL := r.cooldown
	if keyTTL <= 0 {
		keyTTL = 48 * time.Hour
	}

	for k, registeredAt := range r.dedupKeys {
		if now.Sub(registeredAt) > keyTTL {
			delete(r.dedupKeys, k)
		}
	}

	return purged
}

func (r *RetentionStore) persist() {
	r.purgeExpired(r.now())

	snapshot := make([]snapshotEntry, 0, len(r.order))

	for _, identity := range r.order {
		entry := r.entries[identity]

		metadata, err := json.Marshal(retentionMetadata{
			FirstSeen:  entry.FirstSeen,
			VisitCount: entry.VisitCount,
			Record:     entry.LastKnownRecord,
		})
		if err != nil {
			r.logger.StorageError(StorageKeyRetention, fmt.Errorf("cannot encode entry %s: %w", identity, err))

			continue
		}

		snapshot = append(snapshot, snapshotEntry{
			Identity:  identity,
			Timestamp: entry.LastSeen,
			Metadata:  metadata,
		})
	}

	data, err := encodeSnapshot(snapshot)
	if err == nil {
		err = r.storage.Save(StorageKeyRetention, data)
	}

	if err != nil {
		r.logger.StorageError(StorageKeyRetention, err)
	}
}

func (r *RetentionStore) load() {
	snapshot, err := loadSnapshot(r.storage, StorageKeyRetention)

	switch {
	case errors.Is(err, ErrStorageNoData):
		return
	case err != nil:
		r.logger.StorageError(StorageKeyRetention, err)

		return
	}

	for _, v := range snapshot {
		metadata := retentionMetadata{}

		if err := json.Unmarshal(v.Metadata, &metadata); err != nil {
			r.logger.StorageError(StorageKeyRetention,
				fmt.Errorf("cannot decode entry %s: %w", v.Identity, err))

			continue
		}

		if _, ok := r.entries[v.Identity]; ok {
			continue
		}

		r.entries[v.Identity] = &VisitedEntry{
			Identity:        v.Identity,
			FirstSeen:       metadata.FirstSeen,
			LastSeen:        v.Timestamp,
			VisitCount:      metadata.VisitCount,
			LastKnownRecord: metadata.Record,
		}
		r.order = append(r.order, v.Identity)
	}

	now := r.now()

	r.purgeExpired(now)
	r.evictOverflow()

	for _, identity := range r.order {
		lastSeen := r.entries[identity].LastSeen
		r.dedupKeys[r.dedupKey(identity, lastSeen)] = lastSeen
	}
}

// NewRetentionStore creates a store and loads its snapshot. A corrupted
// snapshot is reported to the logger and an empty store is returned.
func NewRetentionStore(opts RetentionOptions) *RetentionStore {
	rv := &RetentionStore{
		entries:    map[string]*VisitedEntry{},
		dedupKeys:  map[string]time.Time{},
		retention:  opts.Retention,
		maxEntries: opts.MaxEntries,
		cooldown:   opts.DedupCooldown,
		location:   opts.Location,
		storage:    opts.Storage,
		logger:     opts.Logger,
		now:        opts.Now,
	}

	if rv.retention <= 0 {
		rv.retention = DefaultRetention
	}

	if rv.maxEntries <= 0 {
		rv.maxEntries = DefaultMaxVisited
	}

	if rv.location == nil {
		rv.location = time.Local
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

	rv.load()

	return rv
}
