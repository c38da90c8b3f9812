package geolib

import (
	"encoding/json"
	"sync"
	"time"
)

// UsageStats tracks how a lookup service behaves: how often it is used,
// how often it fails and how often its answer is the one which is
// finally taken.
type UsageStats struct {
	Name string

	mutex        sync.Mutex
	lastUsed     time.Time
	lastWon      time.Time
	successCount uint64
	failureCount uint64
	winCount     uint64
}

func (u *UsageStats) Used(err error) {
	now := time.Now()

	u.mutex.Lock()
	defer u.mutex.Unlock()

	u.lastUsed = now

	if err == nil {
		u.successCount++
	} else {
		u.failureCount++
	}
}

func (u *UsageStats) Won() {
	now := time.Now()

	u.mutex.Lock()
	defer u.mutex.Unlock()

	u.lastWon = now
	u.winCount++
}

func (u *UsageStats) MarshalJSON() ([]byte, error) {
	var lastUsedTime, lastWonTime int64

	u.mutex.Lock()

	if !u.lastUsed.IsZero() {
		lastUsedTime = u.lastUsed.Unix()
	}

	if !u.lastWon.IsZero() {
		lastWonTime = u.lastWon.Unix()
	}

	rawStruct := struct {
		Name         string `json:"name"`
		LastUsed     int64  `json:"last_used"`
		LastWon      int64  `json:"last_won"`
		SuccessCount uint64 `json:"success_count"`
		FailureCount uint64 `json:"failure_count"`
		WinCount     uint64 `json:"win_count"`
	}{
		Name:         u.Name,
		LastUsed:     lastUsedTime,
		LastWon:      lastWonTime,
		SuccessCount: u.successCount,
		FailureCount: u.failureCount,
		WinCount:     u.winCount,
	}

	u.mutex.Unlock()

	return json.Marshal(&rawStruct)
}
