package server

import "sync"

// LatestCell holds the most recently ingested reading. Writers replace the
// whole value; readers always observe either the prior or the new reading,
// never a mix. Concurrent writers race last-write-wins.
type LatestCell struct {
	mu      sync.RWMutex
	reading Reading
}

func NewLatestCell(initial Reading) *LatestCell {
	return &LatestCell{reading: initial}
}

func (cell *LatestCell) Set(reading Reading) {
	cell.mu.Lock()
	cell.reading = reading
	cell.mu.Unlock()
}

func (cell *LatestCell) Get() Reading {
	cell.mu.RLock()
	defer cell.mu.RUnlock()
	return cell.reading
}
