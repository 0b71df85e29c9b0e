package telegram

import (
	"sync"
	"time"
)

const (
	// album pages arrive as separate updates; wait this long for the next one
	debounce  = 1200 * time.Millisecond
	maxPixels = 18_000_000
)

type photoBatch struct {
	ChatID       int64
	Key          string // "grp:<mediaGroupID>"
	MediaGroupID string

	mu     sync.Mutex
	images [][]byte
	timer  *time.Timer
}

var batches sync.Map // key -> *photoBatch
