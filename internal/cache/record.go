package cache

import (
	"time"

	"github.com/Norgate-AV/packstream/internal/bundler"
)

// Record describes one completed compile cycle
type Record struct {
	// Hash is the bundler's build hash
	Hash string `json:"hash"`

	// Name is the build name, empty for unnamed builds
	Name string `json:"name"`

	Bundler string `json:"bundler"`

	// Timestamp when the cycle finished
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`

	Assets []RecordAsset `json:"assets"`

	Errors   []string `json:"errors,omitempty"`
	Warnings int      `json:"warnings"`

	// Success indicates the cycle finished without errors
	Success bool `json:"success"`
}

type RecordAsset struct {
	Name    string `json:"name"`
	Size    int    `json:"size"`
	Emitted bool   `json:"emitted"`
}

// NewRecord summarizes stats of a cycle of the named build
func NewRecord(name string, stats *bundler.Stats) Record {
	rec := Record{
		Hash:      stats.Hash,
		Name:      name,
		Bundler:   stats.Bundler,
		Timestamp: stats.EndTime,
		Duration:  stats.Duration(),
		Errors:    stats.Errors(),
		Warnings:  len(stats.Warnings()),
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	for _, c := range stats.Compilations() {
		for _, asset := range c.AssetNames() {
			rec.Assets = append(rec.Assets, RecordAsset{
				Name:    asset,
				Size:    c.Assets[asset].Size,
				Emitted: c.Assets[asset].Emitted,
			})
		}
	}

	rec.Success = len(rec.Errors) == 0
	return rec
}

// EmittedBytes is the total size of the assets written in the cycle
func (r Record) EmittedBytes() int64 {
	var total int64
	for _, a := range r.Assets {
		if a.Emitted {
			total += int64(a.Size)
		}
	}

	return total
}
