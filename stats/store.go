package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"now-playing-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "server_stats"
)

// Store handles persistent storage for stats
type Store struct {
	db       *bolt.DB
	dbPath   string
	stats    *Stats
	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// PersistedStats represents the counters that accumulate across restarts
type PersistedStats struct {
	TotalRequests      int64 `json:"total_requests"`
	NowPlayingRequests int64 `json:"now_playing_requests"`
	HealthRequests     int64 `json:"health_requests"`
	StatsRequests      int64 `json:"stats_requests"`
	OtherRequests      int64 `json:"other_requests"`

	TokenExchanges        int64 `json:"token_exchanges"`
	TokenExchangeFailures int64 `json:"token_exchange_failures"`
	TokenCacheHits        int64 `json:"token_cache_hits"`

	UpstreamPlaying        int64 `json:"upstream_playing"`
	UpstreamPaused         int64 `json:"upstream_paused"`
	UpstreamNothingPlaying int64 `json:"upstream_nothing_playing"`
	UpstreamErrors         int64 `json:"upstream_errors"`

	RateLimitAllowed  int64 `json:"rate_limit_allowed"`
	RateLimitExceeded int64 `json:"rate_limit_exceeded"`

	Status2xx int64 `json:"status_2xx"`
	Status4xx int64 `json:"status_4xx"`
	Status5xx int64 `json:"status_5xx"`

	TotalResponseTime int64 `json:"total_response_time"`
	ResponseCount     int64 `json:"response_count"`
	MinResponseTime   int64 `json:"min_response_time"`
	MaxResponseTime   int64 `json:"max_response_time"`

	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// NewStore opens (or creates) a dedicated BoltDB file for the given stats
func NewStore(dbPath string, s *Stats) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %w", err)
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return &Store{
		db:       db,
		dbPath:   dbPath,
		stats:    s,
		stopChan: make(chan struct{}),
	}, nil
}

// Load reads persisted stats from disk and applies them to the stats set
func (st *Store) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	var persisted PersistedStats
	found := false
	err := st.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return nil
		}

		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &persisted)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	if !found {
		return nil
	}

	s := st.stats
	s.TotalRequests.Store(persisted.TotalRequests)
	s.NowPlayingRequests.Store(persisted.NowPlayingRequests)
	s.HealthRequests.Store(persisted.HealthRequests)
	s.StatsRequests.Store(persisted.StatsRequests)
	s.OtherRequests.Store(persisted.OtherRequests)
	s.TokenExchanges.Store(persisted.TokenExchanges)
	s.TokenExchangeFailures.Store(persisted.TokenExchangeFailures)
	s.TokenCacheHits.Store(persisted.TokenCacheHits)
	s.UpstreamPlayingCount.Store(persisted.UpstreamPlaying)
	s.UpstreamPausedCount.Store(persisted.UpstreamPaused)
	s.UpstreamNothingPlayingCount.Store(persisted.UpstreamNothingPlaying)
	s.UpstreamErrorCount.Store(persisted.UpstreamErrors)
	s.RateLimitAllowed.Store(persisted.RateLimitAllowed)
	s.RateLimitExceeded.Store(persisted.RateLimitExceeded)
	s.Status2xx.Store(persisted.Status2xx)
	s.Status4xx.Store(persisted.Status4xx)
	s.Status5xx.Store(persisted.Status5xx)
	s.totalResponseTime.Store(persisted.TotalResponseTime)
	s.responseCount.Store(persisted.ResponseCount)

	if persisted.MinResponseTime > 0 && persisted.MinResponseTime < noResponseTime {
		s.minResponseTime.Store(persisted.MinResponseTime)
	}
	if persisted.MaxResponseTime > 0 {
		s.maxResponseTime.Store(persisted.MaxResponseTime)
	}
	if !persisted.FirstStarted.IsZero() {
		s.StartTime = persisted.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d, first started: %s)",
		logcolors.LogStats, persisted.TotalRequests, persisted.FirstStarted.Format(time.RFC3339))
	return nil
}

// Save persists current stats to disk
func (st *Store) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.stats
	persisted := PersistedStats{
		TotalRequests:          s.TotalRequests.Load(),
		NowPlayingRequests:     s.NowPlayingRequests.Load(),
		HealthRequests:         s.HealthRequests.Load(),
		StatsRequests:          s.StatsRequests.Load(),
		OtherRequests:          s.OtherRequests.Load(),
		TokenExchanges:         s.TokenExchanges.Load(),
		TokenExchangeFailures:  s.TokenExchangeFailures.Load(),
		TokenCacheHits:         s.TokenCacheHits.Load(),
		UpstreamPlaying:        s.UpstreamPlayingCount.Load(),
		UpstreamPaused:         s.UpstreamPausedCount.Load(),
		UpstreamNothingPlaying: s.UpstreamNothingPlayingCount.Load(),
		UpstreamErrors:         s.UpstreamErrorCount.Load(),
		RateLimitAllowed:       s.RateLimitAllowed.Load(),
		RateLimitExceeded:      s.RateLimitExceeded.Load(),
		Status2xx:              s.Status2xx.Load(),
		Status4xx:              s.Status4xx.Load(),
		Status5xx:              s.Status5xx.Load(),
		TotalResponseTime:      s.totalResponseTime.Load(),
		ResponseCount:          s.responseCount.Load(),
		MinResponseTime:        s.minResponseTime.Load(),
		MaxResponseTime:        s.maxResponseTime.Load(),
		LastSaved:              time.Now(),
		FirstStarted:           s.StartTime,
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	err = st.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return fmt.Errorf("stats bucket not found")
		}
		return b.Put([]byte(statsKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// StartAutoSave begins periodic saving of stats
func (st *Store) StartAutoSave(interval time.Duration) {
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := st.Save(); err != nil {
					log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
				}
			case <-st.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
}

// Close saves stats and closes the database
func (st *Store) Close() error {
	close(st.stopChan)
	st.wg.Wait()

	if err := st.Save(); err != nil {
		log.Warnf("%s Failed to save stats on close: %v", logcolors.LogStats, err)
	} else {
		log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
	}

	return st.db.Close()
}
