package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/cache"
)

// DefaultSweepInterval is how often expired cache entries and slots are
// dropped while serving.
const DefaultSweepInterval = 10 * time.Minute

type cacheStatsResponse struct {
	Dataset   *cache.Stats `json:"dataset"`
	Processes *cache.Stats `json:"processes"`
}

func statsOf[V any](c *cache.Cache[V]) *cache.Stats {
	if c == nil {
		return nil
	}
	st := c.Stats()
	return &st
}

func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, cacheStatsResponse{
		Dataset:   statsOf(s.loader.Cache()),
		Processes: statsOf(s.processes.Cache()),
	})
}

func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	n := 0
	if c := s.loader.Cache(); c != nil {
		n += c.Clear()
	}
	if c := s.processes.Cache(); c != nil {
		n += c.Clear()
	}
	render.JSON(w, r, map[string]int{"cleared": n})
}

// sweep drops expired cache entries and slots.
func (s *Server) sweep(ctx context.Context) (entries, slots int, err error) {
	if c := s.loader.Cache(); c != nil {
		entries += c.Purge()
	}
	if c := s.processes.Cache(); c != nil {
		entries += c.Purge()
	}
	slots, err = s.store.DeleteExpired(ctx)
	return entries, slots, err
}

// sweepLoop runs sweep every interval until ctx is done.
func (s *Server) sweepLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			entries, slots, err := s.sweep(ctx)
			if err != nil {
				zap.L().Warn("sweep failed", zap.Error(err))
				continue
			}
			zap.L().Debug("sweep", zap.Int("cache_entries", entries), zap.Int("slots", slots))
		}
	}
}
