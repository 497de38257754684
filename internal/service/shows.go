package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/apperror"
	"github.com/iliyamo/seat-booking/internal/cache"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// Shows resolves catalog shows, optionally through a cache.  A cache
// failure degrades to a store read; it never fails the request.
//
// Get may serve a copy up to the cache TTL old and is for reads.  Paths
// that write seat state use Fresh, so a show the catalog has taken off
// sale or moved is seen at once.
type Shows struct {
	store repository.Reader
	cache cache.Cache[model.Show]
	ttl   time.Duration
	log   logrus.FieldLogger
}

// NewShows returns a lookup.  A nil cache or non-positive ttl disables
// caching.
func NewShows(store repository.Reader, c cache.Cache[model.Show], ttl time.Duration, log logrus.FieldLogger) *Shows {
	return &Shows{store: store, cache: c, ttl: ttl, log: log}
}

func showKey(id uint64) string { return "show:" + strconv.FormatUint(id, 10) }

// Get returns the show or a NotFound error.
func (s *Shows) Get(ctx context.Context, showID uint64) (model.Show, error) {
	caching := s.cache != nil && s.ttl > 0
	if caching {
		show, ok, err := s.cache.Get(ctx, showKey(showID))
		if err != nil {
			s.log.WithError(err).WithField("show_id", showID).Warn("show cache read failed")
		} else if ok {
			return show, nil
		}
	}

	return s.load(ctx, showID, caching)
}

// Fresh reads the show from the store and refreshes the cached copy.
func (s *Shows) Fresh(ctx context.Context, showID uint64) (model.Show, error) {
	return s.load(ctx, showID, s.cache != nil && s.ttl > 0)
}

func (s *Shows) load(ctx context.Context, showID uint64, caching bool) (model.Show, error) {
	show, err := s.store.GetShow(ctx, showID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Show{}, apperror.Newf(apperror.CodeNotFound, "show %d not found", showID)
	}
	if err != nil {
		return model.Show{}, fail(s.log, "get show", err)
	}

	if caching {
		if err := s.cache.Set(ctx, showKey(showID), show, s.ttl); err != nil {
			s.log.WithError(err).WithField("show_id", showID).Warn("show cache write failed")
		}
	}
	return show, nil
}
