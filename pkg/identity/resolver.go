package identity

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	apperrors "osufetch/pkg/errors"
	"osufetch/pkg/logger"
	"osufetch/pkg/metrics"
	"osufetch/pkg/models"
)

// Lookup resolves a display name against the remote service
type Lookup interface {
	GetUser(ctx context.Context, name string) (*models.User, error)
}

// Resolver resolves display names to numeric ids, cache first. Concurrent
// misses for the same name share a single remote lookup.
type Resolver struct {
	cache   *Cache
	lookup  Lookup
	group   singleflight.Group
	logger  logger.Logger
	metrics *metrics.Recorder
}

// NewResolver creates a Resolver. m may be nil.
func NewResolver(cache *Cache, lookup Lookup, log logger.Logger, m *metrics.Recorder) *Resolver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Resolver{
		cache:   cache,
		lookup:  lookup,
		logger:  log.WithField("component", "resolver"),
		metrics: m,
	}
}

// Resolve returns the numeric id for name. It returns a not_found error when
// the service has no such user or its answer could not be decoded; any other
// error is transient and the name should be retried next round.
func (r *Resolver) Resolve(ctx context.Context, name string) (int, error) {
	if id, ok := r.cache.Get(name); ok {
		r.metrics.IdentityLookup(metrics.LookupCacheHit)
		return id, nil
	}

	v, err, _ := r.group.Do(name, func() (interface{}, error) {
		// another caller may have filled the cache while we waited
		if id, ok := r.cache.Get(name); ok {
			return id, nil
		}
		return r.resolveRemote(ctx, name)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (r *Resolver) resolveRemote(ctx context.Context, name string) (int, error) {
	log := r.logger.WithField("player", name)

	user, err := r.lookup.GetUser(ctx, name)
	switch {
	case err == nil && (user == nil || user.UserID <= 0):
		err = apperrors.NotFound(fmt.Sprintf("user %q", name))
	case apperrors.IsKind(err, apperrors.ErrorTypeParsing):
		err = &apperrors.Error{Type: apperrors.ErrorTypeNotFound, Message: fmt.Sprintf("user %q", name), Err: err}
	}
	if err != nil {
		if apperrors.IsKind(err, apperrors.ErrorTypeNotFound) {
			r.metrics.IdentityLookup(metrics.LookupNotFound)
			log.Warn("Could not retrieve user's id")
		} else {
			r.metrics.IdentityLookup(metrics.LookupError)
			log.WithError(err).Warn("User lookup failed")
		}
		return 0, err
	}

	r.metrics.IdentityLookup(metrics.LookupResolved)
	if err := r.cache.Put(name, user.UserID); err != nil {
		// the id is still usable this run; it will be looked up again after a restart
		log.WithError(err).Warn("Failed to persist resolved id")
	}
	log.DebugWithFields("Resolved user id", map[string]interface{}{"user_id": user.UserID})
	return user.UserID, nil
}
