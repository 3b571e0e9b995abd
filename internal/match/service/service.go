// Package service exposes the match command API. Each method replays the
// aggregate, runs the decider, appends the resulting events to the hash chain,
// and dispatches them to the read-model projectors and the ratings reactor.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/louisbranch/rivalry.club/internal/command"
	"github.com/louisbranch/rivalry.club/internal/event"
	"github.com/louisbranch/rivalry.club/internal/match"
	apperrors "github.com/louisbranch/rivalry.club/internal/platform/errors"
	"github.com/louisbranch/rivalry.club/internal/projection"
	"github.com/louisbranch/rivalry.club/internal/storage"
)

// Notifier delivers match update notifications to connected clients. A nil
// notifier drops them.
type Notifier interface {
	Notify(ctx context.Context, note projection.Notification) error
}

// Deps carries the collaborators a Service needs. Events, Matches, Ratings,
// and Settings are required; the rest default.
type Deps struct {
	Events   storage.EventStore
	Matches  storage.MatchStore
	Ratings  storage.RatingStore
	Settings storage.SettingStore
	Notifier Notifier

	Now     func() time.Time
	NewUUID func() string
}

// Service executes match commands against the event log.
//
// Commands for the same match are serialized on a per-aggregate lock, so the
// optimistic append check only trips when a writer outside this process
// appended concurrently.
type Service struct {
	events   storage.EventStore
	matches  storage.MatchStore
	ratings  storage.RatingStore
	settings storage.SettingStore
	notifier Notifier
	now      func() time.Time
	newUUID  func() string

	matchProjector  *projection.MatchProjector
	ratingProjector *projection.RatingProjector
	reactor         *projection.RatingsReactor

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds a Service from its dependencies.
func New(deps Deps) (*Service, error) {
	if deps.Events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if deps.Matches == nil {
		return nil, fmt.Errorf("match store is required")
	}
	if deps.Ratings == nil {
		return nil, fmt.Errorf("rating store is required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("setting store is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewUUID == nil {
		deps.NewUUID = uuid.NewString
	}
	return &Service{
		events:          deps.Events,
		matches:         deps.Matches,
		ratings:         deps.Ratings,
		settings:        deps.Settings,
		notifier:        deps.Notifier,
		now:             deps.Now,
		newUUID:         deps.NewUUID,
		matchProjector:  projection.NewMatchProjector(deps.Matches, deps.Now),
		ratingProjector: projection.NewRatingProjector(deps.Ratings),
		reactor:         projection.NewRatingsReactor(deps.Matches, deps.Ratings),
		locks:           make(map[string]*sync.Mutex),
	}, nil
}

// lockAggregate serializes command execution per aggregate stream.
func (s *Service) lockAggregate(aggregateUUID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[aggregateUUID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[aggregateUUID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// maxConflictRetries bounds how often a command is re-run after an
// optimistic append conflict. Conflicts only come from writers outside this
// process, so one or two retries normally suffice.
const maxConflictRetries = 3

// execute runs one command through replay, decide, append, and projection.
// It returns the stored events so callers can surface assigned IDs. On an
// append conflict the whole command is re-run against the fresh stream.
func (s *Service) execute(ctx context.Context, matchUUID string, cmdType command.Type, input any) ([]event.Event, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode %s input: %w", cmdType, err)
	}

	unlock := s.lockAggregate(matchUUID)
	defer unlock()

	for attempt := 0; ; attempt++ {
		stored, err := s.tryExecute(ctx, matchUUID, cmdType, payload)
		if err == nil {
			return stored, nil
		}
		var domainErr *apperrors.Error
		if errors.As(err, &domainErr) && domainErr.Code.IsRetryable() && attempt < maxConflictRetries {
			continue
		}
		return nil, err
	}
}

// tryExecute is one replay-decide-append-project pass for execute.
func (s *Service) tryExecute(ctx context.Context, matchUUID string, cmdType command.Type, payload []byte) ([]event.Event, error) {
	stream, err := s.events.EventsFor(ctx, matchUUID)
	if err != nil {
		return nil, fmt.Errorf("replay match %s: %w", matchUUID, err)
	}
	var lastID int64
	if len(stream) > 0 {
		lastID = stream[len(stream)-1].ID
	}

	state := match.Replay(stream)
	decision := match.Decide(state, command.Command{
		AggregateUUID: matchUUID,
		Type:          cmdType,
		PayloadJSON:   payload,
	})
	if len(decision.Rejections) > 0 {
		return nil, rejectionError(matchUUID, decision.Rejections[0])
	}

	stored := make([]event.Event, 0, len(decision.Events))
	for _, evt := range decision.Events {
		appended, err := s.events.Append(ctx, evt, lastID)
		if errors.Is(err, storage.ErrConflict) {
			return nil, apperrors.Wrap(apperrors.CodeConflict,
				fmt.Sprintf("append %s: concurrent write on %s", evt.Type, matchUUID), err)
		}
		if err != nil {
			return nil, fmt.Errorf("append %s: %w", evt.Type, err)
		}
		lastID = appended.ID
		if err := s.dispatch(ctx, appended); err != nil {
			return nil, err
		}
		stored = append(stored, appended)
	}
	return stored, nil
}

// dispatch feeds one stored event through the projectors and the reactor and
// delivers the resulting notification.
func (s *Service) dispatch(ctx context.Context, evt event.Event) error {
	note, err := s.matchProjector.Apply(ctx, evt)
	if err != nil {
		return fmt.Errorf("project match event %d: %w", evt.ID, err)
	}
	if err := s.ratingProjector.Apply(ctx, evt); err != nil {
		return fmt.Errorf("project rating event %d: %w", evt.ID, err)
	}
	if err := s.reactor.React(ctx, evt); err != nil {
		return fmt.Errorf("react to event %d: %w", evt.ID, err)
	}
	if note != nil && s.notifier != nil {
		if err := s.notifier.Notify(ctx, *note); err != nil {
			return fmt.Errorf("notify for event %d: %w", evt.ID, err)
		}
	}
	return nil
}

// rejectionError converts a domain rejection into a typed error. Rejection
// codes are the error codes, so callers match with errors.Is; the aggregate
// UUID rides along as metadata for logs.
func rejectionError(matchUUID string, rejection command.Rejection) error {
	return apperrors.WithMetadata(apperrors.Code(rejection.Code), rejection.Message,
		map[string]string{"match_uuid": matchUUID})
}
