package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/metrics"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/repository"
	"github.com/sakif/college-forum/internal/session"
)

// optimisticTTL bounds how long a locally recorded vote is trusted over a
// fresh read of the article.
const optimisticTTL = 30 * time.Second

// VoteState is a principal's vote on an article after CastVote.
type VoteState struct {
	ArticleID   string         `json:"articleId"`
	PrincipalID string         `json:"principalId"`
	Vote        model.VoteType `json:"vote"`
}

// VoteService turns vote clicks into set-membership deltas.
//
// RAPID CLICKS:
// Two clicks on "upvote" must cancel out even if the second click happens
// before the first write has come back through the live query. Calls for
// the same (article, principal) pair are serialized, and each call starts
// from the state the previous call left behind rather than from a possibly
// stale snapshot.
type VoteService struct {
	articles ArticleRepository
	logger   *slog.Logger
	now      func() time.Time

	locks keyedMutex

	mu         sync.Mutex
	optimistic map[string]optimisticVote
}

type optimisticVote struct {
	vote model.VoteType
	at   time.Time
}

func NewVoteService(articles ArticleRepository, logger *slog.Logger) *VoteService {
	return &VoteService{
		articles:   articles,
		logger:     logger,
		now:        time.Now,
		optimistic: make(map[string]optimisticVote),
	}
}

// CastVote toggles the principal's vote of the given type:
//   - voting the type already held withdraws it,
//   - otherwise the vote is added and the opposite vote is withdrawn.
//
// The principal never ends up in both sets.
func (s *VoteService) CastVote(ctx context.Context, articleID string, voteType model.VoteType) (VoteState, error) {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok {
		return VoteState{}, apperror.AuthRequired("vote")
	}
	if voteType != model.VoteUp && voteType != model.VoteDown {
		return VoteState{}, apperror.ValidationFailed("type", "vote type must be upvote or downvote")
	}

	key := articleID + "/" + p.ID
	unlock := s.locks.Lock(key)
	defer unlock()

	current, err := s.baseVote(ctx, key, articleID, p.ID)
	if err != nil {
		metrics.VotesTotal.WithLabelValues(string(voteType), "error").Inc()
		return VoteState{}, err
	}

	delta := repository.VoteDelta{PrincipalID: p.ID}
	next := voteType
	if current == voteType {
		delta.RemoveFrom = []model.VoteType{voteType}
		next = model.VoteNone
	} else {
		delta.AddTo = voteType
		delta.RemoveFrom = []model.VoteType{voteType.Opposite()}
	}

	if err := s.articles.ApplyVote(ctx, articleID, delta); err != nil {
		s.forget(key)
		metrics.VotesTotal.WithLabelValues(string(voteType), "error").Inc()
		s.logger.Warn("vote failed",
			slog.String("articleID", articleID),
			slog.String("principalID", p.ID),
			slog.String("error", err.Error()),
		)
		return VoteState{}, err
	}

	s.remember(key, next)
	metrics.VotesTotal.WithLabelValues(string(voteType), "ok").Inc()
	return VoteState{ArticleID: articleID, PrincipalID: p.ID, Vote: next}, nil
}

// baseVote is the vote the next delta is computed from: the optimistic
// result of the previous call if recent, else the stored article.
func (s *VoteService) baseVote(ctx context.Context, key, articleID, principalID string) (model.VoteType, error) {
	s.mu.Lock()
	ov, ok := s.optimistic[key]
	s.mu.Unlock()
	if ok && s.now().Sub(ov.at) < optimisticTTL {
		return ov.vote, nil
	}

	article, err := s.articles.Get(ctx, articleID)
	if err != nil {
		return model.VoteNone, err
	}
	return article.VoteOf(principalID), nil
}

func (s *VoteService) remember(key string, v model.VoteType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.optimistic[key] = optimisticVote{vote: v, at: s.now()}

	// Drop expired entries so the map does not grow without bound.
	for k, ov := range s.optimistic {
		if s.now().Sub(ov.at) >= optimisticTTL {
			delete(s.optimistic, k)
		}
	}
}

func (s *VoteService) forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.optimistic, key)
}

// keyedMutex serializes work per key and frees a key's lock once nobody
// holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
