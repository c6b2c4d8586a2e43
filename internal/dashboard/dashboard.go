// Package dashboard runs dashboard queries for one user identity: it loads the
// stored dataset, merges uploads, narrows by date and analyst, and returns the
// computed view. Persistence failures are reported in the view, never fatal.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"protodash/internal/metrics"
	"protodash/internal/storage"
)

type Kind string

const (
	Overall    Kind = "overall"
	PerAnalyst Kind = "analyst"
)

var ErrAnalystRequired = errors.New("per-analyst view needs an analyst")

const invertedRangeWarning = "A data inicial é posterior à data final; nenhum registro no intervalo."

type Query struct {
	Kind    Kind
	Analyst string
	Start   *time.Time
	End     *time.Time
	// Uploads are accumulated into the session dataset and persisted before
	// the view is computed.
	Uploads []metrics.RawRow
	Save    bool
}

type View struct {
	Kind         Kind
	Analyst      string
	Summary      metrics.Summary
	MeanDisplay  string
	Distribution []metrics.StatusShare
	Daily        []metrics.DailyTMO
	Attention    []metrics.AttentionPoint
	Threshold    time.Duration
	Range        metrics.Range
	RangeWarning string
	Analysts     []string
	Portfolios   []string
	Duplicates   []metrics.DuplicateKey
	Saved        bool
	PersistError error
}

type Service struct {
	store      storage.Store
	threshold  time.Duration
	reconciler metrics.Reconciler
	now        func() time.Time
	logger     *zap.Logger
}

type Option func(*Service)

func WithThreshold(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.threshold = d
		}
	}
}

func WithReconciler(r metrics.Reconciler) Option {
	return func(s *Service) { s.reconciler = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		threshold:  metrics.DefaultAttentionThreshold,
		reconciler: metrics.AppendOnly{},
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session is one user's working copy of their dataset.
type Session struct {
	ID      string
	User    string
	svc     *Service
	dataset metrics.Dataset
	logger  *zap.Logger
}

// Open loads the stored dataset for user. On a load failure the session is
// still returned, starting from an empty dataset, together with the error.
func (s *Service) Open(ctx context.Context, user string) (*Session, error) {
	id := uuid.NewString()
	sess := &Session{
		ID:      id,
		User:    user,
		svc:     s,
		dataset: metrics.Dataset{},
		logger:  s.logger.With(zap.String("session_id", id), zap.String("user", user)),
	}

	ds, err := s.store.Load(ctx, user)
	if err != nil {
		sess.logger.Warn("failed to load stored dataset", zap.Error(err))
		return sess, fmt.Errorf("load dataset: %w", err)
	}
	sess.dataset = metrics.Normalize(rawRows(ds))
	sess.logger.Debug("session opened", zap.Int("records", len(sess.dataset)))
	return sess, nil
}

// rawRows lets stored records pass through the normalizer again, so every
// backend yields the same canonical form.
func rawRows(ds metrics.Dataset) []metrics.RawRow {
	out := make([]metrics.RawRow, len(ds))
	for i, r := range ds {
		out[i] = metrics.RawRow{
			Protocol:         r.Protocol,
			User:             r.User,
			Status:           string(r.Status),
			AnalysisDuration: r.AnalysisDuration,
			ScheduledAt:      r.ScheduledAt,
			Portfolio:        r.Portfolio,
		}
	}
	return out
}

func (s *Session) Dataset() metrics.Dataset {
	return s.dataset
}

// Run applies q to the session and computes the resulting view. Only an
// invalid query is returned as an error.
func (s *Session) Run(ctx context.Context, q Query) (View, error) {
	if q.Kind == "" {
		q.Kind = Overall
	}
	switch q.Kind {
	case Overall:
	case PerAnalyst:
		if q.Analyst == "" {
			return View{}, ErrAnalystRequired
		}
	default:
		return View{}, fmt.Errorf("unknown view %q", q.Kind)
	}

	v := View{Kind: q.Kind, Analyst: q.Analyst, Threshold: s.svc.threshold}

	if len(q.Uploads) > 0 {
		before := len(s.dataset)
		s.dataset = metrics.AccumulateWith(s.svc.reconciler, s.dataset, metrics.Normalize(q.Uploads))
		s.logger.Info("accumulated upload",
			zap.Int("incoming", len(q.Uploads)),
			zap.Int("before", before),
			zap.Int("after", len(s.dataset)))
		if err := s.persist(ctx); err != nil {
			v.PersistError = err
		} else {
			v.Saved = true
		}
	}

	if q.Save && v.PersistError == nil && !v.Saved {
		if err := s.persist(ctx); err != nil {
			v.PersistError = err
		} else {
			v.Saved = true
		}
	}

	ds := s.dataset
	now := s.svc.now()
	if q.Start != nil || q.End != nil {
		v.Range = metrics.ResolveRange(ds, q.Start, q.End, now)
		ds = v.Range.Apply(ds)
		if v.Range.Inverted {
			v.RangeWarning = invertedRangeWarning
		}
	} else {
		v.Range = metrics.ResolveRange(ds, nil, nil, now)
	}

	v.Analysts = metrics.Analysts(s.dataset)
	v.Duplicates = metrics.DuplicateKeys(s.dataset)
	if q.Kind == PerAnalyst {
		ds = metrics.ForAnalyst(ds, q.Analyst)
		v.Portfolios = metrics.Portfolios(s.dataset, q.Analyst)
	}

	v.Summary = metrics.Summarize(ds)
	v.MeanDisplay = v.Summary.MeanDisplay()
	v.Distribution = v.Summary.Distribution()
	v.Daily = metrics.DailyAverageHandlingTime(ds)
	v.Attention = metrics.Flagged(ds, s.svc.threshold)
	return v, nil
}

func (s *Session) persist(ctx context.Context) error {
	if err := s.svc.store.Save(ctx, s.User, s.dataset); err != nil {
		s.logger.Error("failed to persist dataset", zap.Int("records", len(s.dataset)), zap.Error(err))
		return fmt.Errorf("save dataset: %w", err)
	}
	s.logger.Info("dataset persisted", zap.Int("records", len(s.dataset)))
	return nil
}
