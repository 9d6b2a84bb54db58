package firestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

type Store struct {
	client *firestore.Client
}

var (
	_ domain.ProfileStore       = (*Store)(nil)
	_ domain.EffectivenessStore = (*Store)(nil)
	_ domain.MessageStore       = (*Store)(nil)
)

// NewStore creates a Firestore store.
// Uses the project passed (FARUM_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) profileDoc(id domain.UserID) *firestore.DocumentRef {
	return s.client.Collection("profiles").Doc(string(id))
}

func (s *Store) effectivenessCol() *firestore.CollectionRef {
	return s.client.Collection("global_effectiveness")
}

func (s *Store) messagesCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.client.Collection("sessions").Doc(string(sessionID)).Collection("messages")
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type outcomeDoc struct {
	Success bool      `firestore:"success"`
	Rating  float64   `firestore:"rating"`
	At      time.Time `firestore:"at"`
}

type effectivenessDoc struct {
	Uses        int          `firestore:"uses"`
	Successes   int          `firestore:"successes"`
	TotalRating float64      `firestore:"total_rating"`
	Recent      []outcomeDoc `firestore:"recent"`
}

type crisisEventDoc struct {
	At         time.Time `firestore:"at"`
	SessionID  string    `firestore:"session_id"`
	Type       string    `firestore:"type"`
	Severity   int       `firestore:"severity"`
	Deescalate bool      `firestore:"deescalate"`
	Reason     string    `firestore:"reason"`
}

type profileDoc struct {
	Style               string                      `firestore:"style"`
	Language            string                      `firestore:"language"`
	CulturalContext     string                      `firestore:"cultural_context"`
	PreferredCategories []string                    `firestore:"preferred_categories"`
	PreferredTechniques []string                    `firestore:"preferred_techniques"`
	TraumaHistory       bool                        `firestore:"trauma_history"`
	Stabilized          bool                        `firestore:"stabilized"`
	Effectiveness       map[string]effectivenessDoc `firestore:"effectiveness"`
	CrisisHistory       []crisisEventDoc            `firestore:"crisis_history"`
	TotalTurns          int                         `firestore:"total_turns"`
	TotalSessions       int                         `firestore:"total_sessions"`
	LastSeenAt          time.Time                   `firestore:"last_seen_at"`
	CreatedAt           time.Time                   `firestore:"created_at"`
	UpdatedAt           time.Time                   `firestore:"updated_at"`
}

type messageDoc struct {
	SessionID string    `firestore:"session_id"`
	UserID    string    `firestore:"user_id"`
	Author    string    `firestore:"author"`
	Text      string    `firestore:"text"`
	Kind      string    `firestore:"kind"`
	CreatedAt time.Time `firestore:"created_at"`
}

func toEffectivenessDoc(r domain.EffectivenessRecord) effectivenessDoc {
	doc := effectivenessDoc{Uses: r.Uses, Successes: r.Successes, TotalRating: r.TotalRating}
	for _, o := range r.Recent {
		doc.Recent = append(doc.Recent, outcomeDoc(o))
	}
	return doc
}

func fromEffectivenessDoc(key domain.InterventionKey, doc effectivenessDoc) domain.EffectivenessRecord {
	rec := domain.EffectivenessRecord{
		Key:         key,
		Uses:        doc.Uses,
		Successes:   doc.Successes,
		TotalRating: doc.TotalRating,
	}
	for _, o := range doc.Recent {
		rec.Recent = append(rec.Recent, domain.Outcome(o))
	}
	return rec
}

func toProfileDoc(p *domain.UserProfile) profileDoc {
	doc := profileDoc{
		Style:               string(p.Preferences.Style),
		Language:            p.Preferences.Language,
		CulturalContext:     p.Preferences.CulturalContext,
		PreferredCategories: p.Preferences.PreferredCategories,
		PreferredTechniques: p.Preferences.PreferredTechniques,
		TraumaHistory:       p.Clinical.TraumaHistory,
		Stabilized:          p.Clinical.Stabilized,
		Effectiveness:       make(map[string]effectivenessDoc, len(p.Effectiveness)),
		TotalTurns:          p.Progress.TotalTurns,
		TotalSessions:       p.Progress.TotalSessions,
		LastSeenAt:          p.Progress.LastSeenAt,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	for k, r := range p.Effectiveness {
		doc.Effectiveness[string(k)] = toEffectivenessDoc(r)
	}
	for _, e := range p.CrisisHistory {
		doc.CrisisHistory = append(doc.CrisisHistory, crisisEventDoc{
			At:         e.At,
			SessionID:  string(e.SessionID),
			Type:       string(e.Type),
			Severity:   e.Severity,
			Deescalate: e.Deescalate,
			Reason:     e.Reason,
		})
	}
	return doc
}

func fromProfileDoc(id domain.UserID, doc profileDoc) *domain.UserProfile {
	p := &domain.UserProfile{
		ID: id,
		Preferences: domain.Preferences{
			Style:               domain.ParseStyle(doc.Style),
			Language:            doc.Language,
			CulturalContext:     doc.CulturalContext,
			PreferredCategories: doc.PreferredCategories,
			PreferredTechniques: doc.PreferredTechniques,
		},
		Clinical: domain.ClinicalHistory{
			TraumaHistory: doc.TraumaHistory,
			Stabilized:    doc.Stabilized,
		},
		Effectiveness: make(map[domain.InterventionKey]domain.EffectivenessRecord, len(doc.Effectiveness)),
		Progress: domain.Progress{
			TotalTurns:    doc.TotalTurns,
			TotalSessions: doc.TotalSessions,
			LastSeenAt:    doc.LastSeenAt,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for k, d := range doc.Effectiveness {
		key := domain.InterventionKey(k)
		p.Effectiveness[key] = fromEffectivenessDoc(key, d)
	}
	for _, e := range doc.CrisisHistory {
		p.CrisisHistory = append(p.CrisisHistory, domain.CrisisEvent{
			At:         e.At,
			SessionID:  domain.SessionID(e.SessionID),
			Type:       domain.CrisisType(e.Type),
			Severity:   e.Severity,
			Deescalate: e.Deescalate,
			Reason:     e.Reason,
		})
	}
	return p
}

// ─────────────────────────────────────────
// ProfileStore implementation
// ─────────────────────────────────────────

func (s *Store) GetProfile(ctx context.Context, id domain.UserID) (*domain.UserProfile, error) {
	snap, err := s.profileDoc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("firestore GetProfile: %w", err)
	}

	var doc profileDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetProfile decode: %w", err)
	}
	return fromProfileDoc(id, doc), nil
}

func (s *Store) PutProfile(ctx context.Context, p *domain.UserProfile) error {
	if _, err := s.profileDoc(p.ID).Set(ctx, toProfileDoc(p)); err != nil {
		return fmt.Errorf("firestore PutProfile: %w", err)
	}
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, id domain.UserID) error {
	_, err := s.profileDoc(id).Delete(ctx, firestore.Exists)
	if err != nil {
		if isNotFound(err) {
			return domain.ErrProfileNotFound
		}
		return fmt.Errorf("firestore DeleteProfile: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// EffectivenessStore implementation
// ─────────────────────────────────────────

func (s *Store) GlobalEffectiveness(ctx context.Context) (map[domain.InterventionKey]domain.EffectivenessRecord, error) {
	iter := s.effectivenessCol().Documents(ctx)
	defer iter.Stop()

	out := make(map[domain.InterventionKey]domain.EffectivenessRecord)
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore GlobalEffectiveness: %w", err)
		}

		var doc effectivenessDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode effectivenessDoc: %w", err)
		}
		key := domain.InterventionKey(snap.Ref.ID)
		out[key] = fromEffectivenessDoc(key, doc)
	}
	return out, nil
}

// AddGlobalOutcome folds the outcome in inside a transaction, so concurrent
// instances never lose an update.
func (s *Store) AddGlobalOutcome(ctx context.Context, key domain.InterventionKey, o domain.Outcome) error {
	ref := s.effectivenessCol().Doc(string(key))

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		rec := domain.EffectivenessRecord{Key: key}

		snap, err := tx.Get(ref)
		switch {
		case isNotFound(err):
		case err != nil:
			return err
		default:
			var doc effectivenessDoc
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode effectivenessDoc: %w", err)
			}
			rec = fromEffectivenessDoc(key, doc)
		}

		return tx.Set(ref, toEffectivenessDoc(rec.Apply(o)))
	})
	if err != nil {
		return fmt.Errorf("firestore AddGlobalOutcome: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	doc := messageDoc{
		SessionID: string(msg.SessionID),
		UserID:    string(msg.UserID),
		Author:    string(msg.Author),
		Text:      msg.Text,
		Kind:      msg.Kind,
		CreatedAt: msg.CreatedAt,
	}

	_, err := s.messagesCol(msg.SessionID).Doc(string(msg.ID)).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

// GetMessagesBySession returns the last limit messages, oldest first.
func (s *Store) GetMessagesBySession(ctx context.Context, sessionID domain.SessionID, limit int) ([]*domain.Message, error) {
	q := s.messagesCol(sessionID).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Message
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore GetMessagesBySession: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}

		out = append(out, &domain.Message{
			ID:        domain.MessageID(snap.Ref.ID),
			SessionID: sessionID,
			UserID:    domain.UserID(doc.UserID),
			Author:    domain.Role(doc.Author),
			Text:      doc.Text,
			Kind:      doc.Kind,
			CreatedAt: doc.CreatedAt,
		})
	}
	slices.Reverse(out)
	return out, nil
}

func (s *Store) DeleteSessionMessages(ctx context.Context, sessionID domain.SessionID) error {
	refs, err := s.messagesCol(sessionID).DocumentRefs(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("firestore DeleteSessionMessages: %w", err)
	}
	if len(refs) == 0 {
		return nil
	}

	bw := s.client.BulkWriter(ctx)
	for _, ref := range refs {
		if _, err := bw.Delete(ref); err != nil {
			bw.End()
			return fmt.Errorf("firestore DeleteSessionMessages: %w", err)
		}
	}
	bw.End()
	return nil
}
