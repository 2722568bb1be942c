package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ashureev/revisahub/internal/domain"
)

// Collection names
const (
	CollectionProfiles = "profiles"
	CollectionMessages = "messages"
	CollectionSessions = "sessions"
)

// MongoStore implements Repository using MongoDB. Documents keep the
// field names and string timestamps of the original collections.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
}

type profileDoc struct {
	ID                    string  `bson:"id"`
	Name                  string  `bson:"name"`
	CanalSensorial        string  `bson:"canal_sensorial"`
	FormatoExplicacao     string  `bson:"formato_explicacao"`
	Abordagem             string  `bson:"abordagem"`
	InteracaoSocial       string  `bson:"interacao_social"`
	EstruturaEstudo       string  `bson:"estrutura_estudo"`
	DuracaoSessao         string  `bson:"duracao_sessao"`
	AmbienteEstudo        string  `bson:"ambiente_estudo"`
	MotivadorPrincipal    string  `bson:"motivador_principal"`
	EstrategiaDificuldade string  `bson:"estrategia_dificuldade"`
	PlanejamentoEstudos   string  `bson:"planejamento_estudos"`
	InteresseCultural     string  `bson:"interesse_cultural"`
	CurrentStreak         int     `bson:"current_streak"`
	LongestStreak         int     `bson:"longest_streak"`
	LastActivityDate      *string `bson:"last_activity_date"`
	TotalStudyDays        int     `bson:"total_study_days"`
	CreatedAt             string  `bson:"created_at"`
}

type messageDoc struct {
	ID        string  `bson:"id"`
	SessionID string  `bson:"session_id"`
	ProfileID string  `bson:"profile_id"`
	Role      string  `bson:"role"`
	Content   string  `bson:"content"`
	Subject   *string `bson:"subject"`
	HasImage  bool    `bson:"has_image"`
	Timestamp string  `bson:"timestamp"`
}

type sessionDoc struct {
	ID        string `bson:"id"`
	ProfileID string `bson:"profile_id"`
	Title     string `bson:"title"`
	Subject   string `bson:"subject"`
	CreatedAt string `bson:"created_at"`
	UpdatedAt string `bson:"updated_at"`
}

// NewMongo connects to MongoDB and ensures indexes exist.
func NewMongo(ctx context.Context, uri, dbName string) (Repository, error) {
	if uri == "" {
		return nil, errors.New("mongo url is required")
	}
	if dbName == "" {
		dbName = "revisahub"
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &MongoStore{client: client, database: client.Database(dbName)}
	if err := s.initialize(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	slog.Info("connected to mongodb", "database", dbName)
	return s, nil
}

func (s *MongoStore) initialize(ctx context.Context) error {
	if err := s.createIndexes(ctx, CollectionProfiles, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("create profiles indexes: %w", err)
	}
	if err := s.createIndexes(ctx, CollectionMessages, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "profile_id", Value: 1}, {Key: "role", Value: 1}, {Key: "timestamp", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("create messages indexes: %w", err)
	}
	if err := s.createIndexes(ctx, CollectionSessions, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "profile_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("create sessions indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) createIndexes(ctx context.Context, collection string, indexes []mongo.IndexModel) error {
	_, err := s.database.Collection(collection).Indexes().CreateMany(ctx, indexes)
	return err
}

func (s *MongoStore) collection(name string) *mongo.Collection {
	return s.database.Collection(name)
}

// Ping verifies connectivity to the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}

// CreateProfile inserts a new profile document.
func (s *MongoStore) CreateProfile(ctx context.Context, p *domain.Profile) error {
	doc := profileDoc{
		ID:                    p.ID,
		Name:                  p.Name,
		CanalSensorial:        p.CanalSensorial,
		FormatoExplicacao:     p.FormatoExplicacao,
		Abordagem:             p.Abordagem,
		InteracaoSocial:       p.InteracaoSocial,
		EstruturaEstudo:       p.EstruturaEstudo,
		DuracaoSessao:         p.DuracaoSessao,
		AmbienteEstudo:        p.AmbienteEstudo,
		MotivadorPrincipal:    p.MotivadorPrincipal,
		EstrategiaDificuldade: p.EstrategiaDificuldade,
		PlanejamentoEstudos:   p.PlanejamentoEstudos,
		InteresseCultural:     p.InteresseCultural,
		CurrentStreak:         p.CurrentStreak,
		LongestStreak:         p.LongestStreak,
		LastActivityDate:      p.LastActivityDate,
		TotalStudyDays:        p.TotalStudyDays,
		CreatedAt:             domain.FormatTimestamp(p.CreatedAt),
	}
	if _, err := s.collection(CollectionProfiles).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by ID.
func (s *MongoStore) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	var doc profileDoc
	err := s.collection(CollectionProfiles).FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}

	createdAt, err := domain.ParseTimestamp(doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &domain.Profile{
		ID:   doc.ID,
		Name: doc.Name,
		Preferences: domain.Preferences{
			CanalSensorial:        doc.CanalSensorial,
			FormatoExplicacao:     doc.FormatoExplicacao,
			Abordagem:             doc.Abordagem,
			InteracaoSocial:       doc.InteracaoSocial,
			EstruturaEstudo:       doc.EstruturaEstudo,
			DuracaoSessao:         doc.DuracaoSessao,
			AmbienteEstudo:        doc.AmbienteEstudo,
			MotivadorPrincipal:    doc.MotivadorPrincipal,
			EstrategiaDificuldade: doc.EstrategiaDificuldade,
			PlanejamentoEstudos:   doc.PlanejamentoEstudos,
			InteresseCultural:     doc.InteresseCultural,
		},
		StreakState: domain.StreakState{
			CurrentStreak:    doc.CurrentStreak,
			LongestStreak:    doc.LongestStreak,
			LastActivityDate: doc.LastActivityDate,
			TotalStudyDays:   doc.TotalStudyDays,
		},
		CreatedAt: createdAt,
	}, nil
}

// UpdateProfile applies the set fields of update with $set.
func (s *MongoStore) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error {
	set := bson.M{}
	for k, v := range update.Fields() {
		set[k] = v
	}

	var matched int64
	if len(set) == 0 {
		n, err := s.collection(CollectionProfiles).CountDocuments(ctx, bson.M{"id": id})
		if err != nil {
			return fmt.Errorf("check profile: %w", err)
		}
		matched = n
	} else {
		result, err := s.collection(CollectionProfiles).UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": set})
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		matched = result.MatchedCount
	}
	if matched == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// AdvanceStreak is a compare-and-set on last_activity_date. A nil
// expectation matches both null and missing fields.
func (s *MongoStore) AdvanceStreak(ctx context.Context, id string, expectedLast *string, next domain.StreakState) (bool, error) {
	filter := bson.M{"id": id, "last_activity_date": nil}
	if expectedLast != nil {
		filter["last_activity_date"] = *expectedLast
	}
	update := bson.M{"$set": bson.M{
		"current_streak":     next.CurrentStreak,
		"longest_streak":     next.LongestStreak,
		"last_activity_date": next.LastActivityDate,
		"total_study_days":   next.TotalStudyDays,
	}}

	result, err := s.collection(CollectionProfiles).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("advance streak: %w", err)
	}
	return result.MatchedCount == 1, nil
}

// AppendMessage inserts a message document.
func (s *MongoStore) AppendMessage(ctx context.Context, m *domain.Message) error {
	doc := messageDoc{
		ID:        m.ID,
		SessionID: m.SessionID,
		ProfileID: m.ProfileID,
		Role:      string(m.Role),
		Content:   m.Content,
		HasImage:  m.HasImage,
		Timestamp: domain.FormatTimestamp(m.Timestamp),
	}
	if m.Subject != "" {
		subject := m.Subject
		doc.Subject = &subject
	}
	if _, err := s.collection(CollectionMessages).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// RecentMessages returns the newest messages of a session first.
func (s *MongoStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	return s.findMessages(ctx, bson.M{"session_id": sessionID}, opts)
}

// SessionMessages returns a profile's session messages oldest first.
func (s *MongoStore) SessionMessages(ctx context.Context, profileID, sessionID string, limit int) ([]domain.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return s.findMessages(ctx, bson.M{"session_id": sessionID, "profile_id": profileID}, opts)
}

func (s *MongoStore) findMessages(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Message, error) {
	cursor, err := s.collection(CollectionMessages).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	out := make([]domain.Message, 0, len(docs))
	for _, d := range docs {
		ts, err := domain.ParseTimestamp(d.Timestamp)
		if err != nil {
			return nil, err
		}
		m := domain.Message{
			ID:        d.ID,
			SessionID: d.SessionID,
			ProfileID: d.ProfileID,
			Role:      domain.Role(d.Role),
			Content:   d.Content,
			HasImage:  d.HasImage,
			Timestamp: ts,
		}
		if d.Subject != nil {
			m.Subject = *d.Subject
		}
		out = append(out, m)
	}
	return out, nil
}

// UserMessageTimes returns timestamps of user messages in [from, to).
func (s *MongoStore) UserMessageTimes(ctx context.Context, profileID string, from, to time.Time) ([]time.Time, error) {
	filter := bson.M{
		"profile_id": profileID,
		"role":       string(domain.RoleUser),
		"timestamp": bson.M{
			"$gte": domain.FormatTimestamp(from),
			"$lt":  domain.FormatTimestamp(to),
		},
	}
	opts := options.Find().SetProjection(bson.M{"_id": 0, "timestamp": 1})
	cursor, err := s.collection(CollectionMessages).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find message times: %w", err)
	}
	var docs []struct {
		Timestamp string `bson:"timestamp"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode message times: %w", err)
	}

	out := make([]time.Time, 0, len(docs))
	for _, d := range docs {
		t, err := domain.ParseTimestamp(d.Timestamp)
		if err != nil {
			slog.Warn("skipping unparsable message timestamp", "profile_id", profileID, "timestamp", d.Timestamp)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// LastMessageAt returns the newest message timestamp of a profile.
func (s *MongoStore) LastMessageAt(ctx context.Context, profileID string) (*time.Time, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetProjection(bson.M{"_id": 0, "timestamp": 1})
	var doc struct {
		Timestamp string `bson:"timestamp"`
	}
	err := s.collection(CollectionMessages).FindOne(ctx, bson.M{"profile_id": profileID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find last message: %w", err)
	}
	t, err := domain.ParseTimestamp(doc.Timestamp)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CountUserMessages counts a profile's user messages.
func (s *MongoStore) CountUserMessages(ctx context.Context, profileID string) (int, error) {
	n, err := s.collection(CollectionMessages).CountDocuments(ctx,
		bson.M{"profile_id": profileID, "role": string(domain.RoleUser)})
	if err != nil {
		return 0, fmt.Errorf("count user messages: %w", err)
	}
	return int(n), nil
}

// SubjectCounts groups a profile's messages by subject in one pipeline.
func (s *MongoStore) SubjectCounts(ctx context.Context, profileID string) ([]SubjectCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"profile_id": profileID,
			"subject":    bson.M{"$exists": true, "$nin": bson.A{nil, ""}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": "$subject",
			"user_messages": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$role", string(domain.RoleUser)}}, 1, 0},
			}},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := s.collection(CollectionMessages).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate subjects: %w", err)
	}
	var rows []struct {
		Subject      string `bson:"_id"`
		UserMessages int    `bson:"user_messages"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode subjects: %w", err)
	}

	out := make([]SubjectCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, SubjectCount{Subject: r.Subject, UserMessages: r.UserMessages})
	}
	return out, nil
}

// UpsertSession creates the session or bumps its updated_at atomically.
func (s *MongoStore) UpsertSession(ctx context.Context, sess *domain.Session) error {
	update := bson.M{
		"$set": bson.M{
			"updated_at": domain.FormatTimestamp(sess.UpdatedAt),
		},
		"$setOnInsert": bson.M{
			"profile_id": sess.ProfileID,
			"title":      sess.Title,
			"subject":    sess.Subject,
			"created_at": domain.FormatTimestamp(sess.CreatedAt),
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.collection(CollectionSessions).UpdateOne(ctx, bson.M{"id": sess.ID}, update, opts); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// ListSessions returns a profile's most recently updated sessions.
func (s *MongoStore) ListSessions(ctx context.Context, profileID string, limit int) ([]domain.Session, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.collection(CollectionSessions).Find(ctx, bson.M{"profile_id": profileID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find sessions: %w", err)
	}
	var docs []sessionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}

	out := make([]domain.Session, 0, len(docs))
	for _, d := range docs {
		createdAt, err := domain.ParseTimestamp(d.CreatedAt)
		if err != nil {
			return nil, err
		}
		updatedAt, err := domain.ParseTimestamp(d.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Session{
			ID:        d.ID,
			ProfileID: d.ProfileID,
			Title:     d.Title,
			Subject:   d.Subject,
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		})
	}
	return out, nil
}

// CountSessions counts a profile's sessions.
func (s *MongoStore) CountSessions(ctx context.Context, profileID string) (int, error) {
	n, err := s.collection(CollectionSessions).CountDocuments(ctx, bson.M{"profile_id": profileID})
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(n), nil
}
