package mongo

import (
	"context"
	"dmchat/internal/core/domain"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: db.Collection(messagesCollection)}
}

func (r *MessageRepo) CreateMessage(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		return domain.ErrInvalidMessageID
	}
	_, err := r.coll.InsertOne(ctx, m)
	return err
}

func (r *MessageRepo) GetMessageByID(ctx context.Context, id string) (*domain.Message, error) {
	var m domain.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepo) ListConversation(ctx context.Context, a, b string) ([]domain.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender": a, "receiver": b},
		bson.M{"sender": b, "receiver": a},
	}}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, err
	}
	msgs := []domain.Message{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *MessageRepo) MarkSeen(ctx context.Context, senderID, receiverID string, at time.Time) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"sender": senderID, "receiver": receiverID, "seen": false},
		bson.M{"$set": bson.M{"seen": true, "seenAt": at}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MessageRepo) FilterOwned(ctx context.Context, ids []string, senderID string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.findIDs(ctx, bson.M{"_id": bson.M{"$in": ids}, "sender": senderID})
}

func (r *MessageRepo) findIDs(ctx context.Context, filter bson.M) ([]string, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	found := make([]string, 0, len(docs))
	for _, d := range docs {
		found = append(found, d.ID)
	}
	return found, nil
}

func (r *MessageRepo) DeleteMessage(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// DeleteMessages reports the ids that existed when the delete was issued.
// A document removed concurrently between the two steps is still listed.
func (r *MessageRepo) DeleteMessages(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := r.findIDs(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": found}}); err != nil {
		return nil, err
	}
	return found, nil
}

var _ domain.MessageRepository = (*MessageRepo)(nil)
