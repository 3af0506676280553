package mongo

import (
	"context"
	"dmchat/internal/core/domain"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserChatRepo struct {
	coll *mongo.Collection
}

func NewUserChatRepo(db *mongo.Database) *UserChatRepo {
	return &UserChatRepo{coll: db.Collection(userChatsCollection)}
}

func (r *UserChatRepo) GetUserChats(ctx context.Context, userID string) (*domain.UserChat, error) {
	var uc domain.UserChat
	if err := r.coll.FindOne(ctx, bson.M{"currentUserId": userID}).Decode(&uc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserChatNotFound
		}
		return nil, err
	}
	return &uc, nil
}

func (r *UserChatRepo) SaveUserChats(ctx context.Context, uc *domain.UserChat, created bool) error {
	if created {
		_, err := r.coll.InsertOne(ctx, uc)
		return err
	}
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"currentUserId": uc.UserID},
		bson.M{"$set": bson.M{"chats": uc.Chats}},
		options.Update().SetUpsert(true),
	)
	return err
}

var _ domain.UserChatRepository = (*UserChatRepo)(nil)
