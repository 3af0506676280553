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

type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection(usersCollection)}
}

func (r *UserRepo) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		return domain.ErrInvalidUserID
	}
	_, err := r.coll.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrUserAlreadyExists
	}
	return err
}

func (r *UserRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrInvalidUserID
	}
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var u domain.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	cur, err := r.coll.Find(ctx, bson.M{},
		options.Find().
			SetProjection(bson.M{"password": 0}).
			SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, err
	}
	users := []domain.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepo) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	if id == "" {
		return domain.ErrInvalidUserID
	}
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$max": bson.M{"lastSeen": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

var _ domain.UserRepository = (*UserRepo)(nil)
