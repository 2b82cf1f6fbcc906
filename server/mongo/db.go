package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/botsman/psd2cert/app/dbrepository"
	"github.com/botsman/psd2cert/app/models"
)

const tppCollection = "tpps"

type MongoClient struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func GetMongoDb(ctx context.Context, uri, dbName string) (*MongoClient, error) {
	if uri == "" {
		return nil, errors.New("mongo url is not set")
	}
	if dbName == "" {
		return nil, errors.New("mongo database is not set")
	}
	clientOptions := options.Client().ApplyURI(uri)

	mongoClient, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	err = mongoClient.Ping(ctx, nil)
	if err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	logrus.WithField("database", dbName).Info("connected to mongo")
	db := mongoClient.Database(dbName)
	return &MongoClient{Client: mongoClient, Database: db}, nil
}

func (db *MongoClient) Disconnect(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}

type TppMongoRepository struct {
	db *mongo.Database
}

func (r *TppMongoRepository) GetTpp(ctx context.Context, id string) (*models.TPP, error) {
	tpp := &models.TPP{}
	err := r.db.Collection(tppCollection).FindOne(ctx, bson.M{"ob_id": id}).Decode(tpp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", dbrepository.ErrTppNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return tpp, nil
}

func NewTppMongoRepository(db *mongo.Database) *TppMongoRepository {
	return &TppMongoRepository{db: db}
}

var _ dbrepository.TppRepository = (*TppMongoRepository)(nil)
