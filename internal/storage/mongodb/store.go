// Package mongodb implements storage interfaces using MongoDB
package mongodb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-as2sbd/internal/storage"
)

// Store implements storage.Store using MongoDB
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	gridfs *gridfs.Bucket

	documents *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

// Config holds MongoDB connection settings
type Config struct {
	URI            string
	Database       string
	Collection     string
	GridFSBucket   string
	ChunkSizeBytes int32
}

// NewStore creates a new MongoDB store
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	// Connect to MongoDB
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	// Verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)

	// Create GridFS bucket for envelopes
	bucketName := cfg.GridFSBucket
	if bucketName == "" {
		bucketName = "envelopes"
	}
	chunkSize := cfg.ChunkSizeBytes
	if chunkSize == 0 {
		chunkSize = 261120 // 255KB
	}
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().
		SetName(bucketName).
		SetChunkSizeBytes(chunkSize))
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("creating GridFS bucket: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "documents"
	}

	s := &Store{
		client:    client,
		db:        db,
		gridfs:    bucket,
		documents: db.Collection(collection),
	}

	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.documents.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "correlation_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "document_type", Value: 1}}},
		{Keys: bson.D{{Key: "received_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("creating document indexes: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks the MongoDB connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// DocumentStore implementation

func (s *Store) CreateDocument(ctx context.Context, doc *storage.Document) error {
	if doc.ID == "" {
		doc.ID = primitive.NewObjectID().Hex()
	}
	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = time.Now().UTC()
	}
	_, err := s.documents.InsertOne(ctx, doc)
	return insertError(err, doc.CorrelationID)
}

// insertError maps a unique index violation to storage.ErrDuplicate
func insertError(err error, correlationID string) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", storage.ErrDuplicate, correlationID)
	}
	return fmt.Errorf("inserting document: %w", err)
}

func (s *Store) GetDocument(ctx context.Context, id string) (*storage.Document, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) GetDocumentByCorrelationID(ctx context.Context, correlationID string) (*storage.Document, error) {
	return s.findOne(ctx, bson.M{"correlation_id": correlationID})
}

func (s *Store) findOne(ctx context.Context, query bson.M) (*storage.Document, error) {
	var doc storage.Document
	err := s.documents.FindOne(ctx, query).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, filter *storage.DocumentFilter) ([]*storage.Document, error) {
	query := bson.M{}
	if filter != nil {
		if filter.Receiver != "" {
			query["receiver"] = filter.Receiver
		}
		if filter.DocumentType != "" {
			query["document_type"] = filter.DocumentType
		}
		if filter.Since != nil {
			query["received_at"] = bson.M{"$gte": *filter.Since}
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "received_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			opts.SetLimit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			opts.SetSkip(int64(filter.Offset))
		}
	}

	cursor, err := s.documents.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []*storage.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// EnvelopeStore implementation using GridFS

func (s *Store) StoreEnvelope(ctx context.Context, envelope *storage.EnvelopeData) (string, error) {
	// Calculate checksum if not provided
	if envelope.Checksum == "" {
		hash := sha256.Sum256(envelope.Data)
		envelope.Checksum = hex.EncodeToString(hash[:])
	}

	filename := fmt.Sprintf("%s.xml", envelope.CorrelationID)
	uploadOpts := options.GridFSUpload().SetMetadata(bson.M{
		"correlation_id": envelope.CorrelationID,
		"content_type":   "application/xml",
		"checksum":       envelope.Checksum,
	})

	uploadStream, err := s.gridfs.OpenUploadStream(filename, uploadOpts)
	if err != nil {
		return "", fmt.Errorf("opening upload stream: %w", err)
	}

	if dl, ok := ctx.Deadline(); ok {
		if err := uploadStream.SetWriteDeadline(dl); err != nil {
			_ = uploadStream.Abort()
			return "", fmt.Errorf("setting write deadline: %w", err)
		}
	}

	if _, err := uploadStream.Write(envelope.Data); err != nil {
		_ = uploadStream.Abort()
		return "", fmt.Errorf("writing envelope: %w", err)
	}

	// Close flushes the last chunk and writes the files entry
	if err := uploadStream.Close(); err != nil {
		return "", fmt.Errorf("finishing envelope upload: %w", err)
	}

	envelope.ID = uploadStream.FileID.(primitive.ObjectID).Hex()
	return envelope.ID, nil
}

func (s *Store) GetEnvelope(ctx context.Context, id string) (*storage.EnvelopeData, error) {
	objID, err := envelopeObjectID(id)
	if err != nil {
		return nil, err
	}

	downloadStream, err := s.gridfs.OpenDownloadStream(objID)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening download stream: %w", err)
	}
	defer downloadStream.Close()

	if dl, ok := ctx.Deadline(); ok {
		if err := downloadStream.SetReadDeadline(dl); err != nil {
			return nil, fmt.Errorf("setting read deadline: %w", err)
		}
	}

	data, err := io.ReadAll(downloadStream)
	if err != nil {
		return nil, fmt.Errorf("reading envelope: %w", err)
	}

	metadata := downloadStream.GetFile().Metadata
	correlationID, _ := metadata.Lookup("correlation_id").StringValueOK()
	checksum, _ := metadata.Lookup("checksum").StringValueOK()

	return &storage.EnvelopeData{
		ID:            id,
		CorrelationID: correlationID,
		Data:          data,
		Checksum:      checksum,
	}, nil
}

// DeleteEnvelope removes an envelope. Deleting a missing envelope is not an
// error.
func (s *Store) DeleteEnvelope(ctx context.Context, id string) error {
	objID, err := envelopeObjectID(id)
	if err != nil {
		return err
	}
	err = s.gridfs.DeleteContext(ctx, objID)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil
	}
	return err
}

func envelopeObjectID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid envelope ID %q: %w", id, err)
	}
	return objID, nil
}
