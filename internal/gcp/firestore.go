package gcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"google.golang.org/api/iterator"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
// It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// DocumentStore persists Document records in one Firestore collection.
type DocumentStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

func NewDocumentStore(client *firestore.Client, collection string) *DocumentStore {
	return &DocumentStore{client: client, collection: collection, now: time.Now}
}

func (s *DocumentStore) doc(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

// Create adds doc and returns its generated ID.
func (s *DocumentStore) Create(ctx context.Context, doc models.Document) (string, error) {
	now := s.now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}
	ref, _, err := s.client.Collection(s.collection).Add(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to create document record: %w", err)
	}
	return ref.ID, nil
}

// Get loads the document with id.
func (s *DocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	snap, err := s.doc(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	var doc models.Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	doc.ID = snap.Ref.ID
	return &doc, nil
}

// FindByHash returns the ID of a document with the given content hash.
func (s *DocumentStore) FindByHash(ctx context.Context, fileHash string) (string, bool, error) {
	iter := s.client.Collection(s.collection).Where("fileHash", "==", fileHash).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	return snap.Ref.ID, true, nil
}

// RecordStatus implements pipeline.StatusRecorder.
func (s *DocumentStore) RecordStatus(ctx context.Context, id string, status models.DocumentStatus, details string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updatedAt", Value: s.now()},
	}
	if details != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: details})
	}
	return s.update(ctx, id, updates)
}

func (s *DocumentStore) SetExecutionID(ctx context.Context, id, executionID string) error {
	return s.update(ctx, id, []firestore.Update{
		{Path: "workflowExecutionId", Value: executionID},
		{Path: "updatedAt", Value: s.now()},
	})
}

// SetResult stores where the summary was written and the final page count.
func (s *DocumentStore) SetResult(ctx context.Context, id, summaryURI string, pageCount int) error {
	return s.update(ctx, id, []firestore.Update{
		{Path: "summaryUri", Value: summaryURI},
		{Path: "pageCount", Value: pageCount},
		{Path: "updatedAt", Value: s.now()},
	})
}

func (s *DocumentStore) update(ctx context.Context, id string, updates []firestore.Update) error {
	if _, err := s.doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	return nil
}
