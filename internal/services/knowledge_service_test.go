package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/events"
	"github.com/AnshRaj112/journeygen-backend/internal/testutil"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

func TestKnowledgeLifecycle(t *testing.T) {
	store := testutil.NewKnowledgeStore()
	files := testutil.NewFileStore()
	pub := &testutil.Publisher{}
	svc := NewKnowledgeService(store, files, pub, logger.Nop())
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "", &Upload{Filename: "method.txt", Body: strings.NewReader("breathe")})
	require.NoError(t, err)
	assert.Equal(t, "method.txt", doc.Name)
	assert.True(t, files.Has(doc.FileURL))

	named, err := svc.Upload(ctx, " Values ", &Upload{Filename: "v.txt", Body: strings.NewReader("kindness")})
	require.NoError(t, err)
	assert.Equal(t, "Values", named.Name)

	docs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	// A file already gone from storage does not block removal of the record.
	require.NoError(t, files.Delete(ctx, doc.FileURL))
	require.NoError(t, svc.Delete(ctx, doc.ID.Hex()))

	docs, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Values", docs[0].Name)

	assert.Equal(t, []string{events.TypeKnowledgeChanged, events.TypeKnowledgeChanged, events.TypeKnowledgeChanged}, pub.Types())
}

func TestKnowledgeUploadRequiresFile(t *testing.T) {
	svc := NewKnowledgeService(testutil.NewKnowledgeStore(), testutil.NewFileStore(), nil, logger.Nop())
	_, err := svc.Upload(context.Background(), "x", nil)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestKnowledgeDeleteErrors(t *testing.T) {
	svc := NewKnowledgeService(testutil.NewKnowledgeStore(), testutil.NewFileStore(), nil, logger.Nop())
	ctx := context.Background()

	err := svc.Delete(ctx, "not-an-id")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Equal(t, "Invalid document ID.", apperr.Public(err))

	err = svc.Delete(ctx, "507f1f77bcf86cd799439011")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.Equal(t, "Document not found.", apperr.Public(err))
}

func TestKnowledgeDeleteKeepsFileWhenRecordRemains(t *testing.T) {
	store := testutil.NewKnowledgeStore()
	files := testutil.NewFileStore()
	pub := &testutil.Publisher{}
	svc := NewKnowledgeService(store, files, pub, logger.Nop())
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "Method", &Upload{Filename: "m.txt", Body: strings.NewReader("breathe")})
	require.NoError(t, err)

	store.FailDelete = errors.New("mongo down")
	require.Error(t, svc.Delete(ctx, doc.ID.Hex()))
	assert.True(t, files.Has(doc.FileURL))

	docs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, []string{events.TypeKnowledgeChanged}, pub.Types())

	store.FailDelete = nil
	require.NoError(t, svc.Delete(ctx, doc.ID.Hex()))
	assert.False(t, files.Has(doc.FileURL))
}
