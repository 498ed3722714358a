package store

import (
	"errors"
	"testing"

	"github.com/evalgo/rserv/model"
	"github.com/evalgo/rserv/rerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAssignsIncreasingIDs(t *testing.T) {
	s := New(t.TempDir(), "default")

	id1, err := s.Create("person", model.Document{"name": "A"})
	require.NoError(t, err)
	assert.Equal(t, 1, id1)

	id2, err := s.Create("person", model.Document{"name": "B"})
	require.NoError(t, err)
	assert.Equal(t, 2, id2)

	doc, err := s.Get("person", id1)
	require.NoError(t, err)
	assert.Equal(t, "A", doc["name"])
}

func TestGetNotFound(t *testing.T) {
	s := New(t.TempDir(), "default")
	_, err := s.Get("person", 1)
	require.Error(t, err)
	re, ok := rerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rerr.NotFound, re.Kind)
}

func TestSaveAtConflict(t *testing.T) {
	s := New(t.TempDir(), "default")
	require.NoError(t, s.SaveAt("person", 5, model.Document{"name": "A"}))

	err := s.SaveAt("person", 5, model.Document{"name": "B"})
	require.Error(t, err)
	re, ok := rerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rerr.Conflict, re.Kind)

	id, err := s.Create("person", model.Document{"name": "C"})
	require.NoError(t, err)
	assert.Equal(t, 6, id, "Create must not collide with a SaveAt-allocated id")
}

func TestReplacePreservesID(t *testing.T) {
	s := New(t.TempDir(), "default")
	id, err := s.Create("person", model.Document{"name": "A"})
	require.NoError(t, err)

	require.NoError(t, s.Replace("person", id, model.Document{"id": 999, "name": "B"}))

	doc, err := s.Get("person", id)
	require.NoError(t, err)
	got, _ := model.IDOf(doc)
	assert.Equal(t, id, got)
	assert.Equal(t, "B", doc["name"])
}

func TestMergeNullPolicy(t *testing.T) {
	s := New(t.TempDir(), "default")
	id, err := s.Create("person", model.Document{"name": "A", "nick": "Ace"})
	require.NoError(t, err)

	merged, err := s.Merge("person", id, model.Document{"nick": nil}, NullPolicyDelete, nil)
	require.NoError(t, err)
	_, present := merged["nick"]
	assert.False(t, present)

	id2, err := s.Create("person", model.Document{"name": "B", "nick": "Bee"})
	require.NoError(t, err)
	merged2, err := s.Merge("person", id2, model.Document{"nick": nil}, NullPolicyStore, nil)
	require.NoError(t, err)
	val, present := merged2["nick"]
	assert.True(t, present)
	assert.Nil(t, val)
}

func TestMergeRejectsInvalidCandidateWithoutWriting(t *testing.T) {
	s := New(t.TempDir(), "default")
	id, err := s.Create("person", model.Document{"name": "A"})
	require.NoError(t, err)

	refused := errors.New("invalid candidate")
	_, err = s.Merge("person", id, model.Document{"name": "B"}, NullPolicyStore, func(candidate model.Document) error {
		return refused
	})
	require.ErrorIs(t, err, refused)

	current, err := s.Get("person", id)
	require.NoError(t, err)
	assert.Equal(t, "A", current["name"])
}

func TestDeleteCascading(t *testing.T) {
	s := New(t.TempDir(), "default")

	postID, err := s.Create("post", model.Document{"title": "hello"})
	require.NoError(t, err)

	_, err = s.Create("comment", model.Document{
		"body": "nice",
		"post": model.Ref{Entity: "post", ID: postID}.ToMap(),
	})
	require.NoError(t, err)

	deleted, err := s.DeleteCascading("post", postID)
	require.NoError(t, err)
	assert.Contains(t, deleted, "post:1")
	assert.Contains(t, deleted, "comment:1")

	_, err = s.Get("comment", 1)
	require.Error(t, err)
	re, ok := rerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rerr.NotFound, re.Kind)
}

func TestListSortedByID(t *testing.T) {
	s := New(t.TempDir(), "default")
	_, _ = s.Create("person", model.Document{"name": "A"})
	_, _ = s.Create("person", model.Document{"name": "B"})
	_, _ = s.Create("person", model.Document{"name": "C"})

	docs, err := s.List("person")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, d := range docs {
		id, _ := model.IDOf(d)
		assert.Equal(t, i+1, id)
	}
}

func TestValidateEntityName(t *testing.T) {
	assert.NoError(t, ValidateEntityName("person"))
	assert.NoError(t, ValidateEntityName("person_2"))
	assert.Error(t, ValidateEntityName(""))
	assert.Error(t, ValidateEntityName("../etc"))
	assert.Error(t, ValidateEntityName("a/b"))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID(1))
	assert.Error(t, ValidateID(0))
	assert.Error(t, ValidateID(-1))
}
