package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_CloneIsDeep(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	conv := &Conversation{
		ID:    "c1",
		Title: DefaultTitle,
		Messages: []Message{
			{ID: "m1", Role: RoleUser, Content: "hi", Files: []Attachment{{ID: "a1", Name: "a.txt"}}},
			{ID: "m2", Role: RoleAssistant, Content: "yo", Artifacts: []Artifact{{ID: "x1", Content: "code"}}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	cp := conv.Clone()
	cp.Messages[0].Files[0].Name = "changed.txt"
	cp.Messages[1].Artifacts[0].Content = "changed"
	cp.Messages = append(cp.Messages, Message{ID: "m3"})

	assert.Equal(t, "a.txt", conv.Messages[0].Files[0].Name)
	assert.Equal(t, "code", conv.Messages[1].Artifacts[0].Content)
	assert.Len(t, conv.Messages, 2)

	var nilConv *Conversation
	assert.Nil(t, nilConv.Clone())
}

func TestConversation_TouchNeverMovesBackwards(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	conv := &Conversation{CreatedAt: now, UpdatedAt: now}

	conv.Touch(now.Add(-time.Hour))
	assert.True(t, conv.UpdatedAt.Equal(now))

	conv.Touch(now.Add(time.Minute))
	assert.True(t, conv.UpdatedAt.Equal(now.Add(time.Minute)))
}

func TestConversation_Summary(t *testing.T) {
	conv := &Conversation{ID: "c1", Title: "T", Messages: make([]Message, 3)}
	s := conv.Summary()
	assert.Equal(t, "c1", s.ID)
	assert.Equal(t, 3, s.MessageCount)
}

func TestMessage_JSONOmitsEmptyCollections(t *testing.T) {
	data, err := json.Marshal(Message{ID: "m1", Role: RoleUser, Content: "hi"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "files")
	assert.NotContains(t, string(data), "artifacts")
}

func TestErrors_MatchSentinels(t *testing.T) {
	assert.True(t, errors.Is(&ValidationError{Field: "title", Reason: "empty"}, ErrValidation))
	assert.True(t, errors.Is(&NotFoundError{Resource: "conversation", ID: "x"}, ErrNotFound))

	cause := errors.New("disk full")
	err := &StorageError{Op: "save", Err: cause}
	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNotFound))
}
