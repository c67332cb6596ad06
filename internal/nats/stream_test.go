package nats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/artifact-chat/internal/model"
	"github.com/capitalize-ai/artifact-chat/pkg/logger"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "chat.c1.turn_completed", EventSubject("c1", model.EventTypeTurnCompleted))
	assert.Equal(t, "chat.c1.turn_rolled_back", EventSubject("c1", model.EventTypeTurnRolledBack))
	assert.Equal(t, "chat.c1.>", ConversationFilter("c1"))
}

func TestConnectOptions(t *testing.T) {
	base := len(connectOptions(Config{}, logger.Nop()))

	full := connectOptions(Config{CAFile: "ca.pem", CertFile: "client.pem", KeyFile: "client.key", Token: "secret"}, logger.Nop())
	assert.Len(t, full, base+3)

	certOnly := connectOptions(Config{CertFile: "client.pem"}, logger.Nop())
	assert.Len(t, certOnly, base)
}

func TestClient_PingWhenDisconnected(t *testing.T) {
	c := &Client{logger: logger.Nop()}
	assert.False(t, c.IsConnected())
	assert.Error(t, c.Ping(context.Background()))
	c.Close()
}
