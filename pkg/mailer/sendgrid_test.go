package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestSender(t *testing.T, status int, captured *map[string]interface{}) *SendGridSender {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/mail/send", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, captured))
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	sender, err := NewSendGridSender(SendGridConfig{
		APIKey:      "test-key",
		FromName:    "GEMA",
		FromAddress: "noreply@gema.test",
		Host:        server.URL,
	}, zerolog.New(io.Discard))
	require.NoError(t, err)
	return sender
}

func TestSendGridSenderDelivers(t *testing.T) {
	var body map[string]interface{}
	sender := newTestSender(t, http.StatusAccepted, &body)

	err := sender.Send(context.Background(), Message{
		To:      "student@gema.test",
		Subject: "Reminder: Essay is due in 1d",
		Text:    "plain",
		HTML:    "<p>html</p>",
	})
	require.NoError(t, err)

	from := body["from"].(map[string]interface{})
	require.Equal(t, "noreply@gema.test", from["email"])
	personalizations := body["personalizations"].([]interface{})
	require.Len(t, personalizations, 1)
	require.Len(t, body["content"].([]interface{}), 2)
}

func TestSendGridSenderClassifiesFailures(t *testing.T) {
	msg := Message{To: "student@gema.test", Subject: "s", Text: "t"}

	err := newTestSender(t, http.StatusBadRequest, nil).Send(context.Background(), msg)
	require.Error(t, err)
	require.True(t, IsPermanent(err))

	err = newTestSender(t, http.StatusServiceUnavailable, nil).Send(context.Background(), msg)
	require.Error(t, err)
	require.False(t, IsPermanent(err))

	err = newTestSender(t, http.StatusTooManyRequests, nil).Send(context.Background(), msg)
	require.Error(t, err)
	require.False(t, IsPermanent(err))
}

func TestSendGridSenderRejectsEmptyMessage(t *testing.T) {
	sender := newTestSender(t, http.StatusAccepted, nil)
	err := sender.Send(context.Background(), Message{Subject: "no recipient", Text: "t"})
	require.True(t, IsPermanent(err))
}

func TestLogSenderHonoursCancellation(t *testing.T) {
	sender := NewLogSender(zerolog.New(io.Discard))
	require.NoError(t, sender.Send(context.Background(), Message{To: "a@b.c", Text: "t"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sender.Send(ctx, Message{To: "a@b.c", Text: "t"}), context.Canceled)
}
