package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-reminders/internal/models"
	"github.com/noah-isme/gema-reminders/internal/repository"
)

func TestNotificationServiceDeliversToSubscriber(t *testing.T) {
	fx := newReminderFixture(t)
	svc := NewNotificationService(repository.NewNotificationRepository(fx.db), nil, "", nil, testLogger())

	stream, cleanup := svc.Subscribe("12")
	defer cleanup()
	other, cleanupOther := svc.Subscribe("13")
	defer cleanupOther()

	svc.Announce(context.Background(), models.Notification{ID: 1, UserID: "12", Kind: models.NotificationKindReminder, Channel: models.NotificationChannelBoth})

	select {
	case notification := <-stream:
		require.Equal(t, uint(1), notification.ID)
		require.Equal(t, "reminder", notification.Kind)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}

	select {
	case <-other:
		t.Fatal("notification leaked to another user")
	default:
	}

	cleanup()
	cleanup()
}

func TestNotificationServiceFansOutThroughRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	fx := newReminderFixture(t)
	repo := repository.NewNotificationRepository(fx.db)
	publisherClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	subscriberClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer publisherClient.Close()
	defer subscriberClient.Close()

	publisher := NewNotificationService(repo, publisherClient, "test", nil, testLogger())
	subscriber := NewNotificationService(repo, subscriberClient, "test", nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	subscriber.Start(ctx)

	stream, cleanup := subscriber.Subscribe("7")
	defer cleanup()

	require.Eventually(t, func() bool {
		return len(server.PubSubChannels("test:notifications")) == 1
	}, time.Second, 10*time.Millisecond)

	publisher.Announce(ctx, models.Notification{ID: 9, UserID: "7", Kind: models.NotificationKindReminder, Channel: models.NotificationChannelDashboard})

	select {
	case notification := <-stream:
		require.Equal(t, uint(9), notification.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not relayed through redis")
	}

	select {
	case duplicate := <-stream:
		t.Fatalf("notification %d relayed twice", duplicate.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotificationServicePicksOneFanoutBus(t *testing.T) {
	fx := newReminderFixture(t)
	repo := repository.NewNotificationRepository(fx.db)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	conn := &nats.Conn{}

	cases := []struct {
		name  string
		redis *redis.Client
		base  string
		nats  *nats.Conn
		want  string
	}{
		{name: "nats preferred over redis", redis: client, base: "test", nats: conn, want: fanoutNATS},
		{name: "redis only", redis: client, base: "test", want: fanoutRedis},
		{name: "nats only", base: "test", nats: conn, want: fanoutNATS},
		{name: "no channel base", redis: client, nats: conn, want: fanoutNone},
		{name: "local only", base: "test", want: fanoutNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewNotificationService(repo, tc.redis, tc.base, tc.nats, testLogger()).(*notificationService)
			require.Equal(t, tc.want, svc.fanoutBus())
		})
	}
}

func TestNotificationServiceReadAndDismiss(t *testing.T) {
	s := newCohortScenario(t)
	_, err := s.fx.scheduler(baseTime).ReconcileAssessment(context.Background(), s.assessment.ID)
	require.NoError(t, err)
	_, err = s.fx.dispatcher(nil, DispatcherOptions{}).ProcessDue(context.Background(), s.assessment.DueDate.Add(-7*24*time.Hour), 0)
	require.NoError(t, err)

	svc := NewNotificationService(repository.NewNotificationRepository(s.fx.db), nil, "", nil, testLogger())
	owner := strconv.FormatUint(uint64(s.students[0].ID), 10)
	ctx := context.Background()

	inbox, err := svc.List(ctx, owner, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, "unread", inbox[0].Status)

	read, err := svc.MarkRead(ctx, inbox[0].ID, owner)
	require.NoError(t, err)
	require.Equal(t, "read", read.Status)
	require.NotNil(t, read.ReadAt)

	_, err = svc.MarkRead(ctx, inbox[0].ID, "someone-else")
	require.ErrorIs(t, err, ErrNotificationNotFound)

	_, err = svc.Dismiss(ctx, inbox[0].ID, owner)
	require.NoError(t, err)

	inbox, err = svc.List(ctx, owner, "", 10, 0)
	require.NoError(t, err)
	require.Empty(t, inbox)

	_, err = svc.List(ctx, owner, "archived", 10, 0)
	require.Error(t, err)
}
