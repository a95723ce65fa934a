package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/cache"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/external/notification"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/queue"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
)

// startContainer runs image exposing a single port and returns its host:port
func startContainer(t *testing.T, image, port string, waitFor wait.Strategy) string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration tests skipped in -short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{port},
			WaitingFor:   waitFor,
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

type countingDirectory struct {
	calls int
	tier  domain.SubscriptionTier
}

func (d *countingDirectory) GetSubscriptionTier(context.Context, string) (domain.SubscriptionTier, error) {
	d.calls++
	return d.tier, nil
}

func TestRedisSubscriptionCache(t *testing.T) {
	addr := startContainer(t, "redis:7-alpine", "6379/tcp",
		wait.ForLog("Ready to accept connections").WithStartupTimeout(60*time.Second))

	redisCache, err := cache.NewRedisCache("redis://"+addr+"/0", zap.NewNop())
	require.NoError(t, err)
	defer redisCache.Close()

	ctx := context.Background()
	_, err = redisCache.Get(ctx, "absent")
	assert.True(t, errors.Is(err, cache.ErrMiss))

	directory := &countingDirectory{tier: domain.SubscriptionTierSilver}
	subs := cache.NewSubscriptionCache(directory, redisCache, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		tier, err := subs.GetSubscriptionTier(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, domain.SubscriptionTierSilver, tier)
	}
	assert.Equal(t, 1, directory.calls)

	require.NoError(t, subs.Invalidate(ctx, "user-1"))
	_, err = subs.GetSubscriptionTier(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, directory.calls)
}

func publishAndReceive(t *testing.T, q queue.MessageQueue) {
	t.Helper()

	received := make(chan map[string]string, 1)
	require.NoError(t, q.Subscribe(notification.Subject, func(data []byte) error {
		var msg map[string]string
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		received <- msg
		return nil
	}))
	require.True(t, q.Healthy())

	dispatcher := notification.NewQueueDispatcher(q, zap.NewNop())
	require.NoError(t, dispatcher.CreateNotification(context.Background(), &domain.Notification{
		UserID:      "user-1",
		Type:        domain.NotificationReservationReminder,
		Title:       "Reservation reminder",
		Message:     "See you soon.",
		ReferenceID: "res-1",
		CreatedAt:   time.Now(),
	}))

	select {
	case msg := <-received:
		assert.Equal(t, "user-1", msg["userId"])
		assert.Equal(t, string(domain.NotificationReservationReminder), msg["type"])
		assert.Equal(t, "res-1", msg["referenceId"])
	case <-time.After(10 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestNATSNotificationTransport(t *testing.T) {
	addr := startContainer(t, "nats:2-alpine", "4222/tcp",
		wait.ForLog("Server is ready").WithStartupTimeout(60*time.Second))

	q, err := queue.New(queue.Config{Driver: "nats", NATSURL: "nats://" + addr, ClientName: "integration"}, zap.NewNop())
	require.NoError(t, err)
	defer q.Close()

	publishAndReceive(t, q)
}

func TestRabbitMQNotificationTransport(t *testing.T) {
	addr := startContainer(t, "rabbitmq:3-alpine", "5672/tcp",
		wait.ForLog("Server startup complete").WithStartupTimeout(120*time.Second))

	q, err := queue.New(queue.Config{
		Driver:      "rabbitmq",
		RabbitMQURL: fmt.Sprintf("amqp://guest:guest@%s/", addr),
	}, zap.NewNop())
	require.NoError(t, err)
	defer q.Close()

	publishAndReceive(t, q)
}
