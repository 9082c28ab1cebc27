package sink

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/fetcher/internal/fetcher"
)

func newTestPubSubClient(t *testing.T) *pubsub.Client {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	return client
}

func TestPubSubWritePublishesResults(t *testing.T) {
	ctx := context.Background()
	client := newTestPubSubClient(t)

	topic, err := client.CreateTopic(ctx, "results")
	require.NoError(t, err)
	sub, err := client.CreateSubscription(ctx, "results-sub", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	p, err := NewPubSubWithClient(ctx, client, "results")
	require.NoError(t, err)

	results := sampleResults()
	require.NoError(t, p.Write(ctx, results))

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var (
		mu  sync.Mutex
		got = map[string]fetcher.Result{}
	)
	err = sub.Receive(recvCtx, func(_ context.Context, msg *pubsub.Message) {
		msg.Ack()
		var res fetcher.Result
		if json.Unmarshal(msg.Data, &res) != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		got[msg.Attributes["job_id"]] = res
		if len(got) == len(results) {
			cancel()
		}
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	require.True(t, got[results[0].JobID].Successful)
	require.True(t, got[results[1].JobID].TimedOut)
	require.NoError(t, p.Close())
}

func TestPubSubMissingTopic(t *testing.T) {
	client := newTestPubSubClient(t)
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewPubSubWithClient(context.Background(), client, "missing")
	require.ErrorContains(t, err, `pubsub topic "missing" does not exist`)
}

func TestNewPubSubRequiresTopic(t *testing.T) {
	t.Parallel()

	_, err := NewPubSub(context.Background(), PubSubConfig{ProjectID: "p"})
	require.ErrorContains(t, err, "topic_id are required")
}
