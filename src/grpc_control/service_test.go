package grpc_control

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"mtm-hub/src/aggregator"
	"mtm-hub/src/cache"
	"mtm-hub/src/config"
	"mtm-hub/src/logger"
	"mtm-hub/src/models"
	"mtm-hub/src/observability"
	"mtm-hub/src/poller"
	"mtm-hub/src/state"
	"mtm-hub/src/storage"
	"mtm-hub/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type constClient struct{ clock *utils.FakeClock }

func (c constClient) FetchMTM(ctx context.Context, account models.MAccount) (models.MQuote, error) {
	return models.MQuote{UserID: account.UserID, AbsoluteMTM: 25, FetchedAt: c.clock.Now()}, nil
}

type countingTrigger struct {
	mu    sync.Mutex
	calls int
}

func (c *countingTrigger) RunOnce(ctx context.Context) poller.CycleReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return poller.CycleReport{Accounts: 1, Failures: 1, Duration: 20 * time.Millisecond}
}

func newAggregator(t *testing.T) *aggregator.Aggregator {
	t.Helper()
	dir, err := config.NewAccountDirectory(models.MAccountsFile{
		OpeningTime: "09:15",
		StartTime:   "09:16",
		Users:       []models.MAccount{{UserID: "A1", Address: "10.0.0.1:8556", Alias: "desk-1"}},
	}, models.MSessionConfig{})
	require.NoError(t, err)

	clock := utils.NewFakeClock(time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC))
	log := logger.NewNopLogger()
	c := cache.NewMemoryCache(time.Second, 0, clock)
	t.Cleanup(func() { c.Close() })

	return aggregator.New(aggregator.Deps{
		Accounts: dir,
		Gate:     dir.TimeGate(),
		State:    state.New(storage.NewMemoryStore(), log),
		Cache:    c,
		Client:   constClient{clock: clock},
		Clock:    clock,
		Metrics:  observability.NewMetrics(""),
		Logger:   log,
	})
}

// dial serves svc over an in-memory listener.
func dial(t *testing.T, svc HubControlServer) *HubControlClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterHubControlServer(srv, svc)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewHubControlClient(conn)
}

// -----------------------------------------------------------------------------

func TestListAndResetAccount(t *testing.T) {
	agg := newAggregator(t)
	client := dial(t, NewControlService(agg, nil, logger.NewNopLogger()))
	ctx := context.Background()

	_, err := agg.GetMTM(ctx, "A1")
	require.NoError(t, err)

	out, err := client.ListAccounts(ctx)
	require.NoError(t, err)
	accounts := out.AsMap()["accounts"].([]interface{})
	require.Len(t, accounts, 1)
	first := accounts[0].(map[string]interface{})
	assert.Equal(t, "A1", first["user_id"])
	assert.Equal(t, "desk-1", first["alias"])
	assert.Equal(t, 25.0, first["current_mtm"])
	assert.Equal(t, 1.0, first["history_points"])

	out, err = client.ResetAccount(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, true, out.AsMap()["success"])

	history, err := agg.History(ctx, "A1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestResetAccountErrors(t *testing.T) {
	client := dial(t, NewControlService(newAggregator(t), nil, logger.NewNopLogger()))
	ctx := context.Background()

	_, err := client.ResetAccount(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.ResetAccount(ctx, "ZZ")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestTriggerPoll(t *testing.T) {
	ctx := context.Background()

	_, err := dial(t, NewControlService(newAggregator(t), nil, logger.NewNopLogger())).TriggerPoll(ctx)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	trigger := &countingTrigger{}
	out, err := dial(t, NewControlService(newAggregator(t), trigger, logger.NewNopLogger())).TriggerPoll(ctx)
	require.NoError(t, err)
	m := out.AsMap()
	assert.Equal(t, false, m["success"])
	assert.Equal(t, 1.0, m["failures"])
	assert.Equal(t, 20.0, m["duration_ms"])
	assert.Equal(t, 1, trigger.calls)
}

func TestStatusAndResetAll(t *testing.T) {
	client := dial(t, NewControlService(newAggregator(t), nil, logger.NewNopLogger()))
	ctx := context.Background()

	out, err := client.GetStatus(ctx)
	require.NoError(t, err)
	m := out.AsMap()
	assert.Equal(t, "active", m["phase"])
	assert.Equal(t, 1.0, m["accounts"])
	assert.Equal(t, false, m["poller_enabled"])

	out, err = client.ResetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, out.AsMap()["success"])
}
