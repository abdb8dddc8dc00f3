package grpc_control

import (
	"context"
	"fmt"
	"time"

	"mtm-hub/src/aggregator"
	"mtm-hub/src/helpers"
	"mtm-hub/src/logger"
	"mtm-hub/src/poller"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// PollTrigger runs one full polling cycle on demand.
type PollTrigger interface {
	RunOnce(ctx context.Context) poller.CycleReport
}

// ControlService implements HubControlServer
type ControlService struct {
	Aggregator *aggregator.Aggregator
	Poller     PollTrigger // nil when polling is disabled
	Logger     *logger.Logger
}

var _ HubControlServer = (*ControlService)(nil)

// NewControlService creates a new instance of ControlService
func NewControlService(agg *aggregator.Aggregator, p PollTrigger, log *logger.Logger) *ControlService {
	return &ControlService{
		Aggregator: agg,
		Poller:     p,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListAccounts(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snaps, err := s.Aggregator.Snapshots()
	if err != nil {
		return nil, toStatus(err)
	}

	aliases := make(map[string]string)
	for _, acc := range s.Aggregator.Accounts.Accounts() {
		aliases[acc.UserID] = acc.Alias
	}

	accounts := make([]interface{}, 0, len(snaps))
	for _, snap := range snaps {
		accounts = append(accounts, map[string]interface{}{
			"user_id":          snap.UserID,
			"alias":            aliases[snap.UserID],
			"opening_captured": snap.Opening.Captured,
			"opening_mtm":      snap.Opening.Value,
			"current_mtm":      snap.Stats.CurrentMTM,
			"max_mtm":          snap.Stats.MaxMTM,
			"min_mtm":          snap.Stats.MinMTM,
			"history_points":   snap.HistoryPoints,
		})
	}
	return structpb.NewStruct(map[string]interface{}{"accounts": accounts})
}

// -----------------------------------------------------------------------------

func (s *ControlService) ResetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := req.GetFields()["user_id"].GetStringValue()
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}

	if err := s.Aggregator.ResetAccount(ctx, userID); err != nil {
		return nil, toStatus(err)
	}

	s.Logger.Info("gRPC: reset %s", userID)
	return result(true, fmt.Sprintf("Reset stats for %s", userID))
}

// -----------------------------------------------------------------------------

func (s *ControlService) ResetAll(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.Aggregator.ResetAll(ctx); err != nil {
		return nil, toStatus(err)
	}

	s.Logger.Info("gRPC: reset all accounts")
	return result(true, "Reset stats for all users")
}

// -----------------------------------------------------------------------------

// TriggerPoll runs a cycle synchronously and reports its outcome.
func (s *ControlService) TriggerPoll(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.Poller == nil {
		return nil, status.Error(codes.FailedPrecondition, "background poller is disabled")
	}

	report := s.Poller.RunOnce(ctx)
	return structpb.NewStruct(map[string]interface{}{
		"success":     report.Failures == 0,
		"accounts":    report.Accounts,
		"failures":    report.Failures,
		"duration_ms": report.Duration.Milliseconds(),
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"phase":           s.Aggregator.Phase().String(),
		"time":            s.Aggregator.Clock.Now().Format(time.RFC3339),
		"last_reset_date": s.Aggregator.State.LastResetDate(),
		"accounts":        len(s.Aggregator.Accounts.Accounts()),
		"poller_enabled":  s.Poller != nil,
	})
}

// -----------------------------------------------------------------------------

func result(ok bool, msg string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{"success": ok, "message": msg})
}

func toStatus(err error) error {
	switch {
	case helpers.IsValidation(err):
		return status.Error(codes.InvalidArgument, helpers.PublicMessage(err))
	case helpers.IsNotFound(err):
		return status.Error(codes.NotFound, helpers.PublicMessage(err))
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
