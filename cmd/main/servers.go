package main

import (
	"fmt"
	"net"

	"mtm-hub/src/aggregator"
	"mtm-hub/src/config"
	pb "mtm-hub/src/grpc_control"
	"mtm-hub/src/logger"
	"mtm-hub/src/poller"
	"mtm-hub/src/server"

	"google.golang.org/grpc"
)

// -----------------------------------------------------------------------------

// startServers runs the HTTP API and, when grpc_port is set, the control
// service. The returned gRPC server is nil when disabled.
func startServers(
	srv *server.HubServer,
	agg *aggregator.Aggregator,
	bgPoller *poller.Poller,
	conf *config.Config,
	appLogger *logger.Logger,
) *grpc.Server {

	// 1. HTTP + WebSocket
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	// 2. gRPC Control Server
	if conf.GrpcPort == 0 {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", conf.GrpcHost, conf.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		appLogger.Critical("failed to listen for gRPC: %v", err)
		return nil
	}

	var trigger pb.PollTrigger
	if bgPoller != nil {
		trigger = bgPoller
	}

	grpcServer := grpc.NewServer()
	pb.RegisterHubControlServer(grpcServer, pb.NewControlService(agg, trigger, logger.NewLogger(conf.MConfig, "ControlService")))

	go func() {
		appLogger.Info("Starting gRPC Control Server on %s", addr)
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Critical("failed to serve gRPC: %v", err)
		}
	}()
	return grpcServer
}
