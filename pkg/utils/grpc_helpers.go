package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import (
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/lewisedginton/gemini_relay/pkg/logger"
)

// ServeGRPC binds addr and serves s in the background.
// It returns the bound address (useful with port 0), a channel that receives the
// result of Serve, and a function that stops the server gracefully.
// A stop that lands before Serve starts is a clean shutdown, not an error.
func ServeGRPC(s *grpc.Server, addr string, log logger.Logger) (net.Addr, chan error, func(), error) {
	lis, err := net.Listen("tcp", addr) //nolint:noctx // gRPC server manages listener lifecycle
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("Starting gRPC server", logger.StringField("address", lis.Addr().String()))
		err := s.Serve(lis)
		if errors.Is(err, grpc.ErrServerStopped) {
			err = nil
		}
		errs <- err
		close(errs)
	}()

	stop := func() {
		log.Info("Stopping gRPC server")
		s.GracefulStop()
	}
	return lis.Addr(), errs, stop, nil
}
