package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

const defaultDialTimeout = 2 * time.Second

// Event is one status change of one service.
type Event struct {
	Service  string
	Response *healthpb.HealthCheckResponse
}

// MarshalJSON renders the event with the health response in protobuf JSON form.
func (e Event) MarshalJSON() ([]byte, error) {
	body, err := protojson.Marshal(e.Response)
	if err != nil {
		return nil, fmt.Errorf("marshal health response: %w", err)
	}
	return json.Marshal(struct {
		Service string          `json:"service"`
		Health  json.RawMessage `json:"health"`
	}{Service: e.Service, Health: body})
}

// Dial connects to the health socket at path and waits until it is ready.
func Dial(ctx context.Context, path string, timeout time.Duration) (*grpc.ClientConn, error) {
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	conn, err := grpc.NewClient(
		"unix://"+path,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial health socket %q: %w", path, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for health socket readiness: %w", err)
	}
	return conn, nil
}

// Check returns the current status of service.
func Check(ctx context.Context, path string, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := Dial(ctx, path, 0)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check %q: %w", service, err)
	}
	return resp.GetStatus(), nil
}

// Watch streams status changes for services to fn until ctx ends or the
// server goes away. fn is called from one goroutine at a time.
func Watch(ctx context.Context, path string, services []string, fn func(Event) error) error {
	conn, err := Dial(ctx, path, 0)
	if err != nil {
		return err
	}
	defer conn.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := healthpb.NewHealthClient(conn)
	events := make(chan Event)
	errCh := make(chan error, len(services))

	var wg sync.WaitGroup
	for _, service := range services {
		wg.Add(1)
		go func(service string) {
			defer wg.Done()
			errCh <- watchService(watchCtx, client, service, events)
		}(service)
	}
	go func() {
		wg.Wait()
		close(events)
	}()

	var result error
	for event := range events {
		if result != nil {
			continue
		}
		if err := fn(event); err != nil {
			result = err
			cancel()
		}
	}
	if result != nil {
		return result
	}

	close(errCh)
	for err := range errCh {
		if err != nil && ctx.Err() == nil {
			return err
		}
	}
	return nil
}

func watchService(ctx context.Context, client healthpb.HealthClient, service string, events chan<- Event) error {
	stream, err := client.Watch(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return fmt.Errorf("watch %q: %w", service, err)
	}

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled || status.Code(err) == codes.Unavailable {
				return nil
			}
			return fmt.Errorf("watch %q: %w", service, err)
		}

		select {
		case events <- Event{Service: service, Response: resp}:
		case <-ctx.Done():
			return nil
		}
	}
}

// waitForReady blocks until gRPC connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
