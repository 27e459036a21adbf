package slots

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"solperf/internal/pkg/geyser"
	"solperf/internal/pkg/geyser/geysertest"
	"solperf/pkg/constant"
)

func receive(t *testing.T, out <-chan Arrival) Arrival {
	t.Helper()
	select {
	case a := <-out:
		return a
	case <-time.After(5 * time.Second):
		t.Fatal("no arrival")
	}
	return Arrival{}
}

func TestGeyserGRPC_Stream(t *testing.T) {
	var (
		tokens  = make(chan []string, 1)
		reqs    = make(chan geysertest.RequestInfo, 2)
		release = make(chan struct{})
	)
	addr := geysertest.NewServer(t, func(stream geysertest.ServerStream) error {
		md, _ := metadata.FromIncomingContext(stream.Context())
		tokens <- md.Get("x-token")

		req, err := stream.Recv()
		if err != nil {
			return err
		}
		reqs <- geysertest.InspectRequest(req)

		for _, u := range []struct {
			slot   uint64
			status geyser.Commitment
		}{
			{100, geyser.Processed},
			{100, geyser.Confirmed},
			{101, geyser.Processed},
		} {
			if err := stream.Send(geysertest.NewSlotUpdate(u.slot, u.slot-1, u.status)); err != nil {
				return err
			}
		}

		if err := stream.Send(geysertest.NewPingUpdate()); err != nil {
			return err
		}
		ping, err := stream.Recv()
		if err != nil {
			return err
		}
		reqs <- geysertest.InspectRequest(ping)

		<-release
		return nil
	})

	src := NewGeyserGRPC("A", addr, "secret", geyser.Processed, 5*time.Second, 5*time.Second)
	assert.Equal(t, "A", src.Name())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Arrival, 8)
	done := make(chan error, 1)
	go func() { done <- src.Stream(ctx, out) }()

	assert.Equal(t, []string{"secret"}, <-tokens)

	sub := <-reqs
	assert.Equal(t, []string{slotFilterName}, sub.SlotFilters)
	assert.Equal(t, geyser.Processed, sub.Commitment)
	assert.False(t, sub.HasPing)

	a := receive(t, out)
	assert.Equal(t, "100", a.Key)
	assert.False(t, a.ReceivedAt.IsZero())
	assert.Equal(t, "101", receive(t, out).Key)
	assert.False(t, a.ReceivedAt.After(time.Now()))

	select {
	case ping := <-reqs:
		assert.True(t, ping.HasPing)
	case <-time.After(5 * time.Second):
		t.Fatal("ping was not answered")
	}

	cancel()
	close(release)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop on cancel")
	}
}

func TestGeyserGRPC_SessionEnded(t *testing.T) {
	addr := geysertest.NewServer(t, func(stream geysertest.ServerStream) error {
		if _, err := stream.Recv(); err != nil {
			return err
		}
		return stream.Send(geysertest.NewSlotUpdate(7, 6, geyser.Processed))
	})

	out := make(chan Arrival, 1)
	err := NewGeyserGRPC("A", addr, "", geyser.Processed, 5*time.Second, 5*time.Second).Stream(context.Background(), out)
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.Equal(t, "7", (<-out).Key)
}

func TestGeyserGRPC_EmptyUpdate(t *testing.T) {
	addr := geysertest.NewServer(t, func(stream geysertest.ServerStream) error {
		if _, err := stream.Recv(); err != nil {
			return err
		}
		if err := stream.Send(geyser.NewSubscribeUpdate()); err != nil {
			return err
		}
		<-stream.Context().Done()
		return nil
	})

	err := NewGeyserGRPC("A", addr, "", geyser.Processed, 5*time.Second, 5*time.Second).Stream(context.Background(), make(chan Arrival, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, constant.ErrEmptyUpdate))
	assert.False(t, IsPermanent(err))
}

func TestGeyserGRPC_IdleSession(t *testing.T) {
	addr := geysertest.NewServer(t, func(stream geysertest.ServerStream) error {
		if _, err := stream.Recv(); err != nil {
			return err
		}
		if err := stream.Send(geysertest.NewSlotUpdate(7, 6, geyser.Processed)); err != nil {
			return err
		}
		<-stream.Context().Done()
		return nil
	})

	out := make(chan Arrival, 1)
	done := make(chan error, 1)
	go func() {
		done <- NewGeyserGRPC("A", addr, "", geyser.Processed, 5*time.Second, 200*time.Millisecond).Stream(context.Background(), out)
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrIdle)
		assert.False(t, IsPermanent(err))
	case <-time.After(5 * time.Second):
		t.Fatal("silent session was not ended")
	}
	assert.Equal(t, "7", (<-out).Key)
}

func TestGeyserGRPC_InvalidURL(t *testing.T) {
	err := NewGeyserGRPC("A", "ftp://example.com", "", geyser.Processed, time.Second, time.Second).Stream(context.Background(), make(chan Arrival))
	assert.True(t, IsPermanent(err))
}

func TestGeyserGRPC_ConnectTimeout(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	err = NewGeyserGRPC("A", addr, "", geyser.Processed, 200*time.Millisecond, time.Second).Stream(context.Background(), make(chan Arrival))
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestGRPCTarget(t *testing.T) {
	for _, tc := range []struct {
		uri    string
		target string
		tls    bool
	}{
		{"127.0.0.1:10000", "127.0.0.1:10000", false},
		{"grpc.example.com:443", "grpc.example.com:443", true},
		{"https://grpc.example.com", "grpc.example.com:443", true},
		{"http://grpc.example.com", "grpc.example.com:80", false},
		{"grpcs://grpc.example.com:2053", "grpc.example.com:2053", true},
		{"http://127.0.0.1:10000", "127.0.0.1:10000", false},
	} {
		target, enableTLS, err := grpcTarget(tc.uri)
		require.NoError(t, err, tc.uri)
		assert.Equal(t, tc.target, target, tc.uri)
		assert.Equal(t, tc.tls, enableTLS, tc.uri)
	}

	for _, uri := range []string{"", "example.com", "ws://example.com", "https://"} {
		_, _, err := grpcTarget(uri)
		assert.Error(t, err, uri)
	}
}
