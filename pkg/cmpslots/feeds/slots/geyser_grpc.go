package slots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"solperf/internal/pkg/geyser"
	"solperf/pkg/constant"
)

const (
	slotFilterName = "client"
	maxRecvMsgSize = 64 * 1024 * 1024
	// grpc raises shorter keepalive intervals to this anyway
	minKeepaliveTime = 10 * time.Second
)

// GeyserGRPC streams slot updates from a Yellowstone gRPC endpoint.
type GeyserGRPC struct {
	name           string
	uri            string
	xToken         string
	commitment     geyser.Commitment
	connectTimeout time.Duration
	idleTimeout    time.Duration
}

func NewGeyserGRPC(name, uri, xToken string, commitment geyser.Commitment, connectTimeout, idleTimeout time.Duration) *GeyserGRPC {
	if connectTimeout <= 0 {
		connectTimeout = constant.ConnectTimeout
	}
	if idleTimeout <= 0 {
		idleTimeout = constant.IdleTimeout
	}
	return &GeyserGRPC{
		name:           name,
		uri:            uri,
		xToken:         xToken,
		commitment:     commitment,
		connectTimeout: connectTimeout,
		idleTimeout:    idleTimeout,
	}
}

// Stream runs one subscription session and returns when it ends.
func (g *GeyserGRPC) Stream(ctx context.Context, out chan<- Arrival) error {
	target, enableTLS, err := grpcTarget(g.uri)
	if err != nil {
		return Permanent(err)
	}

	log.Infof("Initiating connection to %s %v", g.Name(), g.uri)

	dialOptions := []grpc.DialOption{
		grpc.WithInitialWindowSize(constant.WindowSize),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMsgSize)),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                max(g.idleTimeout, minKeepaliveTime),
			Timeout:             g.connectTimeout,
			PermitWithoutStream: true,
		}),
	}
	if enableTLS {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, "")))
	} else {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(target, dialOptions...)
	if err != nil {
		return Permanent(fmt.Errorf("failed to create %s client: %w", g.Name(), err))
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debugf("failed to close %s connection: %v", g.Name(), err)
		}
	}()

	if err := waitReady(ctx, conn, g.connectTimeout); err != nil {
		return fmt.Errorf("failed to connect %s: %w", g.Name(), err)
	}

	log.Infof("%s connection to %s established", g.Name(), g.uri)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if g.xToken != "" {
		streamCtx = metadata.AppendToOutgoingContext(streamCtx, "x-token", g.xToken)
	}

	// armed only while blocked in Recv; any update, pings included, counts
	var idled atomic.Bool
	idle := time.AfterFunc(g.idleTimeout, func() {
		idled.Store(true)
		cancel()
	})
	idle.Stop()
	defer idle.Stop()

	stream, err := geyser.Subscribe(streamCtx, conn, geyser.NewSlotsRequest(slotFilterName, g.commitment))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("could not subscribe %s: %w", g.Name(), err)
	}
	defer func() {
		if err := stream.CloseSend(); err != nil {
			log.Debugf("failed to close %s stream: %v", g.Name(), err)
		}
	}()

	for {
		idle.Reset(g.idleTimeout)
		u, err := stream.Recv()
		timeReceived := time.Now()
		idle.Stop()

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if idled.Load() {
				return fmt.Errorf("%s: %w for %s", g.Name(), ErrIdle, g.idleTimeout)
			}
			if errors.Is(err, io.EOF) {
				return ErrSessionEnded
			}
			if errors.Is(err, constant.ErrEmptyUpdate) {
				return fmt.Errorf("malformed update from %s: %w", g.Name(), err)
			}
			return fmt.Errorf("can not receive new message from %s feed: %w, grpc code: %s",
				g.Name(), err, status.Convert(err).Code().String())
		}

		switch u.Kind {
		case geyser.KindSlot:
			if u.Status != g.commitment {
				log.Tracef("%s: skip slot %d with status %s", g.Name(), u.Slot, u.Status)
				continue
			}
			select {
			case out <- Arrival{Key: SlotKey(u.Slot), ReceivedAt: timeReceived}:
			case <-ctx.Done():
				return ctx.Err()
			}
		case geyser.KindPing:
			if err := stream.Send(geyser.NewPingRequest(1)); err != nil {
				return fmt.Errorf("failed to answer %s ping: %w", g.Name(), err)
			}
		case geyser.KindPong, geyser.KindOther:
		}
	}
}

func (g *GeyserGRPC) Name() string {
	return g.name
}

func (g *GeyserGRPC) String() string {
	return fmt.Sprintf("GeyserGRPC(%s)", g.uri)
}

// grpcTarget turns an endpoint url into a dial target. https urls and port
// 443 use TLS.
func grpcTarget(uri string) (string, bool, error) {
	if uri == "" {
		return "", false, errors.New("empty gRPC url")
	}

	if !strings.Contains(uri, "://") {
		host, port, err := net.SplitHostPort(uri)
		if err != nil {
			return "", false, fmt.Errorf("invalid gRPC url %q: %w", uri, err)
		}
		return net.JoinHostPort(host, port), port == "443", nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", false, fmt.Errorf("invalid gRPC url %q: %w", uri, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid gRPC url %q: missing host", uri)
	}

	var enableTLS bool
	switch u.Scheme {
	case "https", "grpcs":
		enableTLS = true
	case "http", "grpc":
	default:
		return "", false, fmt.Errorf("invalid gRPC url %q: unsupported scheme %q", uri, u.Scheme)
	}

	port := u.Port()
	if port == "" {
		port = "80"
		if enableTLS {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), enableTLS, nil
}

func waitReady(ctx context.Context, conn *grpc.ClientConn, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn.Connect()
	for {
		s := conn.GetState()
		switch s {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("connection shut down")
		}
		if !conn.WaitForStateChange(ctx, s) {
			return fmt.Errorf("connection not ready after %s (last state %s): %w", timeout, s, ctx.Err())
		}
	}
}
