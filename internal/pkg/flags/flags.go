package flags

import (
	"time"

	"github.com/urfave/cli/v2"

	"solperf/pkg/constant"
)

// CLI flags for slotcompare
var (
	Name0 = &cli.StringFlag{
		Name:     "name-0",
		Usage:    "name of the first endpoint, used in winner lines",
		Required: true,
	}
	GRPCURL0 = &cli.StringFlag{
		Name:  "grpc-url-0",
		Usage: "yellowstone gRPC url of the first endpoint, e.g. https://host:443",
	}
	XToken0 = &cli.StringFlag{
		Name:  "x-token-0",
		Usage: "x-token sent to the first gRPC endpoint",
	}
	WebsocketURL0 = &cli.StringFlag{
		Name:  "websocket-url-0",
		Usage: "solana websocket RPC url of the first endpoint, e.g. wss://host",
	}
	Name1 = &cli.StringFlag{
		Name:     "name-1",
		Usage:    "name of the second endpoint, used in winner lines",
		Required: true,
	}
	GRPCURL1 = &cli.StringFlag{
		Name:  "grpc-url-1",
		Usage: "yellowstone gRPC url of the second endpoint",
	}
	XToken1 = &cli.StringFlag{
		Name:  "x-token-1",
		Usage: "x-token sent to the second gRPC endpoint",
	}
	WebsocketURL1 = &cli.StringFlag{
		Name:  "websocket-url-1",
		Usage: "solana websocket RPC url of the second endpoint",
	}
	Commitment = &cli.StringFlag{
		Name:  "commitment",
		Usage: "gRPC slot commitment, possible values: 'processed', 'confirmed', 'finalized'",
		Value: "processed",
	}
	WSMilestone = &cli.StringFlag{
		Name: "ws-milestone",
		Usage: "websocket slot milestone to race, possible values: 'firstShredReceived', 'createdBank', " +
			"'completed', 'optimisticConfirmation', 'root', 'frozen', 'dead', 'slot'",
		Value: "createdBank",
	}
	ChannelSize = &cli.IntFlag{
		Name:  "channel-size",
		Usage: "capacity of the per endpoint event channel",
		Value: constant.ChannelSize,
	}
	ConnectTimeout = &cli.DurationFlag{
		Name:  "connect-timeout",
		Usage: "timeout for establishing a connection to an endpoint",
		Value: constant.ConnectTimeout,
	}
	IdleTimeout = &cli.DurationFlag{
		Name:  "idle-timeout",
		Usage: "end a session that delivered no message for this long and reconnect",
		Value: constant.IdleTimeout,
	}
	Backoff = &cli.StringFlag{
		Name:  "backoff",
		Usage: "reconnect policy, possible values: 'exponential', 'reference' (fixed 1s)",
		Value: "exponential",
	}
	AlertAfter = &cli.IntFlag{
		Name:  "alert-after",
		Usage: "consecutive failed sessions after which every further failure is logged as a warning",
		Value: constant.AlertAfterFailures,
	}
	Retention = &cli.DurationFlag{
		Name:  "retention",
		Usage: "forget slots first seen longer ago than this, 0 keeps every slot",
		Value: time.Duration(0),
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "log level, possible values: 'trace', 'debug', 'info', 'warn', 'error'",
		Value:   "info",
		EnvVars: []string{"SLOTRACE_LOG_LEVEL"},
	}
	LogFile = &cli.StringFlag{
		Name:    "log-file",
		Usage:   "also write logs to this file, rotated by size",
		EnvVars: []string{"SLOTRACE_LOG_FILE"},
	}
	MetricsAddr = &cli.StringFlag{
		Name:    "metrics-addr",
		Usage:   "serve prometheus metrics on this address, e.g. :9100",
		EnvVars: []string{"SLOTRACE_METRICS_ADDR"},
	}
)

// All returns every flag in display order.
func All() []cli.Flag {
	return []cli.Flag{
		Name0, GRPCURL0, XToken0, WebsocketURL0,
		Name1, GRPCURL1, XToken1, WebsocketURL1,
		Commitment,
		WSMilestone,
		ChannelSize,
		ConnectTimeout,
		IdleTimeout,
		Backoff,
		AlertAfter,
		Retention,
		LogLevel,
		LogFile,
		MetricsAddr,
	}
}
