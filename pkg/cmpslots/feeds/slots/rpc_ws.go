package slots

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sugawarayuuta/sonnet"

	"solperf/internal/pkg/utils"
	"solperf/internal/pkg/ws"
	"solperf/pkg/constant"
)

const (
	slotsUpdatesNotification = "slotsUpdatesNotification"
	slotNotification         = "slotNotification"
)

type slotNotificationResponse struct {
	Method string `json:"method"`
	Params *struct {
		Result struct {
			Type string  `json:"type"`
			Slot *uint64 `json:"slot"`
		} `json:"result"`
	} `json:"params"`
}

// RPCWS streams slot notifications from a solana websocket RPC endpoint,
// either slotsUpdatesSubscribe filtered to a set of milestones or the plain
// slotSubscribe feed when the milestone is "slot".
type RPCWS struct {
	name           string
	uri            string
	milestones     utils.HashSet[Milestone]
	connectTimeout time.Duration
	idleTimeout    time.Duration
}

func NewRPCWS(name, uri string, milestones utils.HashSet[Milestone], connectTimeout, idleTimeout time.Duration) *RPCWS {
	if milestones.Empty() {
		milestones = utils.NewHashSet(DefaultMilestone)
	}
	if connectTimeout <= 0 {
		connectTimeout = constant.ConnectTimeout
	}
	if idleTimeout <= 0 {
		idleTimeout = constant.IdleTimeout
	}
	return &RPCWS{
		name:           name,
		uri:            uri,
		milestones:     milestones,
		connectTimeout: connectTimeout,
		idleTimeout:    idleTimeout,
	}
}

// Stream runs one subscription session and returns when it ends.
func (w *RPCWS) Stream(ctx context.Context, out chan<- Arrival) error {
	if !strings.HasPrefix(w.uri, "wss:") && !strings.HasPrefix(w.uri, "ws:") {
		return Permanent(fmt.Errorf("invalid WebSocket connection protocol in %q", w.uri))
	}

	log.Infof("Initiating connection to %s %v", w.Name(), w.uri)

	dialCtx, cancel := context.WithTimeout(ctx, w.connectTimeout)
	conn, err := ws.NewConnection(dialCtx, w.uri, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("cannot establish connection to %s: %w", w.uri, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debugf("cannot close socket connection to %s %s: %v", w.Name(), w.uri, err)
		}
	}()

	// a blocked read only returns once the socket is closed
	stop := context.AfterFunc(ctx, func() { _ = conn.Abort() })
	defer stop()

	watchdog := time.AfterFunc(w.connectTimeout, func() { _ = conn.Abort() })
	var sub *ws.Subscription
	if w.milestones.Contains(MilestoneSlot) {
		sub, err = conn.SubscribeSlot(1)
	} else {
		sub, err = conn.SubscribeSlotsUpdates(1)
	}
	if !watchdog.Stop() && err == nil {
		err = errors.New("subscribe timed out")
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("cannot subscribe to %s: %w", w.Name(), err)
	}

	log.Infof("%s connection to %s established, subscription %s", w.Name(), w.uri, sub.ID)

	defer func() {
		if ctx.Err() != nil {
			return
		}
		if err := sub.Unsubscribe(); err != nil {
			log.Debugf("cannot unsubscribe from %s: %v", w.Name(), err)
		}
	}()

	for {
		// pongs do not move the deadline, a node that stopped publishing
		// may still answer pings
		if err := conn.SetReadDeadline(time.Now().Add(w.idleTimeout)); err != nil {
			return fmt.Errorf("cannot set read deadline on %s: %w", w.Name(), err)
		}

		data, err := sub.NextMessage()
		timeReceived := time.Now()

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return fmt.Errorf("%s: %w for %s", w.Name(), ErrIdle, w.idleTimeout)
			}
			return fmt.Errorf("failed to get new message from %s: %w", w.Name(), err)
		}

		key, ok, err := w.parseMessage(data)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		select {
		case out <- Arrival{Key: key, ReceivedAt: timeReceived}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// parseMessage returns the race key of a notification, or ok=false for a
// notification about a milestone that is not raced.
func (w *RPCWS) parseMessage(data []byte) (string, bool, error) {
	var msg slotNotificationResponse
	if err := sonnet.Unmarshal(data, &msg); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal notification from %s: %w", w.Name(), err)
	}
	if msg.Params == nil || msg.Params.Result.Slot == nil {
		return "", false, fmt.Errorf("malformed notification from %s: %.200s", w.Name(), data)
	}

	slot := *msg.Params.Result.Slot
	switch msg.Method {
	case slotNotification:
		return SlotKey(slot), true, nil
	case slotsUpdatesNotification:
		m := Milestone(msg.Params.Result.Type)
		if !w.milestones.Contains(m) {
			return "", false, nil
		}
		return MilestoneKey(slot, m), true, nil
	}

	return "", false, fmt.Errorf("unexpected method %q from %s", msg.Method, w.Name())
}

func (w *RPCWS) Name() string {
	return w.name
}

func (w *RPCWS) String() string {
	return fmt.Sprintf("RPCWS(%s)", w.uri)
}
