package discovery

import (
	"context"

	"go.uber.org/zap"

	"solana-launch-sniper/internal/solana"
)

// Feed emits launch events as trade triggers.
type Feed interface {
	// Subscribe returns a channel of launch events. The channel is closed
	// when the context is cancelled.
	Subscribe(ctx context.Context) (<-chan *LaunchEvent, error)
}

// WSLaunchFeed detects token launches from live log subscriptions.
type WSLaunchFeed struct {
	ws       solana.WSClient
	detector *LaunchDetector
	logger   *zap.Logger
}

// NewWSLaunchFeed creates a WebSocket-backed launch feed.
func NewWSLaunchFeed(ws solana.WSClient, detector *LaunchDetector, logger *zap.Logger) *WSLaunchFeed {
	if detector == nil {
		detector = NewLaunchDetector()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSLaunchFeed{
		ws:       ws,
		detector: detector,
		logger:   logger.Named("launch-feed"),
	}
}

// Subscribe subscribes to logs for every venue program and returns parsed
// launch events. Some providers only support one address per subscription,
// so each program gets its own.
func (f *WSLaunchFeed) Subscribe(ctx context.Context) (<-chan *LaunchEvent, error) {
	var logsChannels []<-chan solana.LogNotification
	for _, program := range f.detector.Programs() {
		logsCh, err := f.ws.SubscribeLogs(ctx, solana.LogsFilter{
			Mentions: []string{program},
		})
		if err != nil {
			return nil, err
		}
		logsChannels = append(logsChannels, logsCh)
		f.logger.Info("subscribed", zap.String("program", program))
	}

	eventsCh := make(chan *LaunchEvent, 100)

	go func() {
		defer close(eventsCh)

		merged := make(chan solana.LogNotification, 1000)
		for _, ch := range logsChannels {
			go func(logsCh <-chan solana.LogNotification) {
				for notif := range logsCh {
					select {
					case merged <- notif:
					case <-ctx.Done():
						return
					}
				}
			}(ch)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case notif := <-merged:
				f.process(ctx, eventsCh, notif)
			}
		}
	}()

	return eventsCh, nil
}

func (f *WSLaunchFeed) process(ctx context.Context, eventsCh chan<- *LaunchEvent, notif solana.LogNotification) {
	// Failed transactions never created a pool.
	if notif.Err != nil {
		return
	}

	events := f.detector.ParseLaunchEvents(notif.Logs, notif.Signature, notif.Slot)
	for _, event := range events {
		if event.Mint == "" {
			continue
		}
		f.logger.Info("launch detected",
			zap.String("mint", event.Mint),
			zap.String("platform", string(event.Platform)),
			zap.String("signature", event.Signature))

		select {
		case eventsCh <- event:
		case <-ctx.Done():
			return
		}
	}
}
