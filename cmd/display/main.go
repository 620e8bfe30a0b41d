package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/config"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/httpx"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/logging"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/realtime"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/wsclient"
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := config.LoadClient()
	var (
		store  string
		admin  bool
		orders []string
	)
	cmd := &cobra.Command{
		Use:   "display",
		Short: "Kitchen display: live order feed with polling fallback",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if store == "" && len(orders) == 0 {
				return fmt.Errorf("--store or --order is required")
			}
			return run(cmd.Context(), cfg, store, admin, orders)
		},
	}
	f := cmd.Flags()
	f.StringVar(&store, "store", "", "store slug to watch")
	f.BoolVar(&admin, "admin", false, "also watch the store's admin statistics feed")
	f.StringSliceVar(&orders, "order", nil, "order id to watch (repeatable)")
	f.StringVar(&cfg.APIURL, "api", cfg.APIURL, "HTTP API base URL")
	f.StringVar(&cfg.WSURL, "ws", cfg.WSURL, "websocket URL")
	f.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "fallback polling interval while disconnected")
	f.DurationVar(&cfg.BackoffBase, "backoff-base", cfg.BackoffBase, "first reconnect delay")
	f.Float64Var(&cfg.BackoffMultiplier, "backoff-multiplier", cfg.BackoffMultiplier, "reconnect delay growth")
	f.DurationVar(&cfg.BackoffMax, "backoff-max", cfg.BackoffMax, "reconnect delay cap")
	return cmd
}

func run(parent context.Context, cfg config.ClientConfig, store string, admin bool, orderIDs []string) error {
	log, err := logging.New(cfg.LogLevel, "display")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	httpc := &http.Client{Timeout: 5 * time.Second}
	fetch := func(ctx context.Context) error {
		if store != "" {
			var list []httpx.OrderView
			if err := getJSON(ctx, httpc, cfg.APIURL+"/stores/"+url.PathEscape(store)+"/orders", &list); err != nil {
				return err
			}
			fmt.Printf("[refresh] %s: %d orders today\n", store, len(list))
			for _, o := range list {
				fmt.Printf("  %s  %-16s %-10s %8.2f  %s\n", o.OrderNumber, o.Status, o.PaymentStatus, o.Total, o.CustomerName)
			}
		}
		for _, id := range orderIDs {
			var o httpx.OrderView
			if err := getJSON(ctx, httpc, cfg.APIURL+"/orders/"+url.PathEscape(id), &o); err != nil {
				return err
			}
			fmt.Printf("[refresh] %s %s eta=%dm\n", o.OrderNumber, o.Status, o.EstimatedTime)
		}
		return nil
	}

	poller := wsclient.NewPoller(cfg.PollInterval, fetch, log)
	poller.Start(ctx)

	client := wsclient.New(wsclient.Config{
		URL:       cfg.WSURL,
		Backoff:   wsclient.Backoff{Base: cfg.BackoffBase, Multiplier: cfg.BackoffMultiplier, Max: cfg.BackoffMax},
		Heartbeat: cfg.Heartbeat,
		OnState: func(s wsclient.State) {
			fmt.Printf("[connection] %s\n", s)
			poller.SetConnected(s == wsclient.Connected)
		},
	}, log)
	if store != "" {
		client.Join(realtime.StoreTopic(store))
		if admin {
			client.Join(realtime.AdminTopic(store))
		}
	}
	for _, id := range orderIDs {
		client.Join(realtime.OrderTopic(id))
	}
	client.Start(ctx)

	// SIGUSR1 stands in for the display regaining foreground.
	fg := make(chan os.Signal, 1)
	signal.Notify(fg, syscall.SIGUSR1)
	defer signal.Stop(fg)

	for {
		select {
		case <-ctx.Done():
			client.Close()
			<-poller.Done()
			return nil
		case <-fg:
			poller.Foreground()
		case ev, ok := <-client.Events():
			if !ok {
				<-poller.Done()
				return nil
			}
			fmt.Printf("[%s] %s %s\n", ev.Topic, ev.Name, ev.Payload)
		}
	}
}

func getJSON(ctx context.Context, c *http.Client, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
