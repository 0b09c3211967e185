package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bjaus/inproc"
)

// setup loads the config and builds a router with the notes routes.
func setup(configPath string, reg prometheus.Registerer) (inproc.Config, *inproc.Router, *slog.Logger, error) {
	cfg, err := inproc.LoadConfig(configPath)
	if err != nil {
		return inproc.Config{}, nil, nil, err
	}
	logger := cfg.NewLogger(os.Stderr)
	r, err := cfg.NewRouter(logger, reg)
	if err != nil {
		return inproc.Config{}, nil, nil, err
	}
	if _, err := newApp(r); err != nil {
		//nolint:errcheck // first Close never fails
		r.Close()
		return inproc.Config{}, nil, nil, err
	}
	return cfg, r, logger, nil
}

func demoCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Create and delete notes through the in-process transport, printing pushed frames",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, r, _, err := setup(*configPath, nil)
			if err != nil {
				return err
			}
			defer r.Close()
			return runDemo(cmd.Context(), cmd.OutOrStdout(), r, cfg.Scheme+"://local")
		},
	}
}

func runDemo(ctx context.Context, w io.Writer, r *inproc.Router, base string) error {
	// The frame printer and the request log share w.
	out := &lockedWriter{w: w}
	client := &http.Client{Transport: r.Transport()}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, base+"/events", nil)
	if err != nil {
		return err
	}
	events, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("open events: %w", err)
	}
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		sc := bufio.NewScanner(events.Body)
		for sc.Scan() {
			fmt.Fprintf(out, "  | %s\n", sc.Text())
		}
	}()

	post := func(text string) (string, error) {
		form := url.Values{"text": {text}}
		resp, err := client.Post(base+"/notes", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		fmt.Fprintf(out, "POST /notes %q -> %d\n", text, resp.StatusCode)
		loc, err := url.Parse(resp.Header.Get("Location"))
		if err != nil {
			return "", err
		}
		return loc.Query().Get("id"), nil
	}

	if _, err := post("buy milk"); err != nil {
		return err
	}
	id, err := post("call home")
	if err != nil {
		return err
	}

	del, err := http.NewRequestWithContext(ctx, http.MethodDelete, base+"/notes?id="+url.QueryEscape(id), nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(del)
	if err != nil {
		return err
	}
	resp.Body.Close()
	fmt.Fprintf(out, "DELETE /notes?id=%s -> %d\n", id, resp.StatusCode)

	resp, err = client.Get(base + "/notes")
	if err != nil {
		return err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "GET /notes -> %d %s\n", resp.StatusCode, body)

	// Give the printer a moment to drain, then abort the stream.
	time.Sleep(50 * time.Millisecond)
	cancel()
	events.Body.Close()
	<-printed
	fmt.Fprintf(out, "open connections after abort: %d\n", r.Hub().Len())
	return nil
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func serveCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the notes routes over HTTP for development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := prometheus.NewRegistry()
			_, r, logger, err := setup(*configPath, reg)
			if err != nil {
				return err
			}
			defer r.Close()

			bridge, err := inproc.CompressHTTP(r)
			if err != nil {
				return err
			}

			mux := chi.NewRouter()
			mux.Use(middleware.RealIP)
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			mux.Mount("/debug", middleware.Profiler())
			mux.Mount("/", bridge)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			logger.Info("starting dev bridge", "addr", addr)
			return listenAndServe(ctx, addr, mux, func() {
				//nolint:errcheck // open streams must end before Shutdown can finish
				r.Close()
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	return cmd
}

// listenAndServe blocks until ctx is cancelled, then shuts down gracefully.
// onShutdown runs as soon as shutdown starts.
func listenAndServe(ctx context.Context, addr string, h http.Handler, onShutdown func()) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(onShutdown)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func routesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, r, _, err := setup(*configPath, nil)
			if err != nil {
				return err
			}
			defer r.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "METHOD\tURL\n")
			for _, ri := range r.Routes() {
				fmt.Fprintf(tw, "%s\t%s://local%s\n", ri.Method, cfg.Scheme, ri.Path)
			}
			return tw.Flush()
		},
	}
}
