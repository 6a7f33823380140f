package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"nhooyr.io/websocket"

	"github.com/bft-labs/muxship/internal/frame"
	"github.com/bft-labs/muxship/pkg/log"
)

// newSinkCommand returns a debugging peer that accepts connections and logs
// the frames it receives.
func newSinkCommand() *cobra.Command {
	var (
		listen    string
		transport string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "sink",
		Short: "Accept muxship connections and log the received frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewConsoleAdapter(os.Stderr, logLevel).With(log.String("component", "sink"))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			switch transport {
			case "tcp":
				return sinkTCP(ctx, listen, logger)
			case "websocket":
				return sinkWebSocket(ctx, listen, logger)
			default:
				return fmt.Errorf("unknown transport %q", transport)
			}
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":9000", "listen address")
	cmd.Flags().StringVar(&transport, "transport", "tcp", "transport: tcp or websocket")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}

func sinkTCP(ctx context.Context, addr string, logger log.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	logger.Info("listening", log.String("addr", ln.Addr().String()), log.String("transport", "tcp"))

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			defer c.Close()
			l := logger.With(log.String("remote", c.RemoteAddr().String()))
			n, err := readFrames(c, l)
			logConnEnd(l, n, err)
		}()
	}
}

func sinkWebSocket(ctx context.Context, addr string, logger log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := websocket.Accept(w, r, nil)
			if err != nil {
				logger.Warn("websocket accept failed", log.Err(err))
				return
			}
			defer c.CloseNow()
			c.SetReadLimit(frame.HeaderSize + frame.MaxBodySize)

			l := logger.With(log.String("remote", r.RemoteAddr))
			total := 0
			for {
				_, data, err := c.Read(r.Context())
				if err != nil {
					if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
						err = nil
					}
					logConnEnd(l, total, err)
					return
				}
				n, err := readFrames(bytes.NewReader(data), l)
				total += n
				if err != nil {
					l.Warn("malformed message", log.Err(err))
				}
			}
		}),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", log.String("addr", addr), log.String("transport", "websocket"))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// readFrames logs every frame read from r until it ends.
func readFrames(r io.Reader, logger log.Logger) (int, error) {
	rd := frame.NewReader(r)
	n := 0
	for {
		f, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
		logger.Info("frame",
			log.Stream(uint16(f.Stream)),
			log.Int("bytes", len(f.Body)))
	}
}

func logConnEnd(logger log.Logger, frames int, err error) {
	if err != nil {
		logger.Warn("connection ended abnormally", log.Int("frames", frames), log.Err(err))
		return
	}
	logger.Info("connection closed", log.Int("frames", frames))
}
