package remote

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/signflow/internal/conversion"
	"github.com/rbright/signflow/internal/language"
	"github.com/rbright/signflow/internal/version"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the gRPC service the conversion backend registers.
const ServiceName = "signflow.conversion.v1.Conversion"

const (
	MethodTranslate  = "/" + ServiceName + "/Translate"
	MethodClassify   = "/" + ServiceName + "/Classify"
	MethodTranscribe = "/" + ServiceName + "/Transcribe"
)

// GRPCClient calls the conversion service with google.protobuf.Struct
// payloads that mirror the HTTP JSON bodies field for field.
type GRPCClient struct {
	cfg    Config
	conn   *grpc.ClientConn
	logger *slog.Logger
}

// NewGRPCClient creates a lazily connecting client for cfg.GRPCEndpoint.
func NewGRPCClient(cfg Config, logger *slog.Logger) (*GRPCClient, error) {
	endpoint := strings.TrimSpace(cfg.GRPCEndpoint)
	if endpoint == "" {
		return nil, errors.New("remote grpc endpoint is empty")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(version.UserAgent()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial conversion grpc %q: %w", endpoint, err)
	}
	return &GRPCClient{cfg: cfg, conn: conn, logger: logger}, nil
}

// Translate invokes Translate with {text, source, target}.
func (c *GRPCClient) Translate(ctx context.Context, text string, source language.Code) (string, error) {
	var resp translateResponse
	err := c.invoke(ctx, MethodTranslate, map[string]any{
		"text":   text,
		"source": source.String(),
		"target": language.Pivot.String(),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranslation, err)
	}

	translated := strings.TrimSpace(resp.TranslatedText)
	if translated == "" {
		return "", fmt.Errorf("%w: response missing translated_text", ErrTranslation)
	}
	return translated, nil
}

// Classify invokes Classify with {text}.
func (c *GRPCClient) Classify(ctx context.Context, text string) (conversion.Result, error) {
	var resp classifyResponse
	if err := c.invoke(ctx, MethodClassify, map[string]any{"text": text}, &resp); err != nil {
		return conversion.Result{}, fmt.Errorf("%w: %w", ErrConversion, err)
	}
	return resp.result()
}

// Transcribe invokes Transcribe with base64 WAV audio.
func (c *GRPCClient) Transcribe(ctx context.Context, wav []byte, lang language.Code) (string, error) {
	var resp transcribeResponse
	err := c.invoke(ctx, MethodTranscribe, map[string]any{
		"language":  lang.String(),
		"audio_wav": base64.StdEncoding.EncodeToString(wav),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Ready waits for the channel to connect, then asks the health service
// whether ServiceName is serving.
func (c *GRPCClient) Ready(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.conn.Connect()
	if err := waitForReady(readyCtx, c.conn); err != nil {
		return fmt.Errorf("%w: wait for grpc readiness: %w", ErrUnavailable, err)
	}

	resp, err := healthpb.NewHealthClient(c.conn).Check(readyCtx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("%w: health check: %w", ErrUnavailable, err)
	}
	if status := resp.GetStatus(); status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: health status %s", ErrUnavailable, status)
	}
	return nil
}

// Close tears down the channel.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) invoke(ctx context.Context, method string, fields map[string]any, out any) error {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp := new(structpb.Struct)
	started := time.Now()
	if err := c.conn.Invoke(callCtx, method, req, resp); err != nil {
		c.logger.Warn("remote call failed", "method", method, "error", err.Error())
		return fmt.Errorf("%s: %w", method, err)
	}
	c.logger.Debug("remote call complete", "method", method, "latency_ms", time.Since(started).Milliseconds())

	body, err := protojson.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return decodeJSON(body, out)
}

// waitForReady blocks until the channel reaches Ready or fails.
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
