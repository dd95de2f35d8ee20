package remote

import (
	"context"
	"encoding/base64"
	"net"
	"testing"
	"time"

	"github.com/rbright/signflow/internal/conversion"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type structHandler func(context.Context, *structpb.Struct) (*structpb.Struct, error)

type fakeConversionServer struct {
	translate  structHandler
	classify   structHandler
	transcribe structHandler
}

func (f *fakeConversionServer) desc() *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Translate", Handler: unary(func() structHandler { return f.translate })},
			{MethodName: "Classify", Handler: unary(func() structHandler { return f.classify })},
			{MethodName: "Transcribe", Handler: unary(func() structHandler { return f.transcribe })},
		},
	}
}

func unary(pick func() structHandler) grpc.MethodHandler {
	return func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := pick()
		if handler == nil {
			return nil, status.Error(codes.Unimplemented, "not implemented")
		}
		return handler(ctx, in)
	}
}

func startConversionServer(t *testing.T, fake *fakeConversionServer, serving healthpb.HealthCheckResponse_ServingStatus) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	server.RegisterService(fake.desc(), fake)
	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, serving)
	healthpb.RegisterHealthServer(server, healthServer)

	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(server.Stop)
	return lis.Addr().String()
}

func newTestGRPCClient(t *testing.T, endpoint string) *GRPCClient {
	t.Helper()
	client, err := NewGRPCClient(Config{Transport: TransportGRPC, GRPCEndpoint: endpoint, Timeout: 2 * time.Second}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCTranslateAndClassify(t *testing.T) {
	fake := &fakeConversionServer{
		translate: func(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			fields := in.GetFields()
			if fields["source"].GetStringValue() != "mr-IN" || fields["target"].GetStringValue() != "en-US" {
				return nil, status.Error(codes.InvalidArgument, "bad languages")
			}
			return structpb.NewStruct(map[string]any{"translated_text": "good morning"})
		},
		classify: func(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return structpb.NewStruct(map[string]any{
				"original_text": in.GetFields()["text"].GetStringValue(),
				"isl_text":      "MORNING GOOD",
				"emotion":       "neutral",
				"confidence":    0.66,
			})
		},
	}
	client := newTestGRPCClient(t, startConversionServer(t, fake, healthpb.HealthCheckResponse_SERVING))

	translated, err := client.Translate(context.Background(), "suprabhat", "mr-IN")
	require.NoError(t, err)
	require.Equal(t, "good morning", translated)

	result, err := client.Classify(context.Background(), translated)
	require.NoError(t, err)
	require.Equal(t, conversion.Result{
		GrammarText: "MORNING GOOD",
		Emotion:     conversion.EmotionNeutral,
		Confidence:  0.66,
	}, result)
}

func TestGRPCErrorsWrapSentinels(t *testing.T) {
	fake := &fakeConversionServer{
		translate: func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
			return nil, status.Error(codes.Unavailable, "model warming up")
		},
		classify: func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
			return structpb.NewStruct(map[string]any{"emotion": "happy"})
		},
	}
	client := newTestGRPCClient(t, startConversionServer(t, fake, healthpb.HealthCheckResponse_SERVING))

	_, err := client.Translate(context.Background(), "hola", "es-ES")
	require.ErrorIs(t, err, ErrTranslation)
	require.Equal(t, codes.Unavailable, status.Code(err))

	_, err = client.Classify(context.Background(), "hello")
	require.ErrorIs(t, err, ErrConversion)
	require.Contains(t, err.Error(), "missing isl_text")

	_, err = client.Transcribe(context.Background(), []byte("RIFF"), "en-US")
	require.ErrorIs(t, err, ErrTranscription)
}

func TestGRPCTranscribeSendsBase64Audio(t *testing.T) {
	wav := []byte{'R', 'I', 'F', 'F', 0, 1, 2, 3}
	fake := &fakeConversionServer{
		transcribe: func(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			audio, err := base64.StdEncoding.DecodeString(in.GetFields()["audio_wav"].GetStringValue())
			if err != nil || string(audio) != string(wav) {
				return nil, status.Error(codes.InvalidArgument, "bad audio")
			}
			return structpb.NewStruct(map[string]any{"text": "bonjour " + in.GetFields()["language"].GetStringValue()})
		},
	}
	client := newTestGRPCClient(t, startConversionServer(t, fake, healthpb.HealthCheckResponse_SERVING))

	text, err := client.Transcribe(context.Background(), wav, "fr-FR")
	require.NoError(t, err)
	require.Equal(t, "bonjour fr-FR", text)
}

func TestGRPCReady(t *testing.T) {
	serving := newTestGRPCClient(t, startConversionServer(t, &fakeConversionServer{}, healthpb.HealthCheckResponse_SERVING))
	require.NoError(t, serving.Ready(context.Background()))

	notServing := newTestGRPCClient(t, startConversionServer(t, &fakeConversionServer{}, healthpb.HealthCheckResponse_NOT_SERVING))
	err := notServing.Ready(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	require.Contains(t, err.Error(), "NOT_SERVING")
}

func TestGRPCReadyTimesOutWithoutServer(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	client, err := NewGRPCClient(Config{GRPCEndpoint: addr, Timeout: 200 * time.Millisecond}, nil)
	require.NoError(t, err)
	defer client.Close()

	err = client.Ready(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNewGRPCClientRequiresEndpoint(t *testing.T) {
	_, err := NewGRPCClient(Config{GRPCEndpoint: "  "}, nil)
	require.ErrorContains(t, err, "endpoint is empty")
}
