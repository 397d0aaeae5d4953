package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/billbuddy/internal/middleware"
	"github.com/mmynk/billbuddy/internal/storage"
)

// Server is the reference remote store: one snapshot per user, kept in a
// storage.KV under "snapshot:<userId>".
type Server struct {
	kv storage.KV
}

// NewServer creates a Server persisting into kv.
func NewServer(kv storage.KV) *Server {
	return &Server{kv: kv}
}

func snapshotKey(userID string) string {
	return "snapshot:" + userID
}

// Register mounts the Push and Pull handlers on mux.
// Pass middleware.RequireAuth in opts; the handlers trust its user id.
func (s *Server) Register(mux *http.ServeMux, opts ...connect.HandlerOption) {
	mux.Handle(PushProcedure, connect.NewUnaryHandler(PushProcedure, s.Push, opts...))
	mux.Handle(PullProcedure, connect.NewUnaryHandler(PullProcedure, s.Pull, opts...))
}

// caller returns the authenticated user, checking it against the user the
// request names.
func caller(ctx context.Context, msg *structpb.Struct) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("no authenticated user"))
	}
	if requested := msg.GetFields()[fieldUserID].GetStringValue(); requested != "" && requested != userID {
		return "", connect.NewError(connect.CodePermissionDenied,
			fmt.Errorf("token for %s cannot access the snapshot of %s", userID, requested))
	}
	return userID, nil
}

// Push handles snapshot upload requests.
func (s *Server) Push(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[emptypb.Empty], error) {
	userID, err := caller(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	slog.Info("Push request received", "user_id", userID, "device", middleware.GetDevice(ctx))

	v, ok := req.Msg.GetFields()[fieldSnapshot]
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("snapshot is required"))
	}
	snap, err := snapshotFromValue(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	data, err := protojson.Marshal(v.GetStructValue())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if err := s.kv.Set(ctx, snapshotKey(userID), string(data)); err != nil {
		slog.Error("Failed to store snapshot", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeUnavailable, fmt.Errorf("failed to store snapshot: %w", err))
	}

	slog.Info("Snapshot stored", "user_id", userID,
		"customers", len(snap.Customers), "bills", len(snap.Bills), "payments", len(snap.Payments))
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// Pull handles snapshot download requests.
func (s *Server) Pull(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	slog.Info("Pull request received", "user_id", userID, "device", middleware.GetDevice(ctx))

	raw, ok, err := s.kv.Get(ctx, snapshotKey(userID))
	if err != nil {
		slog.Error("Failed to load snapshot", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeUnavailable, fmt.Errorf("failed to load snapshot: %w", err))
	}
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no snapshot for %s", userID))
	}

	stored := &structpb.Struct{}
	if err := protojson.Unmarshal([]byte(raw), stored); err != nil {
		return nil, connect.NewError(connect.CodeDataLoss, fmt.Errorf("stored snapshot is unreadable: %w", err))
	}
	return connect.NewResponse(&structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSnapshot: structpb.NewStructValue(stored),
	}}), nil
}
