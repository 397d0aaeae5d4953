package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/billbuddy/internal/apperr"
	"github.com/mmynk/billbuddy/internal/metrics"
	"github.com/mmynk/billbuddy/internal/middleware"
	"github.com/mmynk/billbuddy/internal/models"
	"github.com/mmynk/billbuddy/internal/syncer"
)

var _ syncer.RemoteStore = (*Client)(nil)

// Client is a syncer.RemoteStore backed by a sync server.
type Client struct {
	push *connect.Client[structpb.Struct, emptypb.Empty]
	pull *connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient creates a Client for the server at baseURL, authenticating with
// token. A nil httpClient uses http.DefaultClient.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	opts := connect.WithInterceptors(
		middleware.LoggingInterceptor(m),
		middleware.BearerToken(token),
	)
	return &Client{
		push: connect.NewClient[structpb.Struct, emptypb.Empty](httpClient, baseURL+PushProcedure, opts),
		pull: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+PullProcedure, opts),
	}
}

// Push uploads snap as the user's snapshot.
func (c *Client) Push(ctx context.Context, userID string, snap *models.Snapshot) error {
	msg, err := newRequest(userID, snap)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "snapshot cannot be sent")
	}
	if _, err := c.push.CallUnary(ctx, connect.NewRequest(msg)); err != nil {
		return classify("push", err)
	}
	return nil
}

// Pull downloads the user's snapshot, or nil if there is none.
func (c *Client) Pull(ctx context.Context, userID string) (*models.Snapshot, error) {
	msg, err := newRequest(userID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.pull.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		if connect.CodeOf(err) == connect.CodeNotFound {
			return nil, nil
		}
		return nil, classify("pull", err)
	}

	v, ok := resp.Msg.GetFields()[fieldSnapshot]
	if !ok {
		return nil, nil
	}
	snap, err := snapshotFromValue(v)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDataInconsistency, err, "remote snapshot is unreadable")
	}
	return snap, nil
}

// classify maps a Connect error onto an apperr kind so retry policy can
// tell permanent failures from transient ones.
func classify(op string, err error) error {
	var kind apperr.Kind
	switch connect.CodeOf(err) {
	case connect.CodeUnauthenticated:
		kind = apperr.KindUnauthorized
	case connect.CodePermissionDenied:
		kind = apperr.KindPermission
	case connect.CodeInvalidArgument:
		kind = apperr.KindValidation
	case connect.CodeDataLoss:
		kind = apperr.KindDataInconsistency
	default:
		kind = apperr.KindTransient
	}

	msg := err.Error()
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		msg = connectErr.Message()
	}
	return apperr.Wrap(kind, err, "%s", fmt.Sprintf("remote %s failed: %s", op, msg))
}
