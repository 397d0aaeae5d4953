// Package remote carries snapshots between the device and the sync server
// over Connect RPC.
//
// Messages are protobuf well-known types: requests and Pull responses are
// google.protobuf.Struct values holding the JSON form of models.Snapshot and
// Push answers google.protobuf.Empty, so no generated code is needed on
// either side.
package remote

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/billbuddy/internal/models"
)

const (
	// ServiceName is the fully-qualified name of the snapshot service.
	ServiceName = "billbuddy.sync.v1.SnapshotService"

	PushProcedure = "/" + ServiceName + "/Push"
	PullProcedure = "/" + ServiceName + "/Pull"
)

// Field names inside the Struct messages.
const (
	fieldUserID   = "userId"
	fieldSnapshot = "snapshot"
)

func snapshotToValue(snap *models.Snapshot) (*structpb.Value, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to convert snapshot: %w", err)
	}
	return structpb.NewStructValue(s), nil
}

func snapshotFromValue(v *structpb.Value) (*models.Snapshot, error) {
	s := v.GetStructValue()
	if s == nil {
		return nil, fmt.Errorf("snapshot is not an object")
	}
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

func newRequest(userID string, snap *models.Snapshot) (*structpb.Struct, error) {
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldUserID: structpb.NewStringValue(userID),
	}}
	if snap != nil {
		v, err := snapshotToValue(snap)
		if err != nil {
			return nil, err
		}
		msg.Fields[fieldSnapshot] = v
	}
	return msg, nil
}
