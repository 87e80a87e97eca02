package grpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"groceryDelivery/internal/auth"
	"groceryDelivery/internal/events"
	"groceryDelivery/internal/orderstatus"
	"groceryDelivery/internal/service"
	"groceryDelivery/internal/tracking"
)

const (
	trackingServiceName = "grocery.tracking.v1.TrackingService"
	getTrackingMethod   = "/" + trackingServiceName + "/GetTracking"
	watchTrackingMethod = "/" + trackingServiceName + "/WatchTracking"
)

// TrackingServiceServer is the server API for the tracking service. Requests and
// responses are google.protobuf.Struct messages carrying the JSON tracking shape.
type TrackingServiceServer interface {
	GetTracking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	WatchTracking(req *structpb.Struct, stream grpc.ServerStream) error
}

// TrackingServer streams live delivery estimates to customers, agents and admins.
type TrackingServer struct {
	Tracking *service.TrackingService
	Bus      *events.Bus
	Logger   *zap.Logger
}

var _ TrackingServiceServer = (*TrackingServer)(nil)

func (s *TrackingServer) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// GetTracking returns the current estimate for order_id. The response is an empty
// struct while there is no agent fix or delivery coordinate yet.
func (s *TrackingServer) GetTracking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	orderID, err := orderIDFrom(req)
	if err != nil {
		return nil, err
	}
	u, err := s.Tracking.Track(ctx, p, orderID)
	if err != nil {
		return nil, toStatus(err)
	}
	if u == nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
	}
	return updateToStruct(u)
}

// WatchTracking sends the current estimate, then every new one for the order until
// the order reaches a terminal status or the client goes away.
func (s *TrackingServer) WatchTracking(req *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	orderID, err := orderIDFrom(req)
	if err != nil {
		return err
	}
	if s.Bus == nil {
		return status.Error(codes.Unavailable, "live tracking is not enabled")
	}

	updates := make(chan tracking.Update, 16)
	done := make(chan struct{})
	trackID := s.Bus.Subscribe(events.Tracking, func(e events.Event) {
		u, ok := e.Payload.(tracking.Update)
		if !ok || u.OrderID != orderID {
			return
		}
		select {
		case updates <- u:
		default:
		}
	})
	defer s.Bus.Unsubscribe(events.Tracking, trackID)
	var finish sync.Once
	statusID := s.Bus.Subscribe(events.OrderStatus, func(e events.Event) {
		c, ok := e.Payload.(service.StatusChange)
		if !ok || c.OrderID != orderID || !orderstatus.IsTerminal(c.To) {
			return
		}
		finish.Do(func() { close(done) })
	})
	defer s.Bus.Unsubscribe(events.OrderStatus, statusID)

	// Subscribed before the snapshot so no update falls in between.
	order, current, err := s.Tracking.Snapshot(ctx, p, orderID)
	if err != nil {
		return toStatus(err)
	}
	if current != nil {
		if err := sendUpdate(stream, current); err != nil {
			return err
		}
	}
	if orderstatus.IsTerminal(order.Status) {
		return nil
	}
	s.logger().Debug("tracking watch started", zap.Int64("order_id", orderID), zap.String("kind", p.Kind), zap.Int64("id", p.ID))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case u := <-updates:
			if err := sendUpdate(stream, &u); err != nil {
				return err
			}
		}
	}
}

func sendUpdate(stream grpc.ServerStream, u *tracking.Update) error {
	msg, err := updateToStruct(u)
	if err != nil {
		return err
	}
	return stream.SendMsg(msg)
}

func orderIDFrom(req *structpb.Struct) (int64, error) {
	v, ok := req.GetFields()["order_id"]
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "order_id is required")
	}
	n := v.GetNumberValue()
	if n <= 0 || n != float64(int64(n)) {
		return 0, status.Error(codes.InvalidArgument, "order_id must be a positive integer")
	}
	return int64(n), nil
}

// updateToStruct converts an update through its JSON form so both transports
// expose the same field names.
func updateToStruct(u *tracking.Update) (*structpb.Struct, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode update: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode update: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode update: %v", err))
	}
	return out, nil
}

func _TrackingService_GetTracking_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrackingServiceServer).GetTracking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getTrackingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TrackingServiceServer).GetTracking(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _TrackingService_WatchTracking_Handler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TrackingServiceServer).WatchTracking(in, stream)
}

// TrackingServiceDesc describes the tracking service for grpc.Server.RegisterService.
var TrackingServiceDesc = grpc.ServiceDesc{
	ServiceName: trackingServiceName,
	HandlerType: (*TrackingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetTracking", Handler: _TrackingService_GetTracking_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchTracking", Handler: _TrackingService_WatchTracking_Handler, ServerStreams: true},
	},
	Metadata: "grocery/tracking/v1/tracking.proto",
}

// RegisterTrackingServiceServer registers srv on s.
func RegisterTrackingServiceServer(s grpc.ServiceRegistrar, srv TrackingServiceServer) {
	s.RegisterService(&TrackingServiceDesc, srv)
}
