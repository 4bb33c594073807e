package api

import (
	"context"
	"encoding/json"
	"strings"

	"reservo/internal/domain"
	"reservo/internal/live"
	"reservo/internal/models"
	"reservo/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const reservationServiceName = "reservo.reservation.v1.ReservationService"

const (
	methodReserve           = "/" + reservationServiceName + "/Reserve"
	methodGetAvailability   = "/" + reservationServiceName + "/GetAvailability"
	methodWatchAvailability = "/" + reservationServiceName + "/WatchAvailability"
	methodWatchBookings     = "/" + reservationServiceName + "/WatchBookings"
)

// ReservationServer is the gRPC surface. Messages are google.protobuf.Struct
// documents with the same fields as the JSON API.
type ReservationServer interface {
	Reserve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	WatchAvailability(req *structpb.Struct, stream grpc.ServerStream) error
	WatchBookings(req *structpb.Struct, stream grpc.ServerStream) error
}

var reservationServiceDesc = grpc.ServiceDesc{
	ServiceName: reservationServiceName,
	HandlerType: (*ReservationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Reserve", Handler: unaryHandler(methodReserve, ReservationServer.Reserve)},
		{MethodName: "GetAvailability", Handler: unaryHandler(methodGetAvailability, ReservationServer.GetAvailability)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchAvailability", Handler: streamHandler(ReservationServer.WatchAvailability), ServerStreams: true},
		{StreamName: "WatchBookings", Handler: streamHandler(ReservationServer.WatchBookings), ServerStreams: true},
	},
	Metadata: "reservo/reservation/v1/reservation.proto",
}

// RegisterReservationServer attaches srv to a gRPC server.
func RegisterReservationServer(s grpc.ServiceRegistrar, srv ReservationServer) {
	s.RegisterService(&reservationServiceDesc, srv)
}

type unaryMethod func(ReservationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReservationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReservationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamHandler(call func(ReservationServer, *structpb.Struct, grpc.ServerStream) error) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(structpb.Struct)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return call(srv.(ReservationServer), in, stream)
	}
}

// ReservationService implements ReservationServer over the booking services.
type ReservationService struct {
	reservations domain.Reserver
	availability *service.AvailabilityService
	admin        *service.BookingAdmin
}

func NewReservationService(svc Services) *ReservationService {
	return &ReservationService{
		reservations: svc.Reservations,
		availability: svc.Availability,
		admin:        svc.Admin,
	}
}

func (s *ReservationService) Reserve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body reserveRequest
	if err := fromStruct(req, &body); err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}

	booking, err := s.reservations.Reserve(ctx, body.toModel())
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{
		"success":   true,
		"bookingId": booking.ID,
		"message":   "Booking created successfully",
	})
}

func (s *ReservationService) GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	date := stringField(req, "date")
	if date == "" {
		return nil, status.Error(codes.InvalidArgument, "date is required")
	}
	day, err := s.availability.GetAvailability(ctx, date)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(day)
}

func (s *ReservationService) WatchAvailability(req *structpb.Struct, stream grpc.ServerStream) error {
	start, end := stringField(req, "start"), stringField(req, "end")
	if start == "" || end == "" {
		return status.Error(codes.InvalidArgument, "start and end are required")
	}
	return s.watch(stream, func(ctx context.Context, send func(any)) (<-chan struct{}, error) {
		sub, err := s.availability.SubscribeAvailability(ctx, start, end, func(days []*models.AvailabilityDate) {
			send(map[string]any{"dates": days})
		})
		if err != nil {
			return nil, err
		}
		return sub.Done(), nil
	})
}

func (s *ReservationService) WatchBookings(_ *structpb.Struct, stream grpc.ServerStream) error {
	return s.watch(stream, func(ctx context.Context, send func(any)) (<-chan struct{}, error) {
		sub, err := s.admin.SubscribeBookings(ctx, func(bookings []*models.Booking) {
			send(map[string]any{"bookings": bookings})
		})
		if err != nil {
			return nil, err
		}
		return sub.Done(), nil
	})
}

// watch streams snapshots until the client leaves or a send fails.
// send runs on the feed goroutine only, so sendErr is read after done closes.
func (s *ReservationService) watch(stream grpc.ServerStream, subscribe func(context.Context, func(any)) (<-chan struct{}, error)) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	var (
		sendErr error
		view    live.SnapshotView[any]
	)
	send := func(v any) {
		if !view.Apply(v) {
			return
		}
		msg, err := toStruct(v)
		if err == nil {
			err = stream.SendMsg(msg)
		}
		if err != nil {
			sendErr = err
			cancel()
		}
	}

	done, err := subscribe(ctx, send)
	if err != nil {
		return grpcError(err)
	}
	<-done
	return sendErr
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, v any) error {
	data, err := in.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func stringField(in *structpb.Struct, key string) string {
	if in == nil {
		return ""
	}
	if v, ok := in.GetFields()[key]; ok {
		return strings.TrimSpace(v.GetStringValue())
	}
	return ""
}
