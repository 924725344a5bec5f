package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"
	"slotbook/internal/service"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	bookingServiceName = "slotbook.booking.v1.BookingService"

	methodGetAvailableSlots = "/" + bookingServiceName + "/GetAvailableSlots"
	methodCreateBooking     = "/" + bookingServiceName + "/CreateBooking"
	methodCancelBooking     = "/" + bookingServiceName + "/CancelBooking"
)

type GetAvailableSlotsRequest struct {
	BusinessID  string `json:"business_id,omitempty"`
	ServiceID   string `json:"service_id"`
	Date        string `json:"date"`
	StepMinutes int    `json:"step_minutes,omitempty"`
}

type GetAvailableSlotsResponse struct {
	ServiceID string   `json:"service_id"`
	Date      string   `json:"date"`
	Slots     []string `json:"slots"`
}

type CreateBookingRequest struct {
	ServiceID     string `json:"service_id"`
	StartTime     string `json:"start_time"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Notes         string `json:"notes,omitempty"`
}

type CancelBookingRequest struct {
	BookingID string `json:"booking_id"`
}

type BookingResponse struct {
	Booking *models.Booking `json:"booking"`
}

// BookingServiceServer is the server side of slotbook.booking.v1.BookingService.
type BookingServiceServer interface {
	GetAvailableSlots(context.Context, *GetAvailableSlotsRequest) (*GetAvailableSlotsResponse, error)
	CreateBooking(context.Context, *CreateBookingRequest) (*BookingResponse, error)
	CancelBooking(context.Context, *CancelBookingRequest) (*BookingResponse, error)
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&bookingServiceDesc, srv)
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: bookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailableSlots", Handler: getAvailableSlotsHandler},
		{MethodName: "CreateBooking", Handler: createBookingHandler},
		{MethodName: "CancelBooking", Handler: cancelBookingHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func getAvailableSlotsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetAvailableSlotsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServiceServer).GetAvailableSlots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetAvailableSlots}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).GetAvailableSlots(ctx, req.(*GetAvailableSlotsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func createBookingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateBookingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServiceServer).CreateBooking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCreateBooking}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).CreateBooking(ctx, req.(*CreateBookingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func cancelBookingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CancelBookingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServiceServer).CancelBooking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCancelBooking}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).CancelBooking(ctx, req.(*CancelBookingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// BookingServiceClient calls BookingService with the JSON codec.
type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func (c *BookingServiceClient) GetAvailableSlots(ctx context.Context, in *GetAvailableSlotsRequest, opts ...grpc.CallOption) (*GetAvailableSlotsResponse, error) {
	out := new(GetAvailableSlotsResponse)
	if err := c.cc.Invoke(ctx, methodGetAvailableSlots, in, out, append(opts, grpc.CallContentSubtype(codecName))...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) CreateBooking(ctx context.Context, in *CreateBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	out := new(BookingResponse)
	if err := c.cc.Invoke(ctx, methodCreateBooking, in, out, append(opts, grpc.CallContentSubtype(codecName))...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) CancelBooking(ctx context.Context, in *CancelBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	out := new(BookingResponse)
	if err := c.cc.Invoke(ctx, methodCancelBooking, in, out, append(opts, grpc.CallContentSubtype(codecName))...); err != nil {
		return nil, err
	}
	return out, nil
}

// BookingGRPCService adapts the booking core to BookingServiceServer.
type BookingGRPCService struct {
	bookings BookingAPI
	loc      *time.Location
}

func NewBookingGRPCService(bookings BookingAPI, loc *time.Location) *BookingGRPCService {
	if loc == nil {
		loc = time.Local
	}
	return &BookingGRPCService{bookings: bookings, loc: loc}
}

func (s *BookingGRPCService) GetAvailableSlots(ctx context.Context, req *GetAvailableSlotsRequest) (*GetAvailableSlotsResponse, error) {
	date, err := parseDate(req.Date, s.loc)
	if err != nil {
		return nil, customerStatus(ctx, err)
	}

	slots, err := s.bookings.GenerateSlots(ctx, service.SlotQuery{
		BusinessID:  strings.TrimSpace(req.BusinessID),
		ServiceID:   strings.TrimSpace(req.ServiceID),
		Date:        date,
		StepMinutes: req.StepMinutes,
	})
	if err != nil {
		return nil, customerStatus(ctx, err)
	}

	return &GetAvailableSlotsResponse{
		ServiceID: req.ServiceID,
		Date:      date.Format(models.DateLayout),
		Slots:     slots,
	}, nil
}

func (s *BookingGRPCService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*BookingResponse, error) {
	start, err := parseStartTime(req.StartTime, s.loc)
	if err != nil {
		return nil, customerStatus(ctx, err)
	}

	booking, err := s.bookings.CreateBooking(ctx, service.CreateBookingInput{
		ServiceID:     strings.TrimSpace(req.ServiceID),
		StartTime:     start,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Notes:         req.Notes,
	})
	if err != nil {
		return nil, customerStatus(ctx, err)
	}
	return &BookingResponse{Booking: booking}, nil
}

func (s *BookingGRPCService) CancelBooking(ctx context.Context, req *CancelBookingRequest) (*BookingResponse, error) {
	booking, err := s.bookings.CancelBooking(ctx, strings.TrimSpace(req.BookingID))
	if err != nil {
		return nil, toStatus(err)
	}
	return &BookingResponse{Booking: booking}, nil
}

// customerStatus logs owner configuration faults before they are masked by toStatus.
func customerStatus(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrConfiguration) {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("availability misconfigured")
	}
	return toStatus(err)
}

// toStatus maps the domain error taxonomy onto gRPC codes.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrCollision):
		code = codes.AlreadyExists
	case errors.Is(err, domain.ErrConfiguration):
		return status.Error(codes.FailedPrecondition, notAvailableMessage)
	case errors.Is(err, domain.ErrTransient):
		code = codes.Unavailable
	case errors.Is(err, domain.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
