package grpc

import (
	"context"

	grpclib "google.golang.org/grpc"
)

const serviceName = "careslot.v1.AppointmentsService"

type AppointmentsServiceServer interface {
	BookAppointment(ctx context.Context, req *BookAppointmentRequest) (*BookAppointmentResponse, error)
	ListAppointments(ctx context.Context, req *ListAppointmentsRequest) (*ListAppointmentsResponse, error)
	CancelAppointment(ctx context.Context, req *CancelAppointmentRequest) (*CancelAppointmentResponse, error)
	CompleteAppointment(ctx context.Context, req *CompleteAppointmentRequest) (*CompleteAppointmentResponse, error)
	ListProfessionals(ctx context.Context, req *ListProfessionalsRequest) (*ListProfessionalsResponse, error)
}

var AppointmentsServiceDesc = grpclib.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AppointmentsServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "BookAppointment", Handler: unaryHandler("BookAppointment", AppointmentsServiceServer.BookAppointment)},
		{MethodName: "ListAppointments", Handler: unaryHandler("ListAppointments", AppointmentsServiceServer.ListAppointments)},
		{MethodName: "CancelAppointment", Handler: unaryHandler("CancelAppointment", AppointmentsServiceServer.CancelAppointment)},
		{MethodName: "CompleteAppointment", Handler: unaryHandler("CompleteAppointment", AppointmentsServiceServer.CompleteAppointment)},
		{MethodName: "ListProfessionals", Handler: unaryHandler("ListProfessionals", AppointmentsServiceServer.ListProfessionals)},
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "careslot/v1/appointments",
}

func RegisterAppointmentsServiceServer(s grpclib.ServiceRegistrar, srv AppointmentsServiceServer) {
	s.RegisterService(&AppointmentsServiceDesc, srv)
}

func unaryHandler[Req, Resp any](method string, call func(AppointmentsServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AppointmentsServiceServer), ctx, in)
		}
		info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AppointmentsServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AppointmentsServiceClient calls the service with the JSON codec.
type AppointmentsServiceClient struct {
	cc grpclib.ClientConnInterface
}

func NewAppointmentsServiceClient(cc grpclib.ClientConnInterface) *AppointmentsServiceClient {
	return &AppointmentsServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpclib.ClientConnInterface, method string, in any, opts []grpclib.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpclib.CallOption{grpclib.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AppointmentsServiceClient) BookAppointment(ctx context.Context, in *BookAppointmentRequest, opts ...grpclib.CallOption) (*BookAppointmentResponse, error) {
	return invoke[BookAppointmentResponse](ctx, c.cc, "BookAppointment", in, opts)
}

func (c *AppointmentsServiceClient) ListAppointments(ctx context.Context, in *ListAppointmentsRequest, opts ...grpclib.CallOption) (*ListAppointmentsResponse, error) {
	return invoke[ListAppointmentsResponse](ctx, c.cc, "ListAppointments", in, opts)
}

func (c *AppointmentsServiceClient) CancelAppointment(ctx context.Context, in *CancelAppointmentRequest, opts ...grpclib.CallOption) (*CancelAppointmentResponse, error) {
	return invoke[CancelAppointmentResponse](ctx, c.cc, "CancelAppointment", in, opts)
}

func (c *AppointmentsServiceClient) CompleteAppointment(ctx context.Context, in *CompleteAppointmentRequest, opts ...grpclib.CallOption) (*CompleteAppointmentResponse, error) {
	return invoke[CompleteAppointmentResponse](ctx, c.cc, "CompleteAppointment", in, opts)
}

func (c *AppointmentsServiceClient) ListProfessionals(ctx context.Context, in *ListProfessionalsRequest, opts ...grpclib.CallOption) (*ListProfessionalsResponse, error) {
	return invoke[ListProfessionalsResponse](ctx, c.cc, "ListProfessionals", in, opts)
}
