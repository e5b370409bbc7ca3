package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "gophtasks.Store"

const (
	MethodSignInAnonymously = "/gophtasks.Store/SignInAnonymously"
	MethodResume            = "/gophtasks.Store/Resume"
	MethodRefreshToken      = "/gophtasks.Store/RefreshToken"
	MethodPing              = "/gophtasks.Store/Ping"
	MethodCreateDocument    = "/gophtasks.Store/CreateDocument"
	MethodUpdateDocument    = "/gophtasks.Store/UpdateDocument"
	MethodDeleteDocument    = "/gophtasks.Store/DeleteDocument"
	MethodWatch             = "/gophtasks.Store/Watch"
)

// StoreServer is implemented by the backend.
type StoreServer interface {
	SignInAnonymously(context.Context, *Empty) (*SessionResponse, error)
	Resume(context.Context, *ResumeRequest) (*ResumeResponse, error)
	RefreshToken(context.Context, *RefreshTokenRequest) (*SessionResponse, error)
	Ping(context.Context, *Empty) (*PingResponse, error)
	CreateDocument(context.Context, *CreateDocumentRequest) (*CreateDocumentResponse, error)
	UpdateDocument(context.Context, *UpdateDocumentRequest) (*Empty, error)
	DeleteDocument(context.Context, *DeleteDocumentRequest) (*Empty, error)
	Watch(*WatchRequest, grpc.ServerStreamingServer[Snapshot]) error
}

// UnimplementedStoreServer answers every call with codes.Unimplemented.
// Embed it to keep server implementations compiling when methods are added.
type UnimplementedStoreServer struct{}

func (UnimplementedStoreServer) SignInAnonymously(context.Context, *Empty) (*SessionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SignInAnonymously not implemented")
}
func (UnimplementedStoreServer) Resume(context.Context, *ResumeRequest) (*ResumeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Resume not implemented")
}
func (UnimplementedStoreServer) RefreshToken(context.Context, *RefreshTokenRequest) (*SessionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RefreshToken not implemented")
}
func (UnimplementedStoreServer) Ping(context.Context, *Empty) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedStoreServer) CreateDocument(context.Context, *CreateDocumentRequest) (*CreateDocumentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateDocument not implemented")
}
func (UnimplementedStoreServer) UpdateDocument(context.Context, *UpdateDocumentRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateDocument not implemented")
}
func (UnimplementedStoreServer) DeleteDocument(context.Context, *DeleteDocumentRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteDocument not implemented")
}
func (UnimplementedStoreServer) Watch(*WatchRequest, grpc.ServerStreamingServer[Snapshot]) error {
	return status.Error(codes.Unimplemented, "method Watch not implemented")
}

// unary builds a grpc.MethodHandler that decodes Req, runs the interceptor
// chain and dispatches to call.
func unary[Req, Res any](fullMethod string, call func(StoreServer, context.Context, *Req) (*Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StoreServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(StoreServer).Watch(in, &grpc.GenericServerStream[WatchRequest, Snapshot]{ServerStream: stream})
}

// StoreServiceDesc describes the store service for grpc.Server.RegisterService.
var StoreServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SignInAnonymously",
			Handler:    unary(MethodSignInAnonymously, StoreServer.SignInAnonymously),
		},
		{
			MethodName: "Resume",
			Handler:    unary(MethodResume, StoreServer.Resume),
		},
		{
			MethodName: "RefreshToken",
			Handler:    unary(MethodRefreshToken, StoreServer.RefreshToken),
		},
		{
			MethodName: "Ping",
			Handler:    unary(MethodPing, StoreServer.Ping),
		},
		{
			MethodName: "CreateDocument",
			Handler:    unary(MethodCreateDocument, StoreServer.CreateDocument),
		},
		{
			MethodName: "UpdateDocument",
			Handler:    unary(MethodUpdateDocument, StoreServer.UpdateDocument),
		},
		{
			MethodName: "DeleteDocument",
			Handler:    unary(MethodDeleteDocument, StoreServer.DeleteDocument),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "gophtasks/store",
}

// RegisterStoreServer registers srv on s.
func RegisterStoreServer(s grpc.ServiceRegistrar, srv StoreServer) {
	s.RegisterService(&StoreServiceDesc, srv)
}
