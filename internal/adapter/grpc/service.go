package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name
const ServiceName = "bundlemarket.v1.BundleMarket"

// BundleMarketServer is the server API for the BundleMarket service.
// Every method takes and returns a google.protobuf.Struct.
type BundleMarketServer interface {
	ListItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WithdrawItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateBundle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelBundle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExpressInterest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestAssignment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetAssignment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Pay(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetOracle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBundle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListBundles(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBuyerInterests(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOracle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOwnedAssets(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(BundleMarketServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var methods = []struct {
	name string
	call unaryMethod
}{
	{"ListItem", BundleMarketServer.ListItem},
	{"WithdrawItem", BundleMarketServer.WithdrawItem},
	{"CreateBundle", BundleMarketServer.CreateBundle},
	{"CancelBundle", BundleMarketServer.CancelBundle},
	{"ExpressInterest", BundleMarketServer.ExpressInterest},
	{"RequestAssignment", BundleMarketServer.RequestAssignment},
	{"SetAssignment", BundleMarketServer.SetAssignment},
	{"Pay", BundleMarketServer.Pay},
	{"SetOracle", BundleMarketServer.SetOracle},
	{"GetItem", BundleMarketServer.GetItem},
	{"ListItems", BundleMarketServer.ListItems},
	{"GetBundle", BundleMarketServer.GetBundle},
	{"ListBundles", BundleMarketServer.ListBundles},
	{"GetBuyerInterests", BundleMarketServer.GetBuyerInterests},
	{"GetSummary", BundleMarketServer.GetSummary},
	{"GetOracle", BundleMarketServer.GetOracle},
	{"GetOwnedAssets", BundleMarketServer.GetOwnedAssets},
}

func methodHandler(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(BundleMarketServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(server, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the BundleMarket service for grpc.Server.RegisterService
var ServiceDesc = func() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*BundleMarketServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "bundlemarket/v1/bundlemarket.proto",
	}
	for _, m := range methods {
		desc.Methods = append(desc.Methods, methodHandler(m.name, m.call))
	}
	return desc
}()

// Register attaches srv to a gRPC server
func Register(s grpc.ServiceRegistrar, srv BundleMarketServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the BundleMarket service over a client connection
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a new BundleMarket client
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req encoded as a Struct
func (c *Client) Call(ctx context.Context, method string, req map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

var _ BundleMarketServer = (*Server)(nil)
