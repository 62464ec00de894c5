// Package admin exposes a hand-rolled gRPC service for resolvd's own
// runtime statistics, grounded on the same ServiceDesc shape protoc-gen-go
// would emit, registered alongside the standard health service.
package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dnsscience/resolvd/internal/cache"
	"github.com/dnsscience/resolvd/internal/server"
)

// StatsProvider reports the live server.Stats snapshot; *server.Server
// satisfies it.
type StatsProvider interface {
	GetStats() server.Stats
}

type statsServer struct {
	provider StatsProvider
}

func (s *statsServer) getStats(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.provider.GetStats()
	fields := map[string]interface{}{
		"queries":  float64(st.Queries),
		"answers":  float64(st.Answers),
		"errors":   float64(st.Errors),
		"nxdomain": float64(st.NXDOMAIN),
		"dropped":  float64(st.Dropped),
	}
	if cs, ok := st.Cache.(cache.Stats); ok {
		fields["cache_hits"] = float64(cs.Hits)
		fields["cache_misses"] = float64(cs.Misses)
		fields["cache_evictions"] = float64(cs.Evictions)
		fields["cache_size"] = float64(cs.Size)
		fields["cache_bytes_used"] = float64(cs.BytesUsed)
		fields["cache_hit_rate"] = cs.HitRate
	}
	return structpb.NewStruct(fields)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "resolvd.admin.v1.AdminService",
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStats",
			Handler:    getStatsHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "resolvd/admin.proto",
}

func getStatsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*statsServer)
	if interceptor == nil {
		return s.getStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/resolvd.admin.v1.AdminService/GetStats"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.getStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Register wires the AdminService onto s, reading stats from provider on
// each call.
func Register(s *grpc.Server, provider StatsProvider) {
	grpc.RegisterService(s, &serviceDesc, &statsServer{provider: provider})
}
