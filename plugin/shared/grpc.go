package shared

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages travel as google.protobuf.Struct so the python side needs no
// generated stubs beyond the well known types.
const (
	exporterServiceName = "finsent.plugin.GraphExporter"
	exportMethod        = "/" + exporterServiceName + "/Export"
)

type exporterServer interface {
	Export(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var exporterServiceDesc = grpc.ServiceDesc{
	ServiceName: exporterServiceName,
	HandlerType: (*exporterServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Export",
			Handler:    exportHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "exporter.proto",
}

func exportHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(exporterServer).Export(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: exportMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(exporterServer).Export(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func RegisterExporterServer(s grpc.ServiceRegistrar, srv exporterServer) {
	s.RegisterService(&exporterServiceDesc, srv)
}

// GRPCClient is the Exporter the host process talks to.
type GRPCClient struct {
	conn grpc.ClientConnInterface
}

var _ Exporter = (*GRPCClient)(nil)

func NewGRPCClient(conn grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{conn: conn}
}

func (c *GRPCClient) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	in, err := toStruct(req)
	if err != nil {
		return ExportResult{}, err
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, exportMethod, in, out); err != nil {
		return ExportResult{}, err
	}

	var res ExportResult
	if err := fromStruct(out, &res); err != nil {
		return ExportResult{}, err
	}
	return res, nil
}

// GRPCServer serves an Exporter implementation.
type GRPCServer struct {
	Impl Exporter
}

func (s *GRPCServer) Export(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ExportRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}

	res, err := s.Impl.Export(ctx, req)
	if err != nil {
		return nil, err
	}
	return toStruct(res)
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("error encoding %T: %w", v, err)
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("error converting %T to struct: %w", v, err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("error encoding struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("error decoding struct into %T: %w", v, err)
	}
	return nil
}
