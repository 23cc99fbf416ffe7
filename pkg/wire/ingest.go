package wire

import (
	"context"

	"google.golang.org/grpc"
)

// Fully-qualified method names of the ingest service.
const (
	ServiceName      = "cardiowatch.v1.Ingest"
	AddRecordMethod  = "/" + ServiceName + "/AddRecord"
	AddRecordsMethod = "/" + ServiceName + "/AddRecords"
)

// Record is one measurement on the wire. Type is a record type label such
// as "ECG" or "Saturation".
type Record struct {
	PatientID int     `json:"patient_id"`
	Value     float64 `json:"value"`
	Type      string  `json:"type"`
	Timestamp int64   `json:"timestamp"`
}

// Batch carries several records in one call.
type Batch struct {
	Records []Record `json:"records"`
}

// Ack reports how many records the server stored.
type Ack struct {
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected,omitempty"`
	Message  string `json:"message,omitempty"`
}

// IngestServer is implemented by the server-side receiver.
type IngestServer interface {
	AddRecord(ctx context.Context, in *Record) (*Ack, error)
	AddRecords(ctx context.Context, in *Batch) (*Ack, error)
}

// RegisterIngestServer registers srv on s.
func RegisterIngestServer(s grpc.ServiceRegistrar, srv IngestServer) {
	s.RegisterService(&IngestServiceDesc, srv)
}

// IngestServiceDesc describes the ingest service for grpc.Server.
var IngestServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IngestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddRecord", Handler: addRecordHandler},
		{MethodName: "AddRecords", Handler: addRecordsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cardiowatch/v1/ingest",
}

func addRecordHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Record)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestServer).AddRecord(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AddRecordMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IngestServer).AddRecord(ctx, req.(*Record))
	}
	return interceptor(ctx, in, info, handler)
}

func addRecordsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Batch)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestServer).AddRecords(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AddRecordsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IngestServer).AddRecords(ctx, req.(*Batch))
	}
	return interceptor(ctx, in, info, handler)
}

// IngestClient calls the ingest service over a gRPC connection using the
// JSON codec.
type IngestClient struct {
	cc grpc.ClientConnInterface
}

// NewIngestClient wraps cc.
func NewIngestClient(cc grpc.ClientConnInterface) *IngestClient {
	return &IngestClient{cc: cc}
}

func (c *IngestClient) AddRecord(ctx context.Context, in *Record, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, AddRecordMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IngestClient) AddRecords(ctx context.Context, in *Batch, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, AddRecordsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
