package wire

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type echoServer struct{ got []Record }

func (e *echoServer) AddRecord(_ context.Context, in *Record) (*Ack, error) {
	e.got = append(e.got, *in)
	return &Ack{Accepted: 1}, nil
}

func (e *echoServer) AddRecords(_ context.Context, in *Batch) (*Ack, error) {
	e.got = append(e.got, in.Records...)
	return &Ack{Accepted: len(in.Records)}, nil
}

func TestIngestService_JSONRoundTrip(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &echoServer{}
	gs := grpc.NewServer()
	RegisterIngestServer(gs, srv)
	go gs.Serve(lis) //nolint:errcheck
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	client := NewIngestClient(conn)

	ack, err := client.AddRecords(context.Background(), &Batch{Records: []Record{
		{PatientID: 1, Value: 97, Type: "Saturation", Timestamp: 10},
		{PatientID: 2, Value: 72, Type: "ECG", Timestamp: 20},
	}})
	if err != nil {
		t.Fatalf("AddRecords: %v", err)
	}
	if ack.Accepted != 2 {
		t.Errorf("Accepted: got %d, want 2", ack.Accepted)
	}
	if len(srv.got) != 2 || srv.got[1].Type != "ECG" || srv.got[1].Timestamp != 20 {
		t.Errorf("server received: got %+v", srv.got)
	}
}
