// Package metapb holds the generated client stub for the title-metadata
// gRPC service the gateway talks to before falling back to the Cinemeta
// HTTP API. Hand-maintained in the shape protoc-gen-go-grpc would produce
// from:
//
//	syntax = "proto3";
//	package metapb;
//	message MetaRequest { string id = 1; }
//	message MetaReply {
//	  string id = 1;
//	  string primary_title = 2;
//	  int32 start_year = 3;
//	}
//	service MetaFetcher { rpc Get(MetaRequest) returns (MetaReply); }
package metapb

import (
	"context"

	"google.golang.org/grpc"
)

type MetaRequest struct {
	Id string
}

func (r *MetaRequest) Reset()         { *r = MetaRequest{} }
func (r *MetaRequest) String() string { return "MetaRequest{Id: " + r.Id + "}" }
func (r *MetaRequest) ProtoMessage()  {}
func (r *MetaRequest) GetId() string  { return r.Id }

type MetaReply struct {
	Id           string
	PrimaryTitle string
	StartYear    int32
}

func (r *MetaReply) Reset()               { *r = MetaReply{} }
func (r *MetaReply) String() string       { return r.PrimaryTitle }
func (r *MetaReply) ProtoMessage()        {}
func (r *MetaReply) GetId() string        { return r.Id }
func (r *MetaReply) GetPrimaryTitle() string { return r.PrimaryTitle }
func (r *MetaReply) GetStartYear() int32  { return r.StartYear }

// MetaFetcherClient is the client API for the MetaFetcher service.
type MetaFetcherClient interface {
	Get(ctx context.Context, in *MetaRequest, opts ...grpc.CallOption) (*MetaReply, error)
}

type metaFetcherClient struct {
	cc grpc.ClientConnInterface
}

func NewMetaFetcherClient(cc grpc.ClientConnInterface) MetaFetcherClient {
	return &metaFetcherClient{cc}
}

func (c *metaFetcherClient) Get(ctx context.Context, in *MetaRequest, opts ...grpc.CallOption) (*MetaReply, error) {
	out := new(MetaReply)
	err := c.cc.Invoke(ctx, "/metapb.MetaFetcher/Get", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}
