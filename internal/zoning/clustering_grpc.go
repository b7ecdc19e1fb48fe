package zoning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	clusteringService = "yvy.clustering.v1.ClusteringService"
	clusterMethod     = "/" + clusteringService + "/Cluster"

	remoteTimeout = 60 * time.Second
)

// RemoteClusterer delegates clustering to a gRPC clustering service.
type RemoteClusterer struct {
	conn *grpc.ClientConn
}

// NewRemoteClusterer connects to the clustering service at addr. Extra dial
// options are appended after the insecure transport credentials.
func NewRemoteClusterer(addr string, opts ...grpc.DialOption) (*RemoteClusterer, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clustering service: %w", err)
	}
	return &RemoteClusterer{conn: conn}, nil
}

func (c *RemoteClusterer) Close() error {
	return c.conn.Close()
}

func (c *RemoteClusterer) Cluster(ctx context.Context, points [][2]float64, k int) (Clustering, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	req, err := encodeRequest(points, k)
	if err != nil {
		return Clustering{}, err
	}
	resp := new(structpb.Struct)
	err = c.conn.Invoke(ctx, clusterMethod, req, resp,
		grpc.MaxCallRecvMsgSize(math.MaxInt32), grpc.MaxCallSendMsgSize(math.MaxInt32))
	if err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return Clustering{}, fmt.Errorf("%s: %w", status.Convert(err).Message(), ErrInsufficientSamples)
		}
		return Clustering{}, fmt.Errorf("failed to call Cluster: %w", err)
	}
	return decodeClustering(resp)
}

func encodeRequest(points [][2]float64, k int) (*structpb.Struct, error) {
	list := make([]interface{}, len(points))
	for i, p := range points {
		list[i] = []interface{}{p[0], p[1]}
	}
	return structpb.NewStruct(map[string]interface{}{
		"k":      k,
		"points": list,
	})
}

func decodeRequest(s *structpb.Struct) ([][2]float64, int, error) {
	k := int(s.GetFields()["k"].GetNumberValue())
	values := s.GetFields()["points"].GetListValue().GetValues()
	points := make([][2]float64, len(values))
	for i, v := range values {
		pair := v.GetListValue().GetValues()
		if len(pair) != 2 {
			return nil, 0, fmt.Errorf("point %d has %d coordinates", i, len(pair))
		}
		points[i] = [2]float64{pair[0].GetNumberValue(), pair[1].GetNumberValue()}
	}
	return points, k, nil
}

func encodeClustering(c Clustering) (*structpb.Struct, error) {
	labels := make([]interface{}, len(c.Labels))
	for i, l := range c.Labels {
		labels[i] = l
	}
	centroids := make([]interface{}, len(c.Centroids))
	for i, ct := range c.Centroids {
		centroids[i] = []interface{}{ct[0], ct[1]}
	}
	return structpb.NewStruct(map[string]interface{}{
		"labels":    labels,
		"centroids": centroids,
		"inertia":   c.Inertia,
	})
}

func decodeClustering(s *structpb.Struct) (Clustering, error) {
	fields := s.GetFields()
	var c Clustering
	for _, v := range fields["labels"].GetListValue().GetValues() {
		c.Labels = append(c.Labels, int(v.GetNumberValue()))
	}
	for i, v := range fields["centroids"].GetListValue().GetValues() {
		pair := v.GetListValue().GetValues()
		if len(pair) != 2 {
			return Clustering{}, fmt.Errorf("centroid %d has %d coordinates", i, len(pair))
		}
		c.Centroids = append(c.Centroids, [2]float64{pair[0].GetNumberValue(), pair[1].GetNumberValue()})
	}
	c.Inertia = fields["inertia"].GetNumberValue()
	return c, nil
}

type clusteringServer interface {
	Cluster(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type clusteringHandler struct {
	clusterer Clusterer
}

func (h *clusteringHandler) Cluster(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	points, k, err := decodeRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	c, err := h.clusterer.Cluster(ctx, points, k)
	if err != nil {
		if errors.Is(err, ErrInvalidK) || errors.Is(err, ErrInsufficientSamples) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return encodeClustering(c)
}

func clusterHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(clusteringServer).Cluster(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: clusterMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(clusteringServer).Cluster(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var clusteringServiceDesc = grpc.ServiceDesc{
	ServiceName: clusteringService,
	HandlerType: (*clusteringServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Cluster", Handler: clusterHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "yvy/clustering/v1/clustering.proto",
}

// RegisterClusteringServer exposes c as the clustering service on s.
func RegisterClusteringServer(s *grpc.Server, c Clusterer) {
	s.RegisterService(&clusteringServiceDesc, &clusteringHandler{clusterer: c})
}
