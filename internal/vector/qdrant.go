package vector

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/hyperjump/jobmatch/internal/apperr"
	"github.com/hyperjump/jobmatch/internal/models"
)

const (
	defaultQdrantGRPCPort = "6334"
	scrollPageSize        = 256
)

// QdrantOptions configures a QdrantIndex.
type QdrantOptions struct {
	// Addr is host:port of the gRPC endpoint, or a URL such as
	// https://cluster.cloud.qdrant.io:6333 (the REST port is mapped to gRPC).
	Addr    string
	APIKey  string
	TLS     bool
	Timeout time.Duration
	// PayloadIndexes are keyword fields indexed on collection creation.
	PayloadIndexes []string
	Logger         *zap.Logger
}

// QdrantIndex is an Index backed by a qdrant server over gRPC.
type QdrantIndex struct {
	conn           *grpc.ClientConn
	points         pb.PointsClient
	collections    pb.CollectionsClient
	timeout        time.Duration
	payloadIndexes []string
	logger         *zap.Logger
}

// NewQdrantIndex connects to qdrant. The connection is established lazily by gRPC.
func NewQdrantIndex(opts QdrantOptions) (*QdrantIndex, error) {
	target, useTLS, err := ParseQdrantAddr(opts.Addr)
	if err != nil {
		return nil, err
	}
	useTLS = useTLS || opts.TLS

	creds := insecure.NewCredentials()
	if useTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if opts.APIKey != "" {
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(apiKeyInterceptor(opts.APIKey)))
	}
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant at %s: %w", target, err)
	}
	return &QdrantIndex{
		conn:           conn,
		points:         pb.NewPointsClient(conn),
		collections:    pb.NewCollectionsClient(conn),
		timeout:        opts.Timeout,
		payloadIndexes: opts.PayloadIndexes,
		logger:         opts.Logger,
	}, nil
}

// ParseQdrantAddr normalises addr to a gRPC host:port target and reports
// whether the scheme asked for TLS.
func ParseQdrantAddr(addr string) (target string, useTLS bool, err error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", false, fmt.Errorf("qdrant address is empty")
	}
	if !strings.Contains(addr, "://") {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return net.JoinHostPort(addr, defaultQdrantGRPCPort), false, nil
		}
		return addr, false, nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", false, fmt.Errorf("invalid qdrant address %q: %w", addr, err)
	}
	port := u.Port()
	if port == "" || port == "6333" {
		port = defaultQdrantGRPCPort
	}
	return net.JoinHostPort(u.Hostname(), port), u.Scheme == "https", nil
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func (q *QdrantIndex) rpc(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.timeout > 0 {
		return context.WithTimeout(ctx, q.timeout)
	}
	return context.WithCancel(ctx)
}

// Type returns the index type identifier.
func (q *QdrantIndex) Type() string { return string(IndexTypeQdrant) }

// EnsureCollection creates a cosine collection when absent. A concurrent
// creator winning the race (AlreadyExists) counts as success.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	ctx, cancel := q.rpc(ctx)
	defer cancel()

	exists, err := q.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: name})
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists.GetResult().GetExists() {
		return q.checkDimensions(ctx, name, dimensions)
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dimensions),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		if !isAlreadyExists(err) {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
		if q.logger != nil {
			q.logger.Debug("collection created concurrently", zap.String("collection", name))
		}
		return q.checkDimensions(ctx, name, dimensions)
	}
	if q.logger != nil {
		q.logger.Info("created collection", zap.String("collection", name), zap.Int("dimensions", dimensions))
	}

	wait := true
	for _, field := range q.payloadIndexes {
		_, err := q.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      field,
			FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
			Wait:           &wait,
		})
		if err != nil && q.logger != nil {
			q.logger.Warn("failed to create payload index", zap.String("collection", name), zap.String("field", field), zap.Error(err))
		}
	}
	return nil
}

func (q *QdrantIndex) checkDimensions(ctx context.Context, name string, dimensions int) error {
	info, err := q.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: name})
	if err != nil {
		return fmt.Errorf("failed to get collection %s: %w", name, err)
	}
	size := int(info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	if size != 0 && size != dimensions {
		return &apperr.DimensionError{Collection: name, Want: size, Got: dimensions, ChunkIndex: -1}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	if status.Code(err) == codes.AlreadyExists {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// ListCollections returns the names of all collections on the server.
func (q *QdrantIndex) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := q.rpc(ctx)
	defer cancel()
	resp, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	names := make([]string, 0, len(resp.GetCollections()))
	for _, c := range resp.GetCollections() {
		names = append(names, c.GetName())
	}
	return names, nil
}

// Upsert writes records with wait=true so the call returns only once qdrant applied them.
func (q *QdrantIndex) Upsert(ctx context.Context, collection string, records []Record) error {
	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		payload, err := toQdrantPayload(r.Payload)
		if err != nil {
			return err
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Vector},
				},
			},
			Payload: payload,
		}
	}

	ctx, cancel := q.rpc(ctx)
	defer cancel()
	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Search runs a filtered nearest-neighbour query.
func (q *QdrantIndex) Search(ctx context.Context, collection string, req *SearchRequest) ([]*models.Match, error) {
	filter, err := toQdrantFilter(req.Filter)
	if err != nil {
		return nil, err
	}
	search := &pb.SearchPoints{
		CollectionName: collection,
		Vector:         req.Vector,
		Filter:         filter,
		Limit:          uint64(req.Limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if req.ScoreThreshold != nil {
		th := float32(*req.ScoreThreshold)
		search.ScoreThreshold = &th
	}

	ctx, cancel := q.rpc(ctx)
	defer cancel()
	resp, err := q.points.Search(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	matches := make([]*models.Match, 0, len(resp.GetResult()))
	for _, hit := range resp.GetResult() {
		matches = append(matches, &models.Match{
			ID:      pointIDString(hit.GetId()),
			Score:   float64(hit.GetScore()),
			Payload: fromQdrantPayload(hit.GetPayload()),
		})
	}
	return matches, nil
}

// Scroll pages through matching points without their vectors.
func (q *QdrantIndex) Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Record, error) {
	f, err := toQdrantFilter(filter)
	if err != nil {
		return nil, err
	}
	var (
		out    []Record
		offset *pb.PointId
	)
	for {
		page := uint32(scrollPageSize)
		if limit > 0 && limit-len(out) < scrollPageSize {
			page = uint32(limit - len(out))
		}
		rctx, cancel := q.rpc(ctx)
		resp, err := q.points.Scroll(rctx, &pb.ScrollPoints{
			CollectionName: collection,
			Filter:         f,
			Offset:         offset,
			Limit:          &page,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll: %w", err)
		}
		for _, p := range resp.GetResult() {
			out = append(out, Record{ID: pointIDString(p.GetId()), Payload: fromQdrantPayload(p.GetPayload())})
		}
		offset = resp.GetNextPageOffset()
		if offset == nil || (limit > 0 && len(out) >= limit) {
			return out, nil
		}
	}
}

// Count returns the exact number of points matching filter.
func (q *QdrantIndex) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	f, err := toQdrantFilter(filter)
	if err != nil {
		return 0, err
	}
	ctx, cancel := q.rpc(ctx)
	defer cancel()
	exact := true
	resp, err := q.points.Count(ctx, &pb.CountPoints{
		CollectionName: collection,
		Filter:         f,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// DeleteByFilter removes all points matching filter and waits for completion.
func (q *QdrantIndex) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	if len(filter) == 0 {
		return apperr.InvalidParameter("refusing to delete with an empty filter")
	}
	f, err := toQdrantFilter(filter)
	if err != nil {
		return err
	}
	ctx, cancel := q.rpc(ctx)
	defer cancel()
	wait := true
	_, err = q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: f},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

// toQdrantFilter converts equality conditions to a qdrant must-filter.
// Floats are only accepted when integral; qdrant matches integers, keywords and booleans exactly.
func toQdrantFilter(filter Filter) (*pb.Filter, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	must := make([]*pb.Condition, 0, len(filter))
	for key, value := range filter {
		match, err := toQdrantMatch(value)
		if err != nil {
			return nil, apperr.InvalidParameter("filter %q: %v", key, err)
		}
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{Key: key, Match: match},
			},
		})
	}
	return &pb.Filter{Must: must}, nil
}

func toQdrantMatch(value interface{}) (*pb.Match, error) {
	switch v := value.(type) {
	case string:
		return &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: v}}, nil
	case bool:
		return &pb.Match{MatchValue: &pb.Match_Boolean{Boolean: v}}, nil
	}
	if n, ok := models.AsInt(value); ok {
		return &pb.Match{MatchValue: &pb.Match_Integer{Integer: int64(n)}}, nil
	}
	return nil, fmt.Errorf("unsupported match value of type %T", value)
}

func toQdrantPayload(payload map[string]interface{}) (map[string]*pb.Value, error) {
	out := make(map[string]*pb.Value, len(payload))
	for k, v := range payload {
		val, err := toQdrantValue(v)
		if err != nil {
			return nil, apperr.InvalidParameter("payload %q: %v", k, err)
		}
		out[k] = val
	}
	return out, nil
}

// toQdrantValue stores whole-valued floats as integers so that they match
// the integer condition toQdrantMatch builds for the same value.
func toQdrantValue(v interface{}) (*pb.Value, error) {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil, fmt.Errorf("non-finite number")
	}
	if n, ok := models.AsInt(v); ok {
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(n)}}, nil
	}
	switch val := v.(type) {
	case nil:
		return &pb.Value{Kind: &pb.Value_NullValue{NullValue: pb.NullValue_NULL_VALUE}}, nil
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: val}}, nil
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: val}}, nil
	case float32:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: float64(val)}}, nil
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: val}}, nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}

func fromQdrantPayload(payload map[string]*pb.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = fromQdrantValue(v)
	}
	return out
}

func fromQdrantValue(v *pb.Value) interface{} {
	switch kind := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	case *pb.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = fromQdrantValue(item)
		}
		return out
	case *pb.Value_StructValue:
		return fromQdrantPayload(kind.StructValue.GetFields())
	default:
		return nil
	}
}

func pointIDString(id *pb.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}
