package vector

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

const defaultGRPCPort = 6334

// grpcStore is the credentialed transport. Qdrant Cloud exposes gRPC on its
// own port, so the configured URL is mapped onto host/port/TLS here.
type grpcStore struct {
	cfg    Config
	client *qdrant.Client
}

func newGRPCStore(cfg Config) (*grpcStore, error) {
	const op = "connect"

	host, port, useTLS, err := splitGRPCTarget(cfg.URL)
	if err != nil {
		return nil, opErr(op, ErrCodeValidation, err.Error(), nil)
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, opErr(op, ErrCodeTransport, "qdrant grpc client init failed", err)
	}
	return &grpcStore{cfg: cfg, client: client}, nil
}

func (s *grpcStore) Transport() string { return transportGRPC }

func (s *grpcStore) EnsureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return opErr(op, ErrCodeTransport, "collection existence check failed", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.cfg.VectorDim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return opErr(op, ErrCodeQuery, "create collection failed", err)
	}
	return nil
}

func (s *grpcStore) Upsert(ctx context.Context, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return opErr(op, ErrCodeValidation, "point id required", nil)
		}
		if err := validateVectorDim(op, s.cfg.VectorDim, p.Values); err != nil {
			return err
		}
		payload, err := qdrant.TryValueMap(p.Payload)
		if err != nil {
			return opErr(op, ErrCodeEncode, "encode payload failed", err)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(p.Values...),
			Payload: payload,
		})
	}
	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return opErr(op, ErrCodeQuery, "upsert failed", err)
	}
	return nil
}

func (s *grpcStore) Search(ctx context.Context, vec []float32, limit int, filter map[string]string) ([]Match, error) {
	const op = "search"
	if err := validateVectorDim(op, s.cfg.VectorDim, vec); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	lim := uint64(limit)

	query := &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for _, key := range sortedKeys(filter) {
			must = append(must, qdrant.NewMatch(key, filter[key]))
		}
		query.Filter = &qdrant.Filter{Must: must}
	}

	scored, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, opErr(op, ErrCodeQuery, "query failed", err)
	}
	out := make([]Match, 0, len(scored))
	for _, point := range scored {
		out = append(out, Match{
			ID:      pointIDString(point.GetId()),
			Score:   float64(point.GetScore()),
			Payload: decodeValueMap(point.GetPayload()),
		})
	}
	sortMatches(out)
	return out, nil
}

func (s *grpcStore) Get(ctx context.Context, ids []string) ([]Point, error) {
	const op = "get"
	if len(ids) == 0 {
		return nil, nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}
	retrieved, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, opErr(op, ErrCodeQuery, "get failed", err)
	}
	out := make([]Point, 0, len(retrieved))
	for _, point := range retrieved {
		out = append(out, Point{
			ID:      pointIDString(point.GetId()),
			Values:  point.GetVectors().GetVector().GetData(),
			Payload: decodeValueMap(point.GetPayload()),
		})
	}
	return out, nil
}

func (s *grpcStore) Delete(ctx context.Context, ids []string) error {
	const op = "delete"
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return opErr(op, ErrCodeQuery, "delete failed", err)
	}
	return nil
}

func (s *grpcStore) Ping(ctx context.Context) error {
	const op = "ping"
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return opErr(op, ErrCodeTransport, "qdrant health check failed", err)
	}
	return nil
}

// splitGRPCTarget maps a configured URL onto the gRPC host, port and TLS
// flag. A bare host:port is accepted as well.
func splitGRPCTarget(raw string) (host string, port int, useTLS bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0, false, fmt.Errorf("qdrant url required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Hostname() == "" {
		return "", 0, false, fmt.Errorf("invalid qdrant url %q", raw)
	}
	host = parsed.Hostname()
	useTLS = parsed.Scheme == "https"
	port = defaultGRPCPort
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid qdrant port %q", p)
		}
	}
	return host, port, useTLS, nil
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func decodeValueMap(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[key] = decodeValue(value)
	}
	return out
}

func decodeValue(value *qdrant.Value) any {
	switch kind := value.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		list := make([]any, 0, len(items))
		for _, item := range items {
			list = append(list, decodeValue(item))
		}
		return list
	case *qdrant.Value_StructValue:
		return decodeValueMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
