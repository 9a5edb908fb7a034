package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"
)

const maxErrorBodyBytes = 1024

// httpStore talks to the Qdrant REST API directly. It is the transport for
// local, uncredentialed instances.
type httpStore struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

func newHTTPStore(cfg Config) (*httpStore, error) {
	return &httpStore{
		cfg:     cfg,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *httpStore) Transport() string { return transportHTTP }

func (s *httpStore) EnsureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &info)
	if err == nil {
		size := info.Config.Params.Vectors.Size
		if size != 0 && size != s.cfg.VectorDim {
			return opErr(op, ErrCodeValidation, fmt.Sprintf(
				"collection %q vector size mismatch: expected=%d actual=%d",
				s.cfg.Collection, s.cfg.VectorDim, size), nil)
		}
		return nil
	}
	var operr *OperationError
	if !errors.As(err, &operr) || operr.StatusCode != http.StatusNotFound {
		return err
	}

	req := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.VectorDim,
			"distance": "Cosine",
		},
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), req, nil)
}

func (s *httpStore) Upsert(ctx context.Context, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return opErr(op, ErrCodeValidation, "point id required", nil)
		}
		if err := validateVectorDim(op, s.cfg.VectorDim, p.Values); err != nil {
			return err
		}
		body = append(body, map[string]any{
			"id":      id,
			"vector":  p.Values,
			"payload": p.Payload,
		})
	}
	return s.doJSON(ctx, op, http.MethodPut,
		s.collectionPath("/points?wait=true"), map[string]any{"points": body}, nil)
}

func (s *httpStore) Search(ctx context.Context, vec []float32, limit int, filter map[string]string) ([]Match, error) {
	const op = "search"
	if err := validateVectorDim(op, s.cfg.VectorDim, vec); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	req := map[string]any{
		"vector":       vec,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if qf := equalityFilter(filter); qf != nil {
		req["filter"] = qf
	}

	var raw []struct {
		ID      json.RawMessage `json:"id"`
		Score   float64         `json:"score"`
		Payload map[string]any  `json:"payload"`
	}
	if err := s.doJSON(ctx, op, http.MethodPost,
		s.collectionPath("/points/search"), req, &raw); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(raw))
	for _, item := range raw {
		out = append(out, Match{
			ID:      decodePointID(item.ID),
			Score:   item.Score,
			Payload: item.Payload,
		})
	}
	sortMatches(out)
	return out, nil
}

func (s *httpStore) Get(ctx context.Context, ids []string) ([]Point, error) {
	const op = "get"
	if len(ids) == 0 {
		return nil, nil
	}
	req := map[string]any{
		"ids":          ids,
		"with_payload": true,
		"with_vector":  true,
	}
	var raw []struct {
		ID      json.RawMessage `json:"id"`
		Vector  []float32       `json:"vector"`
		Payload map[string]any  `json:"payload"`
	}
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points"), req, &raw); err != nil {
		return nil, err
	}
	out := make([]Point, 0, len(raw))
	for _, item := range raw {
		out = append(out, Point{
			ID:      decodePointID(item.ID),
			Values:  item.Vector,
			Payload: item.Payload,
		})
	}
	return out, nil
}

func (s *httpStore) Delete(ctx context.Context, ids []string) error {
	const op = "delete"
	if len(ids) == 0 {
		return nil
	}
	return s.doJSON(ctx, op, http.MethodPost,
		s.collectionPath("/points/delete?wait=true"), map[string]any{"points": ids}, nil)
}

func (s *httpStore) Ping(ctx context.Context) error {
	const op = "ping"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, ErrCodeTransport, "build ready request failed", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       ErrCodeQuery,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

func (s *httpStore) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func (s *httpStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, ErrCodeEncode, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, ErrCodeTransport, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, ErrCodeDecode, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       ErrCodeQuery,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, ErrCodeDecode, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       ErrCodeQuery,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, ErrCodeDecode, "decode qdrant result failed", err)
	}
	return nil
}

// equalityFilter translates an equality filter map into a Qdrant must
// filter. Keys are sorted so request bodies are deterministic.
func equalityFilter(filter map[string]string) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	must := make([]any, 0, len(keys))
	for _, key := range keys {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": filter[key]},
		})
	}
	return map[string]any{"must": must}
}

func decodePointID(raw json.RawMessage) string {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber.String()
	}
	return strings.Trim(string(raw), `"`)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" || strings.EqualFold(asString, "ok") {
			return ""
		}
		return "qdrant status: " + asString
	}
	var asObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && asObject.Error != "" {
		return "qdrant status: " + asObject.Error
	}
	return ""
}

func truncateBody(raw []byte) string {
	if len(raw) > maxErrorBodyBytes {
		raw = raw[:maxErrorBodyBytes]
	}
	return string(raw)
}

func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, ErrCodeTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, ErrCodeTimeout, message, err)
	}
	return opErr(op, ErrCodeTransport, message, err)
}
