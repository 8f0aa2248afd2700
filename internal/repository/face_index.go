package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/matcher"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	upsertBatchSize = 256
	defaultPageSize = 64
)

// FaceIndexConfig holds connection settings for the Qdrant face index.
type FaceIndexConfig struct {
	Host       string
	Port       int
	Collection string
	APIKey     string // enables TLS automatically
	UseTLS     bool
}

// apiKeyInterceptor adds the Qdrant Cloud API key to every unary call.
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// FaceIndex mirrors the gallery into a Qdrant collection using Euclid distance
// so candidate lookup does not scan every embedding. Queries go through the
// alias collection; each Sync writes a new generation behind it.
type FaceIndex struct {
	conn          *grpc.ClientConn
	pointsClient  pb.PointsClient
	collectClient pb.CollectionsClient
	collection    string
}

// NewFaceIndex dials Qdrant. Local instances use an insecure channel.
func NewFaceIndex(cfg *FaceIndexConfig) (*FaceIndex, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &FaceIndex{
		conn:          conn,
		pointsClient:  pb.NewPointsClient(conn),
		collectClient: pb.NewCollectionsClient(conn),
		collection:    cfg.Collection,
	}, nil
}

// Close closes the gRPC connection.
func (r *FaceIndex) Close() error {
	return r.conn.Close()
}

// Sync replaces the indexed contents with g. Points are written to a fresh
// collection that the alias r.collection is then switched to in one alias
// update, so searches keep hitting the previous complete copy until the swap.
func (r *FaceIndex) Sync(ctx context.Context, g *domain.Gallery) error {
	current, err := r.aliasTarget(ctx)
	if err != nil {
		return err
	}
	collections, err := r.collectionNames(ctx)
	if err != nil {
		return err
	}

	if g.Len() == 0 {
		if current != "" {
			if err := r.updateAliases(ctx, aliasActions(r.collection, "", true)); err != nil {
				return err
			}
		}
		r.dropCollections(ctx, staleCollections(collections, r.collection, ""))
		return r.dropLegacy(ctx, collections)
	}

	target := fmt.Sprintf("%s_%d", r.collection, time.Now().UnixNano())
	if err := r.fill(ctx, target, g); err != nil {
		r.dropCollections(ctx, []string{target})
		return err
	}

	if err := r.dropLegacy(ctx, collections); err != nil {
		r.dropCollections(ctx, []string{target})
		return err
	}
	if err := r.updateAliases(ctx, aliasActions(r.collection, target, current != "")); err != nil {
		r.dropCollections(ctx, []string{target})
		return err
	}
	r.dropCollections(ctx, staleCollections(collections, r.collection, target))
	return nil
}

// fill creates collection name sized for g and upserts every entry.
func (r *FaceIndex) fill(ctx context.Context, name string, g *domain.Gallery) error {
	_, err := r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(g.Dimension()),
					Distance: pb.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	for start := 0; start < g.Len(); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > g.Len() {
			end = g.Len()
		}

		points := make([]*pb.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, r.point(i, g.Names[i], g.Encodings[i]))
		}

		wait := true
		if _, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: name,
			Wait:           &wait,
			Points:         points,
		}); err != nil {
			return fmt.Errorf("failed to upsert points: %w", err)
		}
	}
	return nil
}

// dropLegacy removes a plain collection named like the alias. It predates
// alias swapping and blocks alias creation.
func (r *FaceIndex) dropLegacy(ctx context.Context, collections []string) error {
	for _, name := range collections {
		if name != r.collection {
			continue
		}
		if _, err := r.collectClient.Delete(ctx, &pb.DeleteCollection{CollectionName: name}); err != nil {
			return fmt.Errorf("failed to drop legacy collection: %w", err)
		}
	}
	return nil
}

// aliasTarget returns the collection the alias points to, or "" if unset.
func (r *FaceIndex) aliasTarget(ctx context.Context) (string, error) {
	resp, err := r.collectClient.ListAliases(ctx, &pb.ListAliasesRequest{})
	if err != nil {
		return "", fmt.Errorf("failed to list aliases: %w", err)
	}
	for _, a := range resp.GetAliases() {
		if a.GetAliasName() == r.collection {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

func (r *FaceIndex) collectionNames(ctx context.Context) ([]string, error) {
	resp, err := r.collectClient.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	names := make([]string, 0, len(resp.GetCollections()))
	for _, c := range resp.GetCollections() {
		names = append(names, c.GetName())
	}
	return names, nil
}

func (r *FaceIndex) updateAliases(ctx context.Context, actions []*pb.AliasOperations) error {
	if _, err := r.collectClient.UpdateAliases(ctx, &pb.ChangeAliases{Actions: actions}); err != nil {
		return fmt.Errorf("failed to switch alias: %w", err)
	}
	return nil
}

// dropCollections deletes names, ignoring failures. Leftovers are picked up
// by staleCollections on the next Sync.
func (r *FaceIndex) dropCollections(ctx context.Context, names []string) {
	for _, name := range names {
		_, _ = r.collectClient.Delete(ctx, &pb.DeleteCollection{CollectionName: name})
	}
}

// aliasActions builds one atomic alias update. An empty target only removes
// the alias.
func aliasActions(alias, target string, replace bool) []*pb.AliasOperations {
	var actions []*pb.AliasOperations
	if replace {
		actions = append(actions, &pb.AliasOperations{
			Action: &pb.AliasOperations_DeleteAlias{DeleteAlias: &pb.DeleteAlias{AliasName: alias}},
		})
	}
	if target != "" {
		actions = append(actions, &pb.AliasOperations{
			Action: &pb.AliasOperations_CreateAlias{CreateAlias: &pb.CreateAlias{CollectionName: target, AliasName: alias}},
		})
	}
	return actions
}

// staleCollections returns the generations of alias other than keep.
func staleCollections(names []string, alias, keep string) []string {
	prefix := alias + "_"
	var out []string
	for _, name := range names {
		if name != keep && strings.HasPrefix(name, prefix) {
			suffix := strings.TrimPrefix(name, prefix)
			if _, err := strconv.ParseInt(suffix, 10, 64); err == nil {
				out = append(out, name)
			}
		}
	}
	return out
}

func (r *FaceIndex) point(position int, identity string, emb domain.Embedding) *pb.PointStruct {
	return &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(r.collection, position)},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: toFloat32(emb)},
			},
		},
		Payload: map[string]*pb.Value{
			"identity": {Kind: &pb.Value_StringValue{StringValue: identity}},
			"position": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(position)}},
		},
	}
}

// Candidates returns every gallery entry within tolerance of query. Results
// are fetched in pages of pageSize until the threshold is exhausted, so the
// vote always sees the full candidate set.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - query: face embedding.
//   - tolerance: maximum Euclidean distance.
//   - pageSize: number of hits requested per search call.
//
// Returns:
//   - []matcher.Candidate: candidates with gallery positions, ready for matcher.Vote.
//   - error: non-nil if any search call fails.
func (r *FaceIndex) Candidates(ctx context.Context, query domain.Embedding, tolerance float64, pageSize int) ([]matcher.Candidate, error) {
	threshold := float32(tolerance)
	vector := toFloat32(query)
	return collectCandidates(pageSize, func(offset, limit uint64) ([]*pb.ScoredPoint, error) {
		resp, err := r.pointsClient.Search(ctx, &pb.SearchPoints{
			CollectionName: r.collection,
			Vector:         vector,
			Limit:          limit,
			Offset:         &offset,
			ScoreThreshold: &threshold,
			WithPayload: &pb.WithPayloadSelector{
				SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search faces: %w", err)
		}
		return resp.GetResult(), nil
	})
}

// collectCandidates calls search with growing offsets until a page comes back
// short.
func collectCandidates(pageSize int, search func(offset, limit uint64) ([]*pb.ScoredPoint, error)) ([]matcher.Candidate, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	limit := uint64(pageSize)

	var out []matcher.Candidate
	for offset := uint64(0); ; offset += limit {
		page, err := search(offset, limit)
		if err != nil {
			return nil, err
		}
		for _, scored := range page {
			payload := scored.GetPayload()
			out = append(out, matcher.Candidate{
				Position: int(payload["position"].GetIntegerValue()),
				Identity: payload["identity"].GetStringValue(),
				Distance: float64(scored.GetScore()),
			})
		}
		if uint64(len(page)) < limit {
			return out, nil
		}
	}
}

// PointID derives a stable point UUID from the collection and gallery position.
func PointID(collection string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", collection, position))).String()
}

func toFloat32(v domain.Embedding) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
