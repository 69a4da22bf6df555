package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/feral-file/market-indexer/internal/adapter"
	"github.com/feral-file/market-indexer/internal/domain"
	"github.com/feral-file/market-indexer/internal/logger"
	"github.com/feral-file/market-indexer/internal/metrics"
)

// DefaultTimeout bounds a resolution when the configured timeout is not positive
const DefaultTimeout = 30 * time.Second

// ErrNotJSON is returned when a metadata body is not a JSON object
var ErrNotJSON = errors.New("metadata is not a JSON object")

// Config holds resolver configuration
type Config struct {
	// Gateway is the HTTP base URL substituted for the ipfs:// prefix
	Gateway string
	// Timeout bounds one resolution, retries included
	Timeout time.Duration
}

// Resolver fetches the off-chain document referenced by a token URI
//
//go:generate mockgen -source=resolver.go -destination=../mocks/metadata_resolver.go -package=mocks -mock_names=Resolver=MockMetadataResolver
type Resolver interface {
	// Resolve never fails: any fetch or decode failure yields an empty document
	Resolve(ctx context.Context, uri string) *domain.Metadata

	// GatewayURL rewrites a content-addressed URI using the configured gateway
	GatewayURL(uri string) string
}

type resolver struct {
	config     Config
	httpClient adapter.HTTPClient
	json       adapter.JSON
}

// NewResolver creates a metadata resolver
func NewResolver(config Config, httpClient adapter.HTTPClient, json adapter.JSON) Resolver {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &resolver{
		config:     config,
		httpClient: httpClient,
		json:       json,
	}
}

func (r *resolver) GatewayURL(uri string) string {
	return GatewayURL(r.config.Gateway, uri)
}

func (r *resolver) Resolve(ctx context.Context, uri string) *domain.Metadata {
	if strings.TrimSpace(uri) == "" {
		return &domain.Metadata{}
	}

	doc, err := r.resolve(ctx, uri)
	metrics.RecordMetadataFetch(err == nil)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to resolve metadata, using fallback",
			zap.String("uri", uri),
			zap.Error(err))
		return &domain.Metadata{}
	}

	return doc
}

func (r *resolver) resolve(ctx context.Context, uri string) (*domain.Metadata, error) {
	var body []byte
	if strings.HasPrefix(uri, "data:") {
		data, err := parseDataURI(uri)
		if err != nil {
			return nil, err
		}
		body = data
	} else {
		target := r.GatewayURL(uri)
		if !isHTTP(target) {
			return nil, fmt.Errorf("unsupported URI scheme: %s", uri)
		}

		ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()

		data, err := r.httpClient.GetBytes(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch metadata: %w", err)
		}
		body = data
	}

	return r.decode(body)
}

// decode validates a metadata body and extracts the display fields
func (r *resolver) decode(body []byte) (*domain.Metadata, error) {
	mtype := mimetype.Detect(body)
	if isBinaryMedia(mtype) {
		return nil, fmt.Errorf("%w: got %s", ErrNotJSON, mtype.String())
	}

	var raw map[string]interface{}
	if err := r.json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	if raw == nil {
		return nil, ErrNotJSON
	}

	canonical, err := r.json.Canonicalize(body)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize metadata: %w", err)
	}
	hash := sha256.Sum256(canonical)

	doc := &domain.Metadata{
		Name:        stringField(raw, "name"),
		Description: stringField(raw, "description"),
		Image:       r.GatewayURL(stringField(raw, "image")),
		Raw:         canonical,
		Hash:        hex.EncodeToString(hash[:]),
	}
	return doc, nil
}

func isBinaryMedia(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		name := m.String()
		if strings.HasPrefix(name, "image/") ||
			strings.HasPrefix(name, "video/") ||
			strings.HasPrefix(name, "audio/") ||
			strings.HasPrefix(name, "text/html") {
			return true
		}
	}
	return false
}

func stringField(raw map[string]interface{}, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

// parseDataURI returns the payload of a data: URI, decoding base64 when flagged
func parseDataURI(uri string) ([]byte, error) {
	header, data, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URI format")
	}

	if strings.Contains(header, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64: %w", err)
		}
		return decoded, nil
	}

	unescaped, err := url.PathUnescape(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unescape data URI: %w", err)
	}
	return []byte(unescaped), nil
}
