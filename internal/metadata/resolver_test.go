package metadata_test

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/market-indexer/internal/adapter"
	"github.com/feral-file/market-indexer/internal/logger"
	"github.com/feral-file/market-indexer/internal/metadata"
	"github.com/feral-file/market-indexer/internal/mocks"
)

const testGateway = "https://gateway.example.com/ipfs/"

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

type testResolverMocks struct {
	ctrl       *gomock.Controller
	httpClient *mocks.MockHTTPClient
	resolver   metadata.Resolver
}

func setupTestResolver(t *testing.T) *testResolverMocks {
	ctrl := gomock.NewController(t)
	httpClient := mocks.NewMockHTTPClient(ctrl)

	return &testResolverMocks{
		ctrl:       ctrl,
		httpClient: httpClient,
		resolver: metadata.NewResolver(metadata.Config{
			Gateway: testGateway,
			Timeout: 2 * time.Second,
		}, httpClient, adapter.NewJSON()),
	}
}

func TestGatewayURL(t *testing.T) {
	tests := []struct {
		name     string
		gateway  string
		uri      string
		expected string
	}{
		{name: "ipfs scheme", gateway: testGateway, uri: "ipfs://QmHash/1.json", expected: "https://gateway.example.com/ipfs/QmHash/1.json"},
		{name: "gateway without trailing slash", gateway: "https://gw.io/ipfs", uri: "ipfs://QmHash", expected: "https://gw.io/ipfs/QmHash"},
		{name: "doubled ipfs path", gateway: testGateway, uri: "ipfs://ipfs/QmHash", expected: "https://gateway.example.com/ipfs/QmHash"},
		{name: "https passthrough", gateway: testGateway, uri: "https://example.com/meta.json", expected: "https://example.com/meta.json"},
		{name: "http passthrough", gateway: testGateway, uri: "http://example.com/meta.json", expected: "http://example.com/meta.json"},
		{name: "empty", gateway: testGateway, uri: "", expected: ""},
		{name: "other scheme untouched", gateway: testGateway, uri: "ar://tx", expected: "ar://tx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, metadata.GatewayURL(tt.gateway, tt.uri))
		})
	}
}

func TestResolver_Resolve_IPFS(t *testing.T) {
	tm := setupTestResolver(t)
	defer tm.ctrl.Finish()

	body := []byte(`{"name":"Sunset","description":"A sunset","image":"ipfs://QmImage","attributes":[]}`)
	tm.httpClient.EXPECT().
		GetBytes(gomock.Any(), "https://gateway.example.com/ipfs/QmMeta").
		DoAndReturn(func(ctx context.Context, url string) ([]byte, error) {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return body, nil
		})

	doc := tm.resolver.Resolve(context.Background(), "ipfs://QmMeta")

	require.NotNil(t, doc)
	assert.False(t, doc.Empty())
	assert.Equal(t, "Sunset", doc.Name)
	assert.Equal(t, "A sunset", doc.Description)
	assert.Equal(t, "https://gateway.example.com/ipfs/QmImage", doc.Image)
	assert.JSONEq(t, string(body), string(doc.Raw))
	assert.Len(t, doc.Hash, 64)
}

func TestResolver_Resolve_HashIsCanonical(t *testing.T) {
	tm := setupTestResolver(t)
	defer tm.ctrl.Finish()

	tm.httpClient.EXPECT().GetBytes(gomock.Any(), "https://a.example.com/1").Return([]byte(`{"name":"X","image":""}`), nil)
	tm.httpClient.EXPECT().GetBytes(gomock.Any(), "https://a.example.com/2").Return([]byte(`{ "image" : "", "name" : "X" }`), nil)

	first := tm.resolver.Resolve(context.Background(), "https://a.example.com/1")
	second := tm.resolver.Resolve(context.Background(), "https://a.example.com/2")

	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, `{"image":"","name":"X"}`, string(first.Raw))
}

func TestResolver_Resolve_Fallbacks(t *testing.T) {
	tests := []struct {
		name  string
		uri   string
		setup func(*testResolverMocks)
	}{
		{
			name: "fetch error",
			uri:  "ipfs://QmMissing",
			setup: func(tm *testResolverMocks) {
				tm.httpClient.EXPECT().GetBytes(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))
			},
		},
		{
			name: "html body",
			uri:  "https://example.com/page",
			setup: func(tm *testResolverMocks) {
				tm.httpClient.EXPECT().GetBytes(gomock.Any(), gomock.Any()).Return([]byte("<!DOCTYPE html><html><body>gateway error</body></html>"), nil)
			},
		},
		{
			name: "png body",
			uri:  "https://example.com/image",
			setup: func(tm *testResolverMocks) {
				tm.httpClient.EXPECT().GetBytes(gomock.Any(), gomock.Any()).Return([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), nil)
			},
		},
		{
			name: "json array",
			uri:  "https://example.com/array",
			setup: func(tm *testResolverMocks) {
				tm.httpClient.EXPECT().GetBytes(gomock.Any(), gomock.Any()).Return([]byte(`[1,2,3]`), nil)
			},
		},
		{
			name: "json null",
			uri:  "https://example.com/null",
			setup: func(tm *testResolverMocks) {
				tm.httpClient.EXPECT().GetBytes(gomock.Any(), gomock.Any()).Return([]byte(`null`), nil)
			},
		},
		{
			name:  "unsupported scheme",
			uri:   "ar://tx-id",
			setup: func(*testResolverMocks) {},
		},
		{
			name:  "empty uri",
			uri:   "",
			setup: func(*testResolverMocks) {},
		},
		{
			name:  "broken data uri",
			uri:   "data:application/json;base64,!!!",
			setup: func(*testResolverMocks) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTestResolver(t)
			defer tm.ctrl.Finish()
			tt.setup(tm)

			doc := tm.resolver.Resolve(context.Background(), tt.uri)

			require.NotNil(t, doc)
			assert.True(t, doc.Empty())
			assert.Empty(t, doc.Name)
			assert.Empty(t, doc.Description)
			assert.Empty(t, doc.Image)
		})
	}
}

func TestResolver_Resolve_DataURI(t *testing.T) {
	tm := setupTestResolver(t)
	defer tm.ctrl.Finish()

	encoded := base64.StdEncoding.EncodeToString([]byte(`{"name":"On-chain","image":"ipfs://QmImg"}`))

	doc := tm.resolver.Resolve(context.Background(), "data:application/json;base64,"+encoded)

	assert.Equal(t, "On-chain", doc.Name)
	assert.Equal(t, "https://gateway.example.com/ipfs/QmImg", doc.Image)

	plain := tm.resolver.Resolve(context.Background(), `data:application/json,{"name":"Plain%20text"}`)
	assert.Equal(t, "Plain text", plain.Name)
}

func TestResolver_Resolve_NonStringFields(t *testing.T) {
	tm := setupTestResolver(t)
	defer tm.ctrl.Finish()

	tm.httpClient.EXPECT().GetBytes(gomock.Any(), gomock.Any()).Return([]byte(`{"name":42,"description":null}`), nil)

	doc := tm.resolver.Resolve(context.Background(), "https://example.com/odd")

	assert.False(t, doc.Empty())
	assert.Empty(t, doc.Name)
	assert.Empty(t, doc.Description)
}

func TestResolver_Resolve_ZeroTimeoutStillBounded(t *testing.T) {
	ctrl := gomock.NewController(t)
	httpClient := mocks.NewMockHTTPClient(ctrl)
	resolver := metadata.NewResolver(metadata.Config{Gateway: testGateway}, httpClient, adapter.NewJSON())

	httpClient.EXPECT().
		GetBytes(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, url string) ([]byte, error) {
			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(metadata.DefaultTimeout), deadline, 5*time.Second)
			return nil, errors.New("429 Too Many Requests")
		})

	doc := resolver.Resolve(context.Background(), "ipfs://QmMeta")
	require.NotNil(t, doc)
	assert.True(t, doc.Empty())
}
