package metadata

import (
	"strings"

	"github.com/feral-file/market-indexer/internal/domain"
)

// GatewayURL rewrites a content-addressed URI to an HTTP URL served by gateway.
// HTTP(S) URIs and unknown schemes are returned unchanged.
func GatewayURL(gateway, uri string) string {
	uri = strings.TrimSpace(uri)
	rest, ok := strings.CutPrefix(uri, domain.IPFSScheme)
	if !ok {
		return uri
	}

	// ipfs://ipfs/<cid> is a common malformed variant
	rest = strings.TrimPrefix(rest, "ipfs/")
	return strings.TrimRight(gateway, "/") + "/" + rest
}

func isHTTP(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}
