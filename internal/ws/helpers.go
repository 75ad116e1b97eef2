package ws

import (
	"hash/fnv"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const shardCount = 32

func newConnID() string {
	return uuid.NewString()
}

func shardFor(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}

// credentialFromRequest reads ?token= first, then the Authorization header.
func credentialFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("Authorization"))
}
