// Client side of the replication protocol: reporting changes and uploading
// objects (the producer path), and the long-lived sync loop that follows the
// server's event stream and materializes blobs locally.
package hitclient

import (
	"os"
	"strings"
)

const (
	serverURLEnvName = "HITSYNC_SERVER_URL"
	defaultServerURL = "http://localhost:8888"
)

type ClientConfig struct {
	ServerAddr string
}

// server base URL from the environment, defaulting to the local dev server
func ReadConfig() *ClientConfig {
	addr := os.Getenv(serverURLEnvName)
	if addr == "" {
		addr = defaultServerURL
	}

	return &ClientConfig{ServerAddr: strings.TrimRight(addr, "/")}
}

func (c *ClientConfig) ApiPath(path string) string {
	return c.ServerAddr + path
}
