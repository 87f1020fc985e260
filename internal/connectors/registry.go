package connectors

import (
	"fmt"
	"strings"

	"polltrack/internal/config"
	"polltrack/internal/connectors/files"
	"polltrack/internal/connectors/mongodb"
)

// NewPostConnector builds the connector named by source ("files" or "mongo").
func NewPostConnector(cfg config.Config, source string) (PostConnector, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "", "files":
		return files.NewConnector(cfg)
	case "mongo", "mongodb":
		return mongodb.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported posts source: %s", source)
	}
}
