package config

import (
	"sinkflow/sink/httpsink"
)

// LoadHTTPSinkConfig delegates to the HTTP sink loader.
func LoadHTTPSinkConfig(path string) (httpsink.Config, error) {
	return httpsink.LoadConfig(path)
}
