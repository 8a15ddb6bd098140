package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"scrollworld.ai/internal/persistence/r2s3"
)

// buildArchiveMirror returns nil when SW_ARCHIVE_MIRROR is off. Finished
// step-log segments are uploaded under <prefix>/worlds/<id>/steps/.
func buildArchiveMirror(dataDir string, logger *log.Logger) (*r2s3.Mirror, error) {
	if !envBool("SW_ARCHIVE_MIRROR", false) {
		return nil, nil
	}
	cfg, ok := r2s3.ConfigFromEnv()
	if !ok {
		return nil, fmt.Errorf("SW_ARCHIVE_MIRROR=true but SW_ARCHIVE_ENDPOINT is not set")
	}
	client, err := r2s3.New(cfg)
	if err != nil {
		return nil, err
	}
	return r2s3.NewMirror(client, r2s3.MirrorConfig{
		DataDir: dataDir,
		Prefix:  strings.TrimSpace(os.Getenv("SW_ARCHIVE_PREFIX")),
		Workers: envInt("SW_ARCHIVE_UPLOAD_WORKERS", 2),
	}, logger), nil
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
