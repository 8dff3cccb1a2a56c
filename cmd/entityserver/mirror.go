package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/RyanDowne/hifi/internal/persistence/r2s3"
)

// mirrorRuntime holds the optional offsite copy of archives and edit log
// segments. Off unless HIFI_R2_MIRROR is set; credentials come from the
// environment so they never land in config files.
type mirrorRuntime struct {
	enabled      bool
	rotateLayout string
	mirror       *r2s3.Mirror
}

func buildMirrorRuntime(dataDir string, logger *log.Logger) (*mirrorRuntime, error) {
	if !envBool("HIFI_R2_MIRROR", false) {
		return &mirrorRuntime{}, nil
	}

	endpoint := strings.TrimSpace(os.Getenv("HIFI_R2_ENDPOINT"))
	bucket := strings.TrimSpace(os.Getenv("HIFI_R2_BUCKET"))
	keyID := strings.TrimSpace(os.Getenv("HIFI_R2_ACCESS_KEY_ID"))
	secret := strings.TrimSpace(os.Getenv("HIFI_R2_SECRET_ACCESS_KEY"))
	prefix := strings.TrimSpace(os.Getenv("HIFI_R2_PREFIX"))

	if endpoint == "" || bucket == "" || keyID == "" || secret == "" {
		return nil, fmt.Errorf("HIFI_R2_MIRROR=true but HIFI_R2_ENDPOINT/HIFI_R2_BUCKET/HIFI_R2_ACCESS_KEY_ID/HIFI_R2_SECRET_ACCESS_KEY are not fully set")
	}

	client, err := r2s3.New(endpoint, bucket, keyID, secret)
	if err != nil {
		return nil, err
	}

	workers := envInt("HIFI_R2_UPLOAD_WORKERS", 2)
	return &mirrorRuntime{
		enabled:      true,
		rotateLayout: "2006-01-02-15-04", // 1-minute edit segments cap the unshipped window
		mirror:       r2s3.NewMirror(client, dataDir, prefix, workers, logger),
	}, nil
}

func (r *mirrorRuntime) Close() {
	if r == nil || r.mirror == nil {
		return
	}
	r.mirror.Close()
}

func (r *mirrorRuntime) Enqueue(localPath string) {
	if r == nil || !r.enabled {
		return
	}
	r.mirror.Enqueue(localPath)
}

// stats returns nil when mirroring is off, so the admin state JSON omits it.
func (r *mirrorRuntime) stats() *r2s3.Stats {
	if r == nil || !r.enabled {
		return nil
	}
	s := r.mirror.Stats()
	return &s
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
