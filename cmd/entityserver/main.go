package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/RyanDowne/hifi/internal/clock"
	"github.com/RyanDowne/hifi/internal/config"
	"github.com/RyanDowne/hifi/internal/persistence/archive"
	"github.com/RyanDowne/hifi/internal/persistence/editlog"
	"github.com/RyanDowne/hifi/internal/persistence/journal"
	"github.com/RyanDowne/hifi/internal/persistence/r2s3"
	"github.com/RyanDowne/hifi/internal/sim/domain"
	"github.com/RyanDowne/hifi/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		configPath = flag.String("config", "", "path to config yaml (optional)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		domainID   = flag.String("domain", "", "domain id (overrides config)")

		archPath   = flag.String("archive", "", "path to archive to load (optional)")
		loadLatest = flag.Bool("load_latest_archive", true, "load latest archive from data dir if present (when -archive is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[entityserver] ", log.LstdFlags|log.Lmicroseconds)

	cfg := config.Defaults()
	if p := strings.TrimSpace(*configPath); p != "" {
		var err error
		cfg, err = config.Load(p)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *domainID != "" {
		cfg.DomainID = *domainID
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	domainDir := filepath.Join(cfg.DataDir, "domains", cfg.DomainID)
	_ = os.MkdirAll(domainDir, 0o755)

	// Optional offsite mirror; Close drains after the edit log flushes its
	// final segment, so the defer order below matters.
	mirror, err := buildMirrorRuntime(cfg.DataDir, logger)
	if err != nil {
		logger.Fatalf("r2 mirror: %v", err)
	}
	defer mirror.Close()
	if mirror.enabled {
		logger.Printf("mirroring archives and edit logs to r2 bucket=%s", os.Getenv("HIFI_R2_BUCKET"))
	}

	d := domain.NewDomain(domain.Config{
		ID:                cfg.DomainID,
		TickRateHz:        int(cfg.TickRateHz),
		PacketBudget:      cfg.PacketBudget,
		ArchiveEveryTicks: cfg.ArchiveEveryTicks,
	}, &domain.Context{
		Clock:              clock.System{},
		Log:                logger,
		SendPhysicsUpdates: cfg.SendPhysicsUpdates,
	})

	// Optional: queryable edit index (the edit log stays the source of truth).
	var store *journal.Store
	if cfg.Journal.Enabled {
		s, err := journal.Open(filepath.Join(domainDir, "journal.db"))
		if err != nil {
			logger.Fatalf("open journal: %v", err)
		}
		defer s.Close()
		store = s
		d.SetJournal(s)
	} else {
		logger.Printf("edit journal disabled")
	}

	if cfg.EditLog.Enabled {
		elOpts := editlog.Options{}
		if mirror.enabled {
			elOpts.RotateLayout = mirror.rotateLayout
			elOpts.OnClose = mirror.Enqueue
		}
		el := editlog.NewWriterWithOptions(filepath.Join(domainDir, "edits"), elOpts)
		defer el.Close()
		d.SetEditLog(el)
	} else {
		logger.Printf("edit log disabled")
	}

	// Resume from an archive (explicit path wins over the latest on disk).
	archiveToLoad := strings.TrimSpace(*archPath)
	if archiveToLoad == "" && *loadLatest {
		archiveToLoad = latestArchive(domainDir)
	}
	if archiveToLoad != "" {
		doc, err := archive.Read(archiveToLoad)
		if err != nil {
			logger.Fatalf("read archive: %v", err)
		}
		if doc.Header.DomainID != "" && doc.Header.DomainID != cfg.DomainID {
			logger.Fatalf("archive domain id mismatch: flag=%s archive=%s", cfg.DomainID, doc.Header.DomainID)
		}
		if err := d.ImportArchive(doc); err != nil {
			logger.Fatalf("import archive: %v", err)
		}
		logger.Printf("resumed from archive=%s entities=%d", filepath.Base(archiveToLoad), d.EntityCount())
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Archive writer.
	archCh := make(chan archive.DomainV1, 2)
	d.SetArchiveSink(archCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case doc := <-archCh:
				path := filepath.Join(domainDir, "archives", fmt.Sprintf("%d.json.zst", doc.Header.WrittenUsec))
				if err := archive.Write(path, doc); err != nil {
					logger.Printf("archive write: %v", err)
					continue
				}
				logger.Printf("archived %d entities to %s", len(doc.Entities), filepath.Base(path))
				if err := store.RecordArchive(doc.Header.WrittenUsec, path, len(doc.Entities)); err != nil {
					logger.Printf("index archive: %v", err)
				}
				mirror.Enqueue(path)
			}
		}
	}()

	go func() {
		if err := d.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("domain stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := d.Metrics()
		tick := d.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP hifi_domain_tick Current domain tick.\n")
		fmt.Fprintf(rw, "# TYPE hifi_domain_tick gauge\n")
		fmt.Fprintf(rw, "hifi_domain_tick{domain=%q} %d\n", cfg.DomainID, tick)

		fmt.Fprintf(rw, "# HELP hifi_domain_entities Current number of entities in the domain.\n")
		fmt.Fprintf(rw, "# TYPE hifi_domain_entities gauge\n")
		fmt.Fprintf(rw, "hifi_domain_entities{domain=%q} %d\n", cfg.DomainID, m.Entities)

		fmt.Fprintf(rw, "# HELP hifi_domain_sessions Current number of connected sessions.\n")
		fmt.Fprintf(rw, "# TYPE hifi_domain_sessions gauge\n")
		fmt.Fprintf(rw, "hifi_domain_sessions{domain=%q} %d\n", cfg.DomainID, m.Sessions)

		fmt.Fprintf(rw, "# HELP hifi_domain_deferred_entities Entities with properties waiting for a retry frame, summed over sessions.\n")
		fmt.Fprintf(rw, "# TYPE hifi_domain_deferred_entities gauge\n")
		fmt.Fprintf(rw, "hifi_domain_deferred_entities{domain=%q} %d\n", cfg.DomainID, m.DeferredEntities)

		fmt.Fprintf(rw, "# HELP hifi_domain_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE hifi_domain_queue_depth gauge\n")
		fmt.Fprintf(rw, "hifi_domain_queue_depth{domain=%q,queue=%q} %d\n", cfg.DomainID, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "hifi_domain_queue_depth{domain=%q,queue=%q} %d\n", cfg.DomainID, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "hifi_domain_queue_depth{domain=%q,queue=%q} %d\n", cfg.DomainID, "leave", m.QueueDepths.Leave)

		fmt.Fprintf(rw, "# HELP hifi_domain_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE hifi_domain_step_ms gauge\n")
		fmt.Fprintf(rw, "hifi_domain_step_ms{domain=%q} %.3f\n", cfg.DomainID, m.StepMS)
	})

	enableAdminHTTP := envBool("HIFI_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("HIFI_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				DomainID string               `json:"domain_id"`
				Tick     uint64               `json:"tick"`
				Metrics  domain.DomainMetrics `json:"metrics"`
				Mirror   *r2s3.Stats          `json:"mirror,omitempty"`
			}{
				DomainID: cfg.DomainID,
				Tick:     d.CurrentTick(),
				Metrics:  d.Metrics(),
				Mirror:   mirror.stats(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/archive", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			tick, err := d.RequestArchive(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
		})
	} else {
		logger.Printf("admin endpoints disabled (HIFI_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(d, logger).Handler())

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("domain %s listening on %s", cfg.DomainID, cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// latestArchive returns the newest archive under domainDir by written stamp,
// or "" when none exist.
func latestArchive(domainDir string) string {
	dir := filepath.Join(domainDir, "archives")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestUsec uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".json.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".json.zst")
		usec, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || usec > bestUsec {
			bestUsec = usec
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(name string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
