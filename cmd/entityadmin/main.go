// Command entityadmin is the operator toolbox: it lists domain data, queries
// the edit journal, talks to a running server's admin endpoints, and rebuilds
// repaired archives with a griefer's mutations stripped out.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/clock"
	"github.com/RyanDowne/hifi/internal/persistence/archive"
	"github.com/RyanDowne/hifi/internal/persistence/editlog"
	"github.com/RyanDowne/hifi/internal/protocol"
	"github.com/RyanDowne/hifi/internal/sim/domain"
	"github.com/RyanDowne/hifi/internal/sim/entity"
	"github.com/RyanDowne/hifi/internal/units"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "rollback":
			rollbackCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "archive":
			archiveCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("entityadmin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	domainID := fs.String("domain", "", "domain id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "domains")
	if *domainID != "" {
		base = filepath.Join(base, *domainID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// rollbackCmd rebuilds an archive with selected mutations removed: load a
// base archive, replay the edit log after it, and drop every entry that
// matches the session and/or region filters.
func rollbackCmd(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	domainID := fs.String("domain", "", "domain id")
	archPath := fs.String("archive", "", "base archive path (optional; defaults to latest)")
	session := fs.String("session", "", "drop entries from this session id")
	aabb := fs.String("aabb", "", "drop entries placing entities inside x1,y1,z1:x2,y2,z2 (meters)")
	sinceUsec := fs.Uint64("since_usec", 0, "drop window start, inclusive (0 = archive stamp)")
	toUsec := fs.Uint64("to_usec", 0, "drop window end, inclusive (0 = unbounded)")
	outPath := fs.String("out", "", "output archive path (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*domainID) == "" {
		fmt.Fprintln(os.Stderr, "missing -domain")
		os.Exit(2)
	}
	if strings.TrimSpace(*session) == "" && strings.TrimSpace(*aabb) == "" {
		fmt.Fprintln(os.Stderr, "nothing selects entries to drop; pass -session and/or -aabb")
		os.Exit(2)
	}

	domainDir := filepath.Join(*dataDir, "domains", *domainID)
	base := strings.TrimSpace(*archPath)
	if base == "" {
		base = latestArchive(domainDir)
	}
	if base == "" {
		fmt.Fprintln(os.Stderr, "no archive found; provide -archive or run the server until it writes one")
		os.Exit(2)
	}

	doc, err := archive.Read(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read archive:", err)
		os.Exit(1)
	}

	var useAABB bool
	var min, max [3]float64
	if strings.TrimSpace(*aabb) != "" {
		min, max, err = parseAABB(*aabb)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -aabb:", err)
			os.Exit(2)
		}
		useAABB = true
	}

	edits, err := editlog.ReadDir(filepath.Join(domainDir, "edits"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read edit log:", err)
		os.Exit(1)
	}

	logger := log.New(os.Stderr, "[entityadmin] ", 0)
	mc := clock.NewManual(0)
	d := domain.NewDomain(domain.Config{ID: *domainID}, &domain.Context{Clock: mc, Log: logger})

	mc.Set(doc.Header.WrittenUsec)
	if err := d.ImportArchive(doc); err != nil {
		fmt.Fprintln(os.Stderr, "import archive:", err)
		os.Exit(1)
	}

	var applied, rolledBack, stale, bad int
	for _, e := range edits {
		// entries at or before the archive stamp are baked into it already
		if e.ReceivedUsec <= doc.Header.WrittenUsec {
			stale++
			continue
		}
		if e.ReceivedUsec > mc.NowUsec() {
			mc.Set(e.ReceivedUsec)
		}

		if dropEntry(e, *session, useAABB, min, max, *sinceUsec, *toUsec) {
			rolledBack++
			continue
		}

		switch e.Op {
		case domain.OpCreate:
			if _, err := d.RestoreEntity(e.Blob); err != nil {
				logger.Printf("skip create at %d: %v", e.ReceivedUsec, err)
				bad++
				continue
			}
		case domain.OpEdit:
			d.StepOnce([]domain.EditEnvelope{{SessionID: e.SessionID, Buf: e.Blob}})
		case domain.OpDelete:
			id, err := uuid.Parse(e.EntityID)
			if err != nil {
				logger.Printf("skip delete at %d: %v", e.ReceivedUsec, err)
				bad++
				continue
			}
			d.RemoveEntity(id)
		default:
			logger.Printf("skip unknown op %q at %d", e.Op, e.ReceivedUsec)
			bad++
			continue
		}
		applied++
	}

	// expire anything overdue at the final stamp
	d.StepOnce(nil)
	final := d.ExportArchive(mc.NowUsec())

	out := strings.TrimSpace(*outPath)
	if out == "" {
		out = filepath.Join(domainDir, "archives", fmt.Sprintf("%d.rollback.json.zst", final.Header.WrittenUsec))
	}
	if err := archive.Write(out, final); err != nil {
		fmt.Fprintln(os.Stderr, "write archive:", err)
		os.Exit(1)
	}

	fmt.Printf("rollback ok: base=%s applied=%d rolled_back=%d stale=%d bad=%d entities=%d out=%s\n",
		filepath.Base(base), applied, rolledBack, stale, bad, len(final.Entities), out)
}

// dropEntry reports whether a logged entry matches the rollback filters.
// The region filter needs a position in the blob, so it never matches
// deletes or position-less edits; pair it with -session for those.
func dropEntry(e domain.LoggedEdit, session string, useAABB bool, min, max [3]float64, sinceUsec, toUsec uint64) bool {
	if sinceUsec != 0 && e.ReceivedUsec < sinceUsec {
		return false
	}
	if toUsec != 0 && e.ReceivedUsec > toUsec {
		return false
	}
	if session != "" && e.SessionID != session {
		return false
	}
	if useAABB {
		if len(e.Blob) == 0 {
			return false
		}
		upd, _, err := protocol.ReadEntityData(e.Blob)
		if err != nil || !upd.Props.Changed().Has(entity.PropPosition) {
			return false
		}
		p := units.Vec3DomainUnitsToMeters(upd.Props.Position)
		if float64(p.X()) < min[0] || float64(p.X()) > max[0] ||
			float64(p.Y()) < min[1] || float64(p.Y()) > max[1] ||
			float64(p.Z()) < min[2] || float64(p.Z()) > max[2] {
			return false
		}
	}
	return true
}

func parseAABB(s string) (min, max [3]float64, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	a, err := parseVec3(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec3(parts[1])
	if err != nil {
		return min, max, err
	}
	for i := 0; i < 3; i++ {
		if a[i] <= b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return min, max, nil
}

func parseVec3(s string) ([3]float64, error) {
	var v [3]float64
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
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
		// rollback outputs carry a non-numeric base and are skipped here;
		// boot from one with an explicit -archive
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
