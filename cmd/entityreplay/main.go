package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/clock"
	"github.com/RyanDowne/hifi/internal/persistence/archive"
	"github.com/RyanDowne/hifi/internal/persistence/editlog"
	"github.com/RyanDowne/hifi/internal/sim/domain"
	"github.com/RyanDowne/hifi/internal/units"
)

func main() {
	var (
		archPath = flag.String("archive", "", "path to .json.zst archive to start from (optional)")
		editsDir = flag.String("edits", "", "edit log dir containing edits-*.jsonl.zst (optional)")
		domainID = flag.String("domain", "replay", "domain id for a fresh table (ignored with -archive)")
		fromUsec = flag.Uint64("from_usec", 0, "skip log entries received before this stamp (optional)")
		toUsec   = flag.Uint64("to_usec", 0, "stop after this stamp (inclusive, optional)")
		outPath  = flag.String("out", "", "write the replayed table as a new archive (optional)")
		printAll = flag.Bool("print_entities", false, "print the final entity table")
	)
	flag.Parse()

	if *archPath == "" && *editsDir == "" {
		fmt.Fprintln(os.Stderr, "need -archive and/or -edits")
		os.Exit(2)
	}

	logger := log.New(os.Stderr, "[replay] ", 0)
	mc := clock.NewManual(0)

	var doc archive.DomainV1
	haveArchive := false
	if *archPath != "" {
		var err error
		doc, err = archive.Read(*archPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read archive:", err)
			os.Exit(1)
		}
		haveArchive = true
		fmt.Printf("archive v%d domain=%s written=%d entities=%d\n",
			doc.Header.Version, doc.Header.DomainID, doc.Header.WrittenUsec, len(doc.Entities))
	}

	domID := *domainID
	if haveArchive && doc.Header.DomainID != "" {
		domID = doc.Header.DomainID
	}

	d := domain.NewDomain(domain.Config{ID: domID}, &domain.Context{Clock: mc, Log: logger})
	if haveArchive {
		mc.Set(doc.Header.WrittenUsec)
		if err := d.ImportArchive(doc); err != nil {
			fmt.Fprintln(os.Stderr, "import archive:", err)
			os.Exit(1)
		}
	}

	var creates, edits, deletes, skipped int
	if *editsDir != "" {
		entries, err := editlog.ReadDir(*editsDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read edit log:", err)
			os.Exit(1)
		}
		for _, e := range entries {
			if e.ReceivedUsec < *fromUsec {
				continue
			}
			if *toUsec != 0 && e.ReceivedUsec > *toUsec {
				break
			}
			// clock only moves forward; the log is in arrival order
			if e.ReceivedUsec > mc.NowUsec() {
				mc.Set(e.ReceivedUsec)
			}
			switch e.Op {
			case domain.OpCreate:
				if _, err := d.RestoreEntity(e.Blob); err != nil {
					fmt.Fprintf(os.Stderr, "skip create at %d: %v\n", e.ReceivedUsec, err)
					skipped++
					continue
				}
				creates++
			case domain.OpEdit:
				// blobs are stored in the server clock frame, so they
				// replay with zero skew
				d.StepOnce([]domain.EditEnvelope{{SessionID: e.SessionID, Buf: e.Blob}})
				edits++
			case domain.OpDelete:
				eid, err := uuid.Parse(e.EntityID)
				if err != nil || !d.RemoveEntity(eid) {
					fmt.Fprintf(os.Stderr, "skip delete of %q at %d\n", e.EntityID, e.ReceivedUsec)
					skipped++
					continue
				}
				deletes++
			default:
				fmt.Fprintf(os.Stderr, "skip unknown op %q at %d\n", e.Op, e.ReceivedUsec)
				skipped++
			}
		}
		// one closing tick so lifetimes overdue at the final stamp expire
		d.StepOnce(nil)
	}

	final := d.ExportArchive(mc.NowUsec())
	fmt.Printf("replay ok: creates=%d edits=%d deletes=%d skipped=%d entities=%d\n",
		creates, edits, deletes, skipped, len(final.Entities))

	if *printAll {
		printEntities(final)
	}
	if *outPath != "" {
		if err := archive.Write(*outPath, final); err != nil {
			fmt.Fprintln(os.Stderr, "write archive:", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *outPath)
	}
}

func printEntities(doc archive.DomainV1) {
	ents := make([]archive.EntityV1, len(doc.Entities))
	copy(ents, doc.Entities)
	sort.Slice(ents, func(i, j int) bool { return ents[i].ID < ents[j].ID })
	for _, e := range ents {
		pos := units.Vec3DomainUnitsToMeters(mgl32.Vec3{e.Position[0], e.Position[1], e.Position[2]})
		dims := units.Vec3DomainUnitsToMeters(mgl32.Vec3{e.Dimensions[0], e.Dimensions[1], e.Dimensions[2]})
		fmt.Printf("%s %-14s pos=(%.3f,%.3f,%.3f)m dims=(%.3f,%.3f,%.3f)m edited=%d\n",
			e.ID, e.Type, pos[0], pos[1], pos[2], dims[0], dims[1], dims[2], e.LastEditedUsec)
	}
}
