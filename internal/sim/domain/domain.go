package domain

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/persistence/archive"
	"github.com/RyanDowne/hifi/internal/sim/entity"
)

type Config struct {
	ID           string
	TickRateHz   int
	PacketBudget int
	// ArchiveEveryTicks exports the entity table to the archive sink every
	// N ticks; 0 disables periodic export.
	ArchiveEveryTicks uint64
}

// Domain is a single-threaded authoritative entity table. All state must be
// accessed only from the domain loop goroutine; other goroutines talk to it
// through the channels below.
type Domain struct {
	cfg Config
	env *Context

	tick    atomic.Uint64
	metrics atomic.Value // DomainMetrics

	records map[uuid.UUID]*entity.Record
	cells   map[uuid.UUID]*CellRef

	sessions map[string]*sessionState

	inbox      chan EditEnvelope
	join       chan JoinRequest
	leave      chan string
	create     chan createReq
	del        chan deleteReq
	spatial    chan spatialReq
	archiveNow chan archiveNowReq
	stop       chan struct{}

	nextSessionNum atomic.Uint64

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	journal EditJournal
	editLog EditLog

	// Optional archive sink (may be nil). Archive writing is off-thread.
	archiveSink chan<- archive.DomainV1
}

func NewDomain(cfg Config, env *Context) *Domain {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 30
	}
	if cfg.PacketBudget <= 0 {
		cfg.PacketBudget = 1200
	}
	return &Domain{
		cfg:        cfg,
		env:        normalizeContext(env),
		records:    make(map[uuid.UUID]*entity.Record),
		cells:      make(map[uuid.UUID]*CellRef),
		sessions:   make(map[string]*sessionState),
		inbox:      make(chan EditEnvelope, 256),
		join:       make(chan JoinRequest),
		leave:      make(chan string, 16),
		create:     make(chan createReq),
		del:        make(chan deleteReq),
		spatial:    make(chan spatialReq),
		archiveNow: make(chan archiveNowReq),
		stop:       make(chan struct{}),
	}
}

func (d *Domain) ID() string {
	if d == nil {
		return ""
	}
	return d.cfg.ID
}

func (d *Domain) TickRateHz() int {
	if d == nil {
		return 0
	}
	return d.cfg.TickRateHz
}

func (d *Domain) CurrentTick() uint64 { return d.tick.Load() }

func (d *Domain) Inbox() chan<- EditEnvelope { return d.inbox }
func (d *Domain) Leave() chan<- string       { return d.leave }

func (d *Domain) SetJournal(j EditJournal) { d.journal = j }
func (d *Domain) SetEditLog(l EditLog)     { d.editLog = l }

func (d *Domain) SetArchiveSink(ch chan<- archive.DomainV1) { d.archiveSink = ch }

func (d *Domain) newSessionID() string {
	n := d.nextSessionNum.Add(1)
	return fmt.Sprintf("S%06d", n)
}

// EntityCount reports the table size; loop goroutine only.
func (d *Domain) EntityCount() int { return len(d.records) }
