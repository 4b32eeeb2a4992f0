// Package journal persists protocol events in an ordered key-value keyspace.
package journal

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bvkgo/kv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
)

// Keyspace holds one key per event, "/events/<20-digit sequence>"
const Keyspace = "/events"

const (
	minKey = Keyspace + "/00000000000000000000"
	maxKey = Keyspace + "/99999999999999999999"
)

// Entry is a journaled event with its sequence number
type Entry struct {
	Seq   uint64
	Event domain.Event
}

// record is the stored form of an event. Amounts are kept as decimal strings.
type record struct {
	ID           string
	Type         string
	At           time.Time
	BundleID     uint64
	ItemID       uint64
	ItemIDs      []uint64
	Actor        string
	Counterparty string
	Amount       string
	Buyers       []string
	Values       []string
	Reason       string
}

// Journal appends events to a kv.Database. It implements domain.EventSink.
type Journal struct {
	db     kv.Database
	logger *logger.Logger

	mu      sync.Mutex
	lastSeq uint64
}

// Open resumes the journal kept in db, continuing after its last entry
func Open(ctx context.Context, db kv.Database, log *logger.Logger) (*Journal, error) {
	if log == nil {
		log = logger.Nop()
	}
	j := &Journal{db: db, logger: log}

	lastKey := ""
	findLast := func(ctx context.Context, r kv.Reader) error {
		it, err := r.Descend(ctx, minKey, maxKey)
		if err != nil {
			return fmt.Errorf("could not create descending iterator: %w", err)
		}
		defer kv.Close(it)

		k, _, err := it.Fetch(ctx, false)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("could not fetch from descending iterator: %w", err)
		}
		lastKey = k
		return nil
	}
	if err := kv.WithReader(ctx, db, findLast); err != nil {
		return nil, fmt.Errorf("could not determine the last journal entry: %w", err)
	}

	if lastKey != "" {
		seq, err := parseKey(lastKey)
		if err != nil {
			return nil, err
		}
		j.lastSeq = seq
	}
	return j, nil
}

func keyOf(seq uint64) string {
	return path.Join(Keyspace, fmt.Sprintf("%020d", seq))
}

func parseKey(key string) (uint64, error) {
	s := strings.TrimPrefix(key, Keyspace+"/")
	seq, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed journal key %q: %w", key, err)
	}
	return seq, nil
}

// Emit implements domain.EventSink. Write failures are logged, never returned.
func (j *Journal) Emit(ctx context.Context, event domain.Event) {
	if _, err := j.Append(ctx, event); err != nil {
		j.logger.Error("could not journal event", "event_id", event.ID.String(), "type", event.Type, "err", err)
	}
}

// Append stores event under the next sequence number and returns it
func (j *Journal) Append(ctx context.Context, event domain.Event) (uint64, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(toRecord(event)); err != nil {
		return 0, fmt.Errorf("could not encode event: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	seq := j.lastSeq + 1
	save := func(ctx context.Context, rw kv.ReadWriter) error {
		return rw.Set(ctx, keyOf(seq), bytes.NewReader(buf.Bytes()))
	}
	if err := kv.WithReadWriter(ctx, j.db, save); err != nil {
		return 0, fmt.Errorf("could not save event %d: %w", seq, err)
	}
	j.lastSeq = seq
	return seq, nil
}

// LastSeq returns the sequence number of the newest entry, zero when empty
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastSeq
}

// Replay calls fn for every entry with a sequence number greater than after, in order.
// An error from fn stops the replay and is returned.
func (j *Journal) Replay(ctx context.Context, after uint64, fn func(Entry) error) error {
	scan := func(ctx context.Context, r kv.Reader) error {
		it, err := r.Ascend(ctx, keyOf(after+1), maxKey)
		if err != nil {
			return err
		}
		defer kv.Close(it)

		for k, v, err := it.Fetch(ctx, false); err == nil; k, v, err = it.Fetch(ctx, true) {
			seq, err := parseKey(k)
			if err != nil {
				return err
			}
			rec := new(record)
			if err := gob.NewDecoder(v).Decode(rec); err != nil {
				return fmt.Errorf("could not gob-decode value at key %q: %w", k, err)
			}
			event, err := rec.toEvent()
			if err != nil {
				return fmt.Errorf("could not decode event at key %q: %w", k, err)
			}
			if err := fn(Entry{Seq: seq, Event: event}); err != nil {
				return err
			}
		}

		if _, _, err := it.Fetch(ctx, false); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
	return kv.WithReader(ctx, j.db, scan)
}

var errPageFull = errors.New("page full")

// List returns up to limit entries after the given sequence number.
// A limit of zero or less returns every remaining entry.
func (j *Journal) List(ctx context.Context, after uint64, limit int) ([]Entry, error) {
	var entries []Entry
	collect := func(e Entry) error {
		entries = append(entries, e)
		if limit > 0 && len(entries) >= limit {
			return errPageFull
		}
		return nil
	}
	if err := j.Replay(ctx, after, collect); err != nil && !errors.Is(err, errPageFull) {
		return nil, err
	}
	return entries, nil
}

func toRecord(e domain.Event) *record {
	rec := &record{
		ID:           e.ID.String(),
		Type:         string(e.Type),
		At:           e.At,
		BundleID:     uint64(e.BundleID),
		ItemID:       uint64(e.ItemID),
		Actor:        string(e.Actor),
		Counterparty: string(e.Counterparty),
		Amount:       e.Amount.String(),
		Reason:       e.Reason,
	}
	for _, id := range e.ItemIDs {
		rec.ItemIDs = append(rec.ItemIDs, uint64(id))
	}
	for _, b := range e.Buyers {
		rec.Buyers = append(rec.Buyers, string(b))
	}
	for _, v := range e.Values {
		rec.Values = append(rec.Values, v.String())
	}
	return rec
}

func (r *record) toEvent() (domain.Event, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.Event{}, err
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return domain.Event{}, err
	}

	e := domain.Event{
		ID:           id,
		Type:         domain.EventType(r.Type),
		At:           r.At,
		BundleID:     domain.BundleID(r.BundleID),
		ItemID:       domain.ItemID(r.ItemID),
		Actor:        domain.Address(r.Actor),
		Counterparty: domain.Address(r.Counterparty),
		Amount:       amount,
		Reason:       r.Reason,
	}
	for _, id := range r.ItemIDs {
		e.ItemIDs = append(e.ItemIDs, domain.ItemID(id))
	}
	for _, b := range r.Buyers {
		e.Buyers = append(e.Buyers, domain.Address(b))
	}
	for _, s := range r.Values {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return domain.Event{}, err
		}
		e.Values = append(e.Values, v)
	}
	return e, nil
}
