package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "proposal:"
	pdfKeyPrefix  = "proposal:pdf:"
	updateRetries = 10
)

// Store keeps proposals and their rendered PDFs in Redis. A PDF is only
// present while its proposal is ready.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore instantiates the store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Create saves a new proposal.
func (s *Store) Create(ctx context.Context, p Proposal) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("proposal: encode: %w", err)
	}
	return s.client.Set(ctx, keyPrefix+p.ID, raw, s.ttl).Err()
}

// Get loads a proposal.
func (s *Store) Get(ctx context.Context, id string) (Proposal, error) {
	return s.load(ctx, s.client, id)
}

// Update applies fn inside an optimistic transaction.
func (s *Store) Update(ctx context.Context, id string, fn func(*Proposal) error) (Proposal, error) {
	return s.update(ctx, id, fn, nil)
}

// UpdateWithPDF applies fn and stores pdf in the same transaction when the
// proposal ends up ready.
func (s *Store) UpdateWithPDF(ctx context.Context, id string, pdf []byte, fn func(*Proposal) error) (Proposal, error) {
	return s.update(ctx, id, fn, pdf)
}

// PDF returns the rendered document.
func (s *Store) PDF(ctx context.Context, id string) ([]byte, error) {
	pdf, err := s.client.Get(ctx, pdfKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPDFNotReady
	}
	if err != nil {
		return nil, fmt.Errorf("proposal: load pdf: %w", err)
	}
	return pdf, nil
}

func (s *Store) update(ctx context.Context, id string, fn func(*Proposal) error, pdf []byte) (Proposal, error) {
	key := keyPrefix + id
	var out Proposal
	txf := func(tx *redis.Tx) error {
		p, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return err
		}
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("proposal: encode: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			switch {
			case p.Status != StatusReady:
				pipe.Del(ctx, pdfKeyPrefix+id)
			case pdf != nil:
				pipe.Set(ctx, pdfKeyPrefix+id, pdf, s.ttl)
			}
			return nil
		})
		if err == nil {
			out = p
		}
		return err
	}
	for range updateRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return out, err
	}
	return Proposal{}, fmt.Errorf("proposal: update %s: too much contention", id)
}

func (s *Store) load(ctx context.Context, c redis.Cmdable, id string) (Proposal, error) {
	payload, err := c.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Proposal{}, ErrProposalNotFound
	}
	if err != nil {
		return Proposal{}, fmt.Errorf("proposal: load: %w", err)
	}
	var p Proposal
	if err := json.Unmarshal(payload, &p); err != nil {
		return Proposal{}, fmt.Errorf("proposal: decode: %w", err)
	}
	return p, nil
}
