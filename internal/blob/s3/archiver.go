package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/soromarket/marketd/internal/domain"
)

// Exporter implements domain.ArchiveExporter by serializing the full record
// of an archived market to JSONL and uploading it to the configured bucket.
//
// The export file is one header line describing the market and pool followed
// by one line per position and one line per trade. Deletion of the archived
// records from the primary store is intentionally not performed here; the
// primary store keeps the market in archived status.
type Exporter struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
}

// NewExporter creates an Exporter that uploads through writer and records
// each export in the audit log.
func NewExporter(writer domain.BlobWriter, audit domain.AuditStore) *Exporter {
	return &Exporter{writer: writer, audit: audit}
}

type exportHeader struct {
	Kind        string    `json:"kind"` // "market"
	MarketID    string    `json:"market_id"`
	Description string    `json:"description"`
	Curve       string    `json:"curve"`
	Outcomes    []string  `json:"outcomes"`
	Outcome     int       `json:"outcome"`
	Reserves    []string  `json:"reserves"`
	Deposits    []string  `json:"deposits"`
	ShareSupply []string  `json:"share_supply"`
	TotalVolume string    `json:"total_volume"`
	ExportedAt  time.Time `json:"exported_at"`
}

type exportPosition struct {
	Kind    string   `json:"kind"` // "position"
	Account string   `json:"account"`
	Shares  []string `json:"shares"`
	Claimed bool     `json:"claimed"`
}

type exportTrade struct {
	Kind      string    `json:"kind"` // "trade"
	ID        string    `json:"id"`
	Account   string    `json:"account"`
	Outcome   int       `json:"outcome"`
	Side      string    `json:"side"`
	Amount    string    `json:"amount"`
	Shares    string    `json:"shares"`
	CreatedAt time.Time `json:"created_at"`
}

// Export uploads the market record to archive/markets/{id}.jsonl and returns
// that path.
func (e *Exporter) Export(ctx context.Context, m domain.Market, p domain.Pool, positions []domain.Position, trades []domain.Trade) (string, error) {
	now := time.Now().UTC()

	lines := make([]any, 0, 1+len(positions)+len(trades))
	lines = append(lines, exportHeader{
		Kind:        "market",
		MarketID:    m.ID,
		Description: m.Description,
		Curve:       string(m.Curve),
		Outcomes:    m.Outcomes,
		Outcome:     m.Outcome,
		Reserves:    decimalStrings(p.Reserves),
		Deposits:    decimalStrings(p.Deposits),
		ShareSupply: decimalStrings(p.ShareSupply),
		TotalVolume: p.TotalVolume.String(),
		ExportedAt:  now,
	})
	for _, pos := range positions {
		lines = append(lines, exportPosition{
			Kind:    "position",
			Account: pos.Account,
			Shares:  decimalStrings(pos.Shares),
			Claimed: pos.Claimed,
		})
	}
	for _, t := range trades {
		lines = append(lines, exportTrade{
			Kind:      "trade",
			ID:        t.ID,
			Account:   t.Account,
			Outcome:   t.Outcome,
			Side:      string(t.Kind),
			Amount:    t.Amount.String(),
			Shares:    t.Shares.String(),
			CreatedAt: t.CreatedAt,
		})
	}

	buf, err := marshalJSONL(lines)
	if err != nil {
		return "", fmt.Errorf("s3blob: export market %s: %w", m.ID, err)
	}

	path := exportPath(m.ID)
	if err := e.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: export market %s: %w", m.ID, err)
	}

	if err := e.audit.Log(ctx, "archive.export", map[string]any{
		"market_id": m.ID,
		"path":      path,
		"positions": len(positions),
		"trades":    len(trades),
	}); err != nil {
		return path, fmt.Errorf("s3blob: export market %s audit log: %w", m.ID, err)
	}

	return path, nil
}

func exportPath(marketID string) string {
	return fmt.Sprintf("archive/markets/%s.jsonl", marketID)
}

func decimalStrings(vs []*big.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.ArchiveExporter = (*Exporter)(nil)
