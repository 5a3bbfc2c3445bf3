// Package persistence holds the SQL backed persisters of the record store.
package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikey/inbox-agent/internal/core"
)

// row is the column layout shared by the SQL persisters
type row struct {
	id             string
	category       string
	sender         string
	subject        string
	date           string
	bodyPreview    string
	summary        string
	hasAttachments bool
	fields         sql.NullString
	embedding      string
}

func encode(r *core.Record) (*row, error) {
	out := &row{
		id:             r.ID,
		category:       string(r.Category),
		sender:         r.Sender,
		subject:        r.Subject,
		date:           r.Date.UTC().Format(time.RFC3339),
		bodyPreview:    r.BodyPreview,
		summary:        r.Summary,
		hasAttachments: r.HasAttachments,
	}
	if r.Fields != nil {
		b, err := json.Marshal(r.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode fields: %w", err)
		}
		out.fields = sql.NullString{String: string(b), Valid: true}
	}
	b, err := json.Marshal(r.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding: %w", err)
	}
	out.embedding = string(b)
	return out, nil
}

func (r *row) args() []any {
	return []any{r.id, r.category, r.sender, r.subject, r.date, r.bodyPreview,
		r.summary, r.hasAttachments, r.fields, r.embedding}
}

func (r *row) dest() []any {
	return []any{&r.id, &r.category, &r.sender, &r.subject, &r.date, &r.bodyPreview,
		&r.summary, &r.hasAttachments, &r.fields, &r.embedding}
}

func (r *row) decode() (*core.Record, error) {
	date, err := time.Parse(time.RFC3339, r.date)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date of %s: %w", r.id, err)
	}
	rec := &core.Record{
		ID:             r.id,
		Category:       core.Category(r.category),
		Sender:         r.sender,
		Subject:        r.subject,
		Date:           date,
		BodyPreview:    r.bodyPreview,
		Summary:        r.summary,
		HasAttachments: r.hasAttachments,
	}
	if r.fields.Valid && r.fields.String != "" {
		var f core.StructuredFields
		if err := json.Unmarshal([]byte(r.fields.String), &f); err != nil {
			return nil, fmt.Errorf("failed to decode fields of %s: %w", r.id, err)
		}
		rec.Fields = &f
	}
	if r.embedding != "" {
		if err := json.Unmarshal([]byte(r.embedding), &rec.Embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding of %s: %w", r.id, err)
		}
	}
	return rec, nil
}

const selectColumns = `id, category, sender, subject, date, body_preview, summary, has_attachments, fields, embedding`

func loadAll(rows *sql.Rows) ([]*core.Record, error) {
	defer rows.Close()
	var out []*core.Record
	for rows.Next() {
		var r row
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return out, nil
}
