// Package record holds the decoded record type and the normalizer that
// injects configured default fields before a record is batched.
package record

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Field names injected by the Normalizer.
const (
	FieldDataSource      = "DATA_SOURCE"
	FieldEntityType      = "ENTITY_TYPE"
	FieldRecordID        = "RECORD_ID"
	FieldDirectiveName   = "DIRECTIVE_NAME"
	FieldDirectiveAction = "DIRECTIVE_ACTION"
)

// recordIDNamespace seeds name-based RECORD_ID values.
var recordIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:stream-producer:record"))

// Record is one decoded input item.
type Record map[string]any

// Marshal returns the wire form of the record.
func (r Record) Marshal() ([]byte, error) {
	b, err := json.Marshal(map[string]any(r))
	if err != nil {
		return nil, fmt.Errorf("record: marshal: %w", err)
	}
	return b, nil
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type NormalizerConfig struct {
	DataSource      string `koanf:"default_data_source"`
	EntityType      string `koanf:"default_entity_type"`
	RecordIDField   string `koanf:"record_identifier"`
	RecordIDHash    bool   `koanf:"record_id_hash"`
	DirectiveName   string `koanf:"directive_name"`
	DirectiveAction string `koanf:"directive_action"`
}

// Normalizer injects configured defaults into records. It never overwrites a
// field that is already present, so applying it twice is the same as once.
type Normalizer struct {
	cfg NormalizerConfig
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Enabled reports whether Apply can change anything.
func (n *Normalizer) Enabled() bool {
	c := n.cfg
	return c.DataSource != "" || c.EntityType != "" || c.RecordIDField != "" ||
		c.RecordIDHash || c.DirectiveName != "" || c.DirectiveAction != ""
}

// Apply returns rec with defaults injected. rec itself is not modified.
func (n *Normalizer) Apply(rec Record) Record {
	if !n.Enabled() {
		return rec
	}
	out := rec.Clone()
	if _, ok := out[FieldRecordID]; !ok {
		if id, ok := n.recordID(rec); ok {
			out[FieldRecordID] = id
		}
	}
	setDefault(out, FieldDataSource, n.cfg.DataSource)
	setDefault(out, FieldEntityType, n.cfg.EntityType)
	setDefault(out, FieldDirectiveName, n.cfg.DirectiveName)
	setDefault(out, FieldDirectiveAction, n.cfg.DirectiveAction)
	return out
}

// recordID looks at the unmodified input so the hash does not depend on
// which other defaults were injected.
func (n *Normalizer) recordID(rec Record) (any, bool) {
	if f := n.cfg.RecordIDField; f != "" {
		if v, ok := rec[f]; ok && v != nil {
			return v, true
		}
	}
	if !n.cfg.RecordIDHash {
		return nil, false
	}
	canonical, err := json.Marshal(map[string]any(rec))
	if err != nil {
		return nil, false
	}
	return uuid.NewSHA1(recordIDNamespace, canonical).String(), true
}

func setDefault(r Record, field, value string) {
	if value == "" {
		return
	}
	if _, ok := r[field]; ok {
		return
	}
	r[field] = value
}
