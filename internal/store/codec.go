package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/orogiadon/ltm-system-for-llm/internal/record"
	"github.com/vmihailenco/msgpack/v5"
)

// row is the on-disk envelope for a [record.Memory]. Tag/keyword/relation
// lists are stored as UTF-8 JSON arrays and the embedding as a packed
// little-endian float32 blob; the envelope itself is msgpack-encoded.
type row struct {
	ID      string `msgpack:"id"`
	Created int64  `msgpack:"created"` // unix nanoseconds

	MemoryDays             float64 `msgpack:"memory_days"`
	RecalledSinceLastBatch bool    `msgpack:"recalled_since_last_batch"`
	RecallCount            int     `msgpack:"recall_count"`

	EmotionalIntensity int    `msgpack:"emotional_intensity"`
	EmotionalValence   string `msgpack:"emotional_valence"`
	EmotionalArousal   int    `msgpack:"emotional_arousal"`
	EmotionalTagsJSON  string `msgpack:"emotional_tags_json"`

	DecayCoefficient float64 `msgpack:"decay_coefficient"`
	Category         string  `msgpack:"category"`
	KeywordsJSON     string  `msgpack:"keywords_json"`

	CurrentLevel int    `msgpack:"current_level"`
	Trigger      string `msgpack:"trigger"`
	Content      string `msgpack:"content"`

	Embedding []byte `msgpack:"embedding,omitempty"` // packed little-endian float32

	RelationsJSON string `msgpack:"relations_json"`

	RetentionScore float64 `msgpack:"retention_score"`

	ArchivedAt int64 `msgpack:"archived_at,omitempty"` // unix nanoseconds; 0 = absent

	Protected bool `msgpack:"protected"`

	RevivalRequested   bool  `msgpack:"revival_requested"`
	RevivalRequestedAt int64 `msgpack:"revival_requested_at,omitempty"`
}

// EncodeEmbedding packs a float32 vector into little-endian IEEE-754 bytes.
func EncodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeEmbedding unpacks a little-endian IEEE-754 blob into a float32
// vector. Returns an error if the blob length is not a multiple of 4.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("store: embedding blob length %d not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func toRow(m *record.Memory) (row, error) {
	tagsJSON, err := json.Marshal(m.EmotionalTags)
	if err != nil {
		return row{}, fmt.Errorf("store: encode emotional_tags: %w", err)
	}
	kwJSON, err := json.Marshal(m.Keywords)
	if err != nil {
		return row{}, fmt.Errorf("store: encode keywords: %w", err)
	}
	relJSON, err := json.Marshal(m.Relations)
	if err != nil {
		return row{}, fmt.Errorf("store: encode relations: %w", err)
	}

	r := row{
		ID:                     m.ID,
		Created:                m.Created.UnixNano(),
		MemoryDays:             m.MemoryDays,
		RecalledSinceLastBatch: m.RecalledSinceLastBatch,
		RecallCount:            m.RecallCount,
		EmotionalIntensity:     m.EmotionalIntensity,
		EmotionalValence:       string(m.EmotionalValence),
		EmotionalArousal:       m.EmotionalArousal,
		EmotionalTagsJSON:      string(tagsJSON),
		DecayCoefficient:       m.DecayCoefficient,
		Category:               string(m.Category),
		KeywordsJSON:           string(kwJSON),
		CurrentLevel:           m.CurrentLevel,
		Trigger:                m.Trigger,
		Content:                m.Content,
		RelationsJSON:          string(relJSON),
		RetentionScore:         m.RetentionScore,
		Protected:              m.Protected,
		RevivalRequested:       m.RevivalRequested,
	}
	if m.Embedding != nil {
		r.Embedding = EncodeEmbedding(m.Embedding)
	}
	if m.ArchivedAt != nil {
		r.ArchivedAt = m.ArchivedAt.UnixNano()
	}
	if m.RevivalRequestedAt != nil {
		r.RevivalRequestedAt = m.RevivalRequestedAt.UnixNano()
	}
	return r, nil
}

func fromRow(r row) (*record.Memory, error) {
	var tags, keywords, relations []string
	if r.EmotionalTagsJSON != "" {
		if err := json.Unmarshal([]byte(r.EmotionalTagsJSON), &tags); err != nil {
			return nil, fmt.Errorf("store: decode emotional_tags: %w", err)
		}
	}
	if r.KeywordsJSON != "" {
		if err := json.Unmarshal([]byte(r.KeywordsJSON), &keywords); err != nil {
			return nil, fmt.Errorf("store: decode keywords: %w", err)
		}
	}
	if r.RelationsJSON != "" {
		if err := json.Unmarshal([]byte(r.RelationsJSON), &relations); err != nil {
			return nil, fmt.Errorf("store: decode relations: %w", err)
		}
	}

	m := &record.Memory{
		ID:                     r.ID,
		Created:                time.Unix(0, r.Created).UTC(),
		MemoryDays:             r.MemoryDays,
		RecalledSinceLastBatch: r.RecalledSinceLastBatch,
		RecallCount:            r.RecallCount,
		EmotionalIntensity:     r.EmotionalIntensity,
		EmotionalValence:       record.ParseValence(r.EmotionalValence),
		EmotionalArousal:       r.EmotionalArousal,
		EmotionalTags:          tags,
		DecayCoefficient:       r.DecayCoefficient,
		Category:               record.ParseCategory(r.Category),
		Keywords:               keywords,
		CurrentLevel:           r.CurrentLevel,
		Trigger:                r.Trigger,
		Content:                r.Content,
		Relations:              relations,
		RetentionScore:         r.RetentionScore,
		Protected:              r.Protected,
		RevivalRequested:       r.RevivalRequested,
	}
	if len(r.Embedding) > 0 {
		v, err := DecodeEmbedding(r.Embedding)
		if err != nil {
			return nil, err
		}
		m.Embedding = v
	}
	if r.ArchivedAt != 0 {
		t := time.Unix(0, r.ArchivedAt).UTC()
		m.ArchivedAt = &t
	}
	if r.RevivalRequestedAt != 0 {
		t := time.Unix(0, r.RevivalRequestedAt).UTC()
		m.RevivalRequestedAt = &t
	}
	return m, nil
}

func marshalRecord(m *record.Memory) ([]byte, error) {
	r, err := toRow(m)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(&r)
}

func unmarshalRecord(data []byte) (*record.Memory, error) {
	var r row
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("store: decode record: %w", err)
	}
	return fromRow(r)
}
