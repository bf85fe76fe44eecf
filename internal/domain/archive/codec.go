package archive

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/tabsession/internal/domain/session"
)

// Archive layout: magic, one version byte, payload.
const (
	Magic = "TABS"

	// VersionJSON is the original uncompressed JSON payload with per-tab
	// session data nested under "sessionData". Read-only.
	VersionJSON byte = 1
	// VersionZstd is a zstd-compressed JSON payload with flat tab entries.
	VersionZstd byte = 2

	CurrentVersion = VersionZstd

	headerLen      = len(Magic) + 1
	maxPayloadSize = 64 << 20
)

// ErrCorruptArchive is returned when an archive cannot be decoded.
// Callers treat it as "no tabs to restore".
var ErrCorruptArchive = errors.New("corrupt archive")

var (
	encoder, _ = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	decoder, _ = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxPayloadSize),
	)
)

type document struct {
	Tabs []tab `json:"tabs"`
}

type tab struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Private     bool     `json:"isPrivate,omitempty"`
	Selected    bool     `json:"isSelected,omitempty"`
	URLs        []string `json:"urls"`
	CurrentPage int      `json:"currentPage"`
	LastUsed    int64    `json:"lastUsedTime"`
	CreatedAt   int64    `json:"createdAt"`
	GroupID     string   `json:"groupId,omitempty"`
}

type documentV1 struct {
	Tabs []tabV1 `json:"tabs"`
}

type tabV1 struct {
	UUID        string         `json:"uuid"`
	Title       string         `json:"title"`
	Private     bool           `json:"isPrivate"`
	Selected    bool           `json:"isSelected"`
	URL         string         `json:"url"`
	SessionData *sessionDataV1 `json:"sessionData"`
	CreatedAt   int64          `json:"createdAt"`
	GroupID     string         `json:"tabGroupId"`
}

type sessionDataV1 struct {
	CurrentPage  int      `json:"currentPage"`
	URLs         []string `json:"urls"`
	LastUsedTime int64    `json:"lastUsedTime"`
}

// Encode serializes records in order. Output is deterministic for a given
// input. Timestamps are stored as UTC milliseconds, so Decode(Encode(r))
// equals r only for records whose times are already normalized with
// session.NormalizeTime, as session.NewRecord produces them.
func Encode(records []session.Record) ([]byte, error) {
	doc := document{Tabs: make([]tab, 0, len(records))}
	for _, r := range records {
		doc.Tabs = append(doc.Tabs, tab{
			ID:          r.ID,
			Title:       r.Title,
			Private:     r.IsPrivate,
			Selected:    r.IsSelected,
			URLs:        r.URLs,
			CurrentPage: r.CurrentIndex,
			LastUsed:    r.LastUsed.UnixMilli(),
			CreatedAt:   r.CreatedAt.UnixMilli(),
			GroupID:     r.GroupID,
		})
	}

	payload, err := sonic.ConfigStd.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal archive: %w", err)
	}

	out := make([]byte, 0, headerLen+len(payload)/2)
	out = append(out, Magic...)
	out = append(out, CurrentVersion)
	return encoder.EncodeAll(payload, out), nil
}

// Decode parses an archive produced by Encode, upgrading older versions.
// Entries that violate record invariants are dropped.
func Decode(data []byte) ([]session.Record, error) {
	if len(data) < headerLen || !bytes.Equal(data[:len(Magic)], []byte(Magic)) {
		return nil, fmt.Errorf("%w: missing header", ErrCorruptArchive)
	}

	version := data[len(Magic)]
	payload := data[headerLen:]

	switch version {
	case VersionZstd:
		return decodeZstd(payload)
	case VersionJSON:
		return decodeJSON(payload)
	default:
		return nil, fmt.Errorf("%w: unknown version %d", ErrCorruptArchive, version)
	}
}

// Version reports the format version of an encoded archive.
func Version(data []byte) (byte, error) {
	if len(data) < headerLen || !bytes.Equal(data[:len(Magic)], []byte(Magic)) {
		return 0, fmt.Errorf("%w: missing header", ErrCorruptArchive)
	}
	return data[len(Magic)], nil
}

func decodeZstd(payload []byte) ([]session.Record, error) {
	raw, err := decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrCorruptArchive, err)
	}

	var doc document
	if err := sonic.ConfigStd.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	var records []session.Record
	for _, t := range doc.Tabs {
		record := session.Record{
			ID:           t.ID,
			Title:        t.Title,
			IsPrivate:    t.Private,
			IsSelected:   t.Selected,
			URLs:         t.URLs,
			CurrentIndex: session.ClampIndex(t.CurrentPage, len(t.URLs)),
			LastUsed:     fromMillis(t.LastUsed),
			CreatedAt:    fromMillis(t.CreatedAt),
			GroupID:      t.GroupID,
		}
		if record.ID == "" || len(record.URLs) == 0 {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeJSON(payload []byte) ([]session.Record, error) {
	var doc documentV1
	if err := sonic.ConfigStd.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	var records []session.Record
	for _, t := range doc.Tabs {
		record := session.Record{
			ID:         t.UUID,
			Title:      t.Title,
			IsPrivate:  t.Private,
			IsSelected: t.Selected,
			CreatedAt:  fromMillis(t.CreatedAt),
		}
		if t.SessionData != nil && len(t.SessionData.URLs) > 0 {
			record.URLs = t.SessionData.URLs
			record.CurrentIndex = session.ClampIndex(t.SessionData.CurrentPage, len(record.URLs))
			record.LastUsed = fromMillis(t.SessionData.LastUsedTime)
		} else if t.URL != "" {
			record.URLs = []string{t.URL}
		}
		record.GroupID = t.GroupID
		if t.CreatedAt == 0 {
			record.CreatedAt = record.LastUsed
		}
		if record.ID == "" || len(record.URLs) == 0 {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
