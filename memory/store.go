// Package memory stores free-text annotations per room and recalls the most
// relevant ones for prompt building.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"vdm-lab/domain"
)

// Store is a bluge-backed annotation index. Annotations are keyed by room and
// ranked by full-text relevance at recall time.
type Store struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func Open(path string, log *slog.Logger) (*Store, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("opening memory index: %w", err)
	}
	return &Store{writer: writer, log: log}, nil
}

// Remember indexes one annotation tied to a room id.
func (s *Store) Remember(_ context.Context, roomID domain.RoomID, text string) error {
	doc := bluge.NewDocument(uuid.NewString()).
		AddField(bluge.NewKeywordField("room_id", string(roomID)).StoreValue()).
		AddField(bluge.NewTextField("text", text).StoreValue()).
		AddField(bluge.NewDateTimeField("at", time.Now().UTC()))
	if err := s.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("indexing annotation: %w", err)
	}
	s.log.Debug("Stored memory annotation", "room_id", roomID)
	return nil
}

// Recall returns up to limit annotations of the room, the ones matching the
// query best first. An empty query returns any annotations of the room.
func (s *Store) Recall(ctx context.Context, roomID domain.RoomID, query string, limit int) ([]string, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening memory reader: %w", err)
	}
	defer reader.Close()

	boolean := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(string(roomID)).SetField("room_id"))
	if query != "" {
		boolean.AddShould(bluge.NewMatchQuery(query).SetField("text"))
	}

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, boolean))
	if err != nil {
		return nil, fmt.Errorf("searching memory index: %w", err)
	}

	var memories []string
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("iterating memory matches: %w", err)
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "text" {
				memories = append(memories, string(value))
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return memories, nil
}

func (s *Store) Close() error {
	return s.writer.Close()
}
