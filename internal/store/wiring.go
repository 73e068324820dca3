package store

import (
	"context"

	"github.com/echocog/spiralmem/internal/bus"
	"github.com/echocog/spiralmem/internal/model"
	"github.com/echocog/spiralmem/internal/storeerr"
)

// Wire subscribes the store to its three request topics (spec.md §4.G),
// correlating each response by request_id and enveloping the result as
// {ok, ...} or {ok:false, error_kind, message} per spec.md §7. The core
// StoreMemory/RetrieveMemory/SearchMemories methods emit no response
// topic themselves; these subscribers are the only source of
// memory_stored, memory_retrieved and memories_searched.
func (s *Store) Wire(b *bus.Bus) {
	b.Subscribe(bus.TopicStoreMemoryRequest, func(e bus.Event) {
		requestID := e.RequestID
		content, _ := e.Payload["content"].(string)
		memType, _ := e.Payload["type"].(string)
		depth, _ := e.Payload["depth"].(string)
		var associations []string
		if raw, ok := e.Payload["associations"].([]string); ok {
			associations = raw
		}

		node, err := s.StoreMemory(context.Background(), []byte(content), model.MemoryType(memType), model.MemoryDepth(depth), associations)
		if err != nil {
			b.Emit(bus.TopicMemoryStored, requestID, errorPayload(err))
			return
		}
		b.Emit(bus.TopicMemoryStored, requestID, map[string]any{
			"ok": true, "id": node.ID, "signature": node.Sigil.Signature,
		})
	})

	b.Subscribe(bus.TopicRetrieveMemoryRequest, func(e bus.Event) {
		requestID := e.RequestID
		id, _ := e.Payload["memory_id"].(string)

		node, err := s.RetrieveMemory(context.Background(), id)
		if err != nil {
			b.Emit(bus.TopicMemoryRetrieved, requestID, errorPayload(err))
			return
		}
		if node == nil {
			b.Emit(bus.TopicMemoryRetrieved, requestID, map[string]any{"ok": true, "found": false})
			return
		}
		b.Emit(bus.TopicMemoryRetrieved, requestID, map[string]any{
			"ok": true, "found": true, "id": node.ID, "access_count": node.AccessCount,
		})
	})

	b.Subscribe(bus.TopicSearchMemoriesRequest, func(e bus.Event) {
		requestID := e.RequestID
		query, _ := e.Payload["query"].(string)
		limit := 10
		if l, ok := e.Payload["limit"].(int); ok {
			limit = l
		}
		var memType *model.MemoryType
		if t, ok := e.Payload["type"].(string); ok && t != "" {
			mt := model.MemoryType(t)
			memType = &mt
		}
		var depth *model.MemoryDepth
		if d, ok := e.Payload["depth"].(string); ok && d != "" {
			md := model.MemoryDepth(d)
			depth = &md
		}

		results, err := s.SearchMemories(context.Background(), query, memType, depth, limit)
		if err != nil {
			b.Emit(bus.TopicMemoriesSearched, requestID, errorPayload(err))
			return
		}
		ids := make([]string, len(results))
		for i, n := range results {
			ids[i] = n.ID
		}
		b.Emit(bus.TopicMemoriesSearched, requestID, map[string]any{"ok": true, "ids": ids})
	})
}

func errorPayload(err error) map[string]any {
	kind := storeerr.InvariantViolation
	if se, ok := err.(*storeerr.Error); ok {
		kind = se.Kind
	}
	return map[string]any{"ok": false, "error_kind": string(kind), "message": err.Error()}
}
