package store

import (
	"encoding/json"
	"time"

	"github.com/echocog/spiralmem/internal/model"
)

// nodeRecord is the wire shape of mem:<id>: model.MemoryNode plus its
// associations, which the in-memory type deliberately excludes from its
// own json tags (it uses map[string]struct{} for O(1) membership).
type nodeRecord struct {
	ID             string         `json:"id"`
	Content        []byte         `json:"content"`
	Type           model.MemoryType  `json:"type"`
	Depth          model.MemoryDepth `json:"depth"`
	Sigil          model.Sigil    `json:"sigil"`
	SpiralID       string         `json:"spiral_id"`
	Position       model.Position `json:"position"`
	Associations   []string       `json:"associations"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	AccessCount    int64          `json:"access_count"`
	MemoryStrength float64        `json:"memory_strength"`
	SkipCount      int            `json:"skip_count"`
}

func encodeNode(n *model.MemoryNode) ([]byte, error) {
	rec := nodeRecord{
		ID: n.ID, Content: n.Content, Type: n.Type, Depth: n.Depth,
		Sigil: n.Sigil, SpiralID: n.SpiralID, Position: n.Position,
		Associations: n.AssociationsJSON(), CreatedAt: n.CreatedAt,
		LastAccessedAt: n.LastAccessedAt, AccessCount: n.AccessCount,
		MemoryStrength: n.MemoryStrength, SkipCount: n.SkipCount,
	}
	return json.Marshal(rec)
}

func decodeNode(data []byte) (*model.MemoryNode, error) {
	var rec nodeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	n := &model.MemoryNode{
		ID: rec.ID, Content: rec.Content, Type: rec.Type, Depth: rec.Depth,
		Sigil: rec.Sigil, SpiralID: rec.SpiralID, Position: rec.Position,
		Associations: make(map[string]struct{}, len(rec.Associations)),
		CreatedAt: rec.CreatedAt, LastAccessedAt: rec.LastAccessedAt,
		AccessCount: rec.AccessCount, MemoryStrength: rec.MemoryStrength,
		SkipCount: rec.SkipCount,
	}
	for _, a := range rec.Associations {
		n.Associations[a] = struct{}{}
	}
	return n, nil
}

// spiralRecord is the wire shape of spiral:<id> — the node-id set is
// deliberately absent; it is reconstructed from mem:* records on reload
// (spec.md §6).
type spiralRecord struct {
	ID            string           `json:"id"`
	Type          model.SpiralType `json:"type"`
	Template      model.Template   `json:"template"`
	NodeCount     int              `json:"node_count"`
	AverageDepth  float64          `json:"average_depth"`
	CurrentRadius float64          `json:"current_radius"`
	TotalTurns    int              `json:"total_turns"`
	CreatedAt     time.Time        `json:"created_at"`
	LastUpdatedAt time.Time        `json:"last_updated_at"`
}

func encodeSpiral(s *model.Spiral) ([]byte, error) {
	rec := spiralRecord{
		ID: s.ID, Type: s.Type, Template: s.Template, NodeCount: s.NodeCount,
		AverageDepth: s.AverageDepth, CurrentRadius: s.CurrentRadius,
		TotalTurns: s.TotalTurns, CreatedAt: s.CreatedAt, LastUpdatedAt: s.LastUpdatedAt,
	}
	return json.Marshal(rec)
}

func decodeSpiral(data []byte) (*model.Spiral, error) {
	var rec spiralRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &model.Spiral{
		ID: rec.ID, Type: rec.Type, Template: rec.Template, NodeCount: rec.NodeCount,
		AverageDepth: rec.AverageDepth, CurrentRadius: rec.CurrentRadius,
		TotalTurns: rec.TotalTurns, CreatedAt: rec.CreatedAt, LastUpdatedAt: rec.LastUpdatedAt,
		Nodes: make(map[string]struct{}),
	}, nil
}

// sigilRecord is the wire shape of sigil:<signature> (spec.md §6).
type sigilRecord struct {
	Signature string `json:"signature"`
	MemoryID  string `json:"memory_id"`
}

func encodeSigilRecord(signature, memoryID string) ([]byte, error) {
	return json.Marshal(sigilRecord{Signature: signature, MemoryID: memoryID})
}

func decodeSigilRecord(data []byte) (sigilRecord, error) {
	var rec sigilRecord
	err := json.Unmarshal(data, &rec)
	return rec, err
}
