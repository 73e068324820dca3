// Package store implements the Memory Store of spec.md §4.D: the
// exclusive owner of the node table, sigil registry, spiral table, GC
// heap and sigil LFU cache. It is the only component that ever mutates
// those structures; every other package reaches them through the
// narrow Hooks interfaces it exposes (internal/gc, internal/rebuild) or
// through its own request/response methods on the event bus.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/echocog/spiralmem/internal/bus"
	"github.com/echocog/spiralmem/internal/config"
	"github.com/echocog/spiralmem/internal/gc"
	"github.com/echocog/spiralmem/internal/model"
	"github.com/echocog/spiralmem/internal/sigil"
	"github.com/echocog/spiralmem/internal/spiral"
	"github.com/echocog/spiralmem/internal/storage"
	"github.com/echocog/spiralmem/internal/storeerr"
)

const maxSyncAssociations = 5

// pendingAssociation is an association add deferred to the next
// system_tick because the store request listed more than
// maxSyncAssociations associations (spec.md §4.D step 7).
type pendingAssociation struct {
	nodeID string
	target string
}

// Store is the single-writer owner described above. All mutating
// methods acquire mu for writing. Retrieval (RetrieveMemory,
// RetrieveBySigil) also takes the write lock, since it updates access
// statistics and the GC heap; search takes the shared lock.
type Store struct {
	mu sync.RWMutex

	adapter storage.Adapter
	bus     *bus.Bus
	clock   func() time.Time

	sigilCfg Config
	topology *spiral.Topology
	selector *spiral.Selector

	maxNodesPerSpiral int

	nodes         map[string]*model.MemoryNode
	spirals       map[string]*model.Spiral
	sigilRegistry map[string]string // signature -> node id
	cache         *lfuCache
	heap          *gc.Heap

	lastSpiralType model.SpiralType
	hasLastSpiral  bool

	pending []pendingAssociation
}

// Config bundles the subset of internal/config.Config the store needs,
// so tests can construct a Store without a full env-loaded Config.
type Config struct {
	SigilHashSlice     int
	SigilSides         int
	MaxSpirals         int
	MaxNodesPerSpiral  int
	HDWeightDistance   float64
	HDWeightLoad       float64
	HDWeightAge        float64
	SigilCacheCapacity int
}

// ConfigFrom adapts an internal/config.Config into a store Config.
func ConfigFrom(c *config.Config) Config {
	return Config{
		SigilHashSlice:     c.SigilHashSlice,
		SigilSides:         13,
		MaxSpirals:         c.MaxSpirals,
		MaxNodesPerSpiral:  c.MaxNodesPerSpiral,
		HDWeightDistance:   c.HDWeightDistance,
		HDWeightLoad:       c.HDWeightLoad,
		HDWeightAge:        c.HDWeightAge,
		SigilCacheCapacity: c.SigilCacheCapacity,
	}
}

// New constructs a Store over adapter, wired to b. clock defaults to
// time.Now; tests override it for deterministic age calculations.
func New(adapter storage.Adapter, b *bus.Bus, cfg Config, clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	topo := spiral.NewTopology()
	weights := spiral.Weights{Distance: cfg.HDWeightDistance, Load: cfg.HDWeightLoad, Age: cfg.HDWeightAge}
	return &Store{
		adapter:           adapter,
		bus:               b,
		clock:             clock,
		sigilCfg:          cfg,
		topology:          topo,
		selector:          spiral.NewSelector(topo, weights, cfg.MaxSpirals),
		maxNodesPerSpiral: cfg.MaxNodesPerSpiral,
		nodes:             make(map[string]*model.MemoryNode),
		spirals:           make(map[string]*model.Spiral),
		sigilRegistry:     make(map[string]string),
		cache:             newLFUCache(cfg.SigilCacheCapacity),
		heap:              gc.NewHeap(),
	}
}

// Heap exposes the GC heap for internal/gc.Scheduler to drive directly.
func (s *Store) Heap() *gc.Heap { return s.heap }

// Init establishes the backend connection and reloads caches from
// whatever durable state already exists (spec.md §4.D step 8's crash
// recovery: reload scans the spiral: and mem: prefixes and rewrites any
// sigil: entry missing for a loaded node).
func (s *Store) Init(ctx context.Context) error {
	if err := s.adapter.Init(ctx); err != nil {
		return err
	}
	return s.reload(ctx)
}

func (s *Store) reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spiralKeys, err := s.adapter.Keys(ctx, storage.PrefixSpiral)
	if err != nil {
		return err
	}
	for _, k := range spiralKeys {
		data, ok, err := s.adapter.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		sp, err := decodeSpiral(data)
		if err != nil {
			continue
		}
		s.spirals[sp.ID] = sp
	}

	nodeKeys, err := s.adapter.Keys(ctx, storage.PrefixMem)
	if err != nil {
		return err
	}
	for _, k := range nodeKeys {
		data, ok, err := s.adapter.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		n, err := decodeNode(data)
		if err != nil {
			continue
		}
		s.nodes[n.ID] = n
		s.sigilRegistry[n.Sigil.Signature] = n.ID
		if sp, ok := s.spirals[n.SpiralID]; ok {
			sp.Nodes[n.ID] = struct{}{}
		}
		s.heap.Push(n.ID, n.LastAccessedAt.UnixNano())
	}

	// Missing sigil entries are rebuilt from node sigils (spec.md §4.D
	// step 8); spiral_count mismatches are left for the rebuilder (§4.F).
	for signature, id := range s.sigilRegistry {
		key := storage.PrefixSigil + signature
		if _, ok, _ := s.adapter.Get(ctx, key); !ok {
			rec, _ := encodeSigilRecord(signature, id)
			_ = s.adapter.Set(ctx, key, rec)
		}
	}

	return nil
}

// StoreMemory implements spec.md §4.D's store_memory operation.
func (s *Store) StoreMemory(ctx context.Context, content []byte, memType model.MemoryType, depth model.MemoryDepth, associations []string) (*model.MemoryNode, error) {
	if !model.ValidMemoryType(memType) || !model.ValidMemoryDepth(depth) {
		return nil, storeerr.New(storeerr.InvalidInput, "unknown type or depth")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()

	sg := sigil.Encode(sigil.Config{HashSlice: s.sigilCfg.SigilHashSlice, Sides: s.sigilCfg.SigilSides}, content, memType, depth)

	sp, isNew, err := s.selectSpiral(memType, depth, now)
	if err != nil {
		return nil, err
	}

	pos := spiral.Position(sp.Type, sp.NodeCount)

	node := &model.MemoryNode{
		ID:             uuid.NewString(),
		Content:        append([]byte(nil), content...),
		Type:           memType,
		Depth:          depth,
		Sigil:          sg,
		SpiralID:       sp.ID,
		Position:       pos,
		Associations:   make(map[string]struct{}),
		CreatedAt:      now,
		LastAccessedAt: now,
		MemoryStrength: 1.0,
	}

	// Stage the spiral's counter updates on a detached copy. Nothing
	// under s.spirals/s.nodes/s.sigilRegistry/s.heap is mutated until
	// every backend write below has succeeded: spec.md §4.D requires a
	// BackendUnavailable/BackendTimeout failure to propagate without
	// leaving any in-memory cache mutated.
	staged := *sp
	staged.NodeCount = sp.NodeCount + 1
	staged.CurrentRadius = pos.Radius
	staged.TotalTurns = pos.Turn
	staged.LastUpdatedAt = now

	if _, err := s.adapter.AtomicIncr(ctx, storage.PrefixSpiralCount+sp.ID, 1); err != nil {
		return nil, err
	}
	if err := s.persistNode(ctx, node); err != nil {
		return nil, err
	}
	if err := s.persistSpiral(ctx, &staged); err != nil {
		return nil, err
	}
	if err := s.persistSigil(ctx, sg.Signature, node.ID); err != nil {
		return nil, err
	}

	// All backend writes succeeded: commit the staged mutations.
	if isNew {
		s.spirals[sp.ID] = sp
	}
	sp.Nodes[node.ID] = struct{}{}
	sp.NodeCount = staged.NodeCount
	sp.CurrentRadius = staged.CurrentRadius
	sp.TotalTurns = staged.TotalTurns
	sp.LastUpdatedAt = staged.LastUpdatedAt

	if existing, collide := s.sigilRegistry[sg.Signature]; collide && existing != node.ID {
		s.bus.Emit(bus.TopicSigilCollision, "", map[string]any{"signature": sg.Signature})
		// The cache may hold the displaced node under this signature from
		// an earlier retrieve_by_sigil; drop it so the next lookup falls
		// through to s.sigilRegistry and picks up the new node instead of
		// serving the stale cached one (spec.md §8 scenario 3).
		s.cache.Remove(sg.Signature)
	}
	s.sigilRegistry[sg.Signature] = node.ID

	s.nodes[node.ID] = node
	s.heap.Push(node.ID, node.LastAccessedAt.UnixNano())

	if len(associations) > maxSyncAssociations {
		for _, target := range associations {
			s.pending = append(s.pending, pendingAssociation{nodeID: node.ID, target: target})
		}
	} else {
		for _, target := range associations {
			s.addAssociationLocked(node.ID, target)
		}
	}

	s.lastSpiralType = sp.Type
	s.hasLastSpiral = true

	snapshot := node.Clone()
	// memory_stored is emitted by Wire's store_memory_request subscriber,
	// which carries the request_id and the {ok, ...} envelope; a direct
	// Go-level StoreMemory call (e.g. from tests) is not itself a bus
	// request and so does not duplicate that event.
	return snapshot, nil
}

func (s *Store) selectSpiral(memType model.MemoryType, depth model.MemoryDepth, now time.Time) (*model.Spiral, bool, error) {
	candidates := make([]spiral.Candidate, 0, len(s.spirals))
	for _, sp := range s.spirals {
		candidates = append(candidates, spiral.Candidate{
			ID: sp.ID, Type: sp.Type, NodeCount: sp.NodeCount,
			Capacity: sp.Template.Capacity, CreatedAt: sp.CreatedAt,
		})
	}

	decision := s.selector.Select(memType, depth, s.lastSpiralType, s.hasLastSpiral, candidates, now)

	// fallback runs once max_spirals forbids creating a spiral: it picks
	// the least-filled existing spiral below maxNodesPerSpiral, and
	// rejects only when every existing spiral is full.
	fallback := func() (*model.Spiral, bool, error) {
		var best *model.Spiral
		for _, sp := range s.spirals {
			if (s.maxNodesPerSpiral == 0 || sp.NodeCount < s.maxNodesPerSpiral) && (best == nil || sp.NodeCount < best.NodeCount) {
				best = sp
			}
		}
		if best == nil {
			return nil, false, storeerr.New(storeerr.CapacityExceeded, "spiral creation limit and all existing spirals are at capacity")
		}
		return best, false, nil
	}

	if decision.UseExisting != "" {
		sp := s.spirals[decision.UseExisting]
		if s.maxNodesPerSpiral == 0 || sp.NodeCount < s.maxNodesPerSpiral {
			return sp, false, nil
		}
		// The selected spiral is full: fall through to spiral creation,
		// rejecting only if that is also exhausted (spec.md §4.D).
		if len(s.spirals) >= s.selector.MaxSpirals() {
			return fallback()
		}
		return s.createSpiral(memType, depth, now), true, nil
	}

	if decision.AtCapacity {
		return fallback()
	}

	return s.createSpiral(memType, depth, now), true, nil
}

// createSpiral builds a new spiral but does not register it in s.spirals:
// the caller commits it only after the backend writes for the node that
// triggered its creation have succeeded (spec.md §4.D).
func (s *Store) createSpiral(memType model.MemoryType, depth model.MemoryDepth, now time.Time) *model.Spiral {
	t := model.SpiralTypeFor(memType, depth)
	return &model.Spiral{
		ID:            uuid.NewString(),
		Type:          t,
		Template:      model.TemplateFor(t),
		CreatedAt:     now,
		LastUpdatedAt: now,
		Nodes:         make(map[string]struct{}),
	}
}

// addAssociationLocked adds the symmetric edge node<->target (I3). A
// target that does not exist is a silent no-op (spec.md §4.D).
func (s *Store) addAssociationLocked(nodeID, target string) {
	n, ok := s.nodes[nodeID]
	if !ok {
		return
	}
	t, ok := s.nodes[target]
	if !ok || target == nodeID {
		return
	}
	n.Associations[target] = struct{}{}
	t.Associations[nodeID] = struct{}{}
}

// FlushPendingAssociations applies deferred association adds (spec.md
// §4.D step 7). Wired to run once per system_tick, before GC.
func (s *Store) FlushPendingAssociations(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pending
	s.pending = nil
	for _, p := range pending {
		s.addAssociationLocked(p.nodeID, p.target)
	}
}

// RetrieveMemory implements spec.md §4.D's retrieve_memory read path.
func (s *Store) RetrieveMemory(ctx context.Context, id string) (*model.MemoryNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, nil
	}
	now := s.clock()
	if now.After(n.LastAccessedAt) {
		n.LastAccessedAt = now
	}
	n.AccessCount++
	s.heap.Push(n.ID, n.LastAccessedAt.UnixNano())

	snapshot := n.Clone()
	return snapshot, nil
}

// RetrieveBySigil implements spec.md §4.D's retrieve_by_sigil operation.
func (s *Store) RetrieveBySigil(ctx context.Context, signature string) (*model.MemoryNode, error) {
	s.mu.Lock()
	if id, ok := s.cache.Get(signature); ok {
		s.mu.Unlock()
		return s.RetrieveMemory(ctx, id)
	}
	id, ok := s.sigilRegistry[signature]
	if !ok {
		s.mu.Unlock()
		return nil, nil
	}
	s.cache.Put(signature, id)
	s.mu.Unlock()
	return s.RetrieveMemory(ctx, id)
}

// SearchMemories implements spec.md §4.D's search_memories operation.
func (s *Store) SearchMemories(ctx context.Context, query string, memType *model.MemoryType, depth *model.MemoryDepth, limit int) ([]*model.MemoryNode, error) {
	if query == "" || limit < 0 {
		return nil, storeerr.New(storeerr.InvalidInput, "empty query or negative limit")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)

	type scored struct {
		node  *model.MemoryNode
		score float64
	}
	var results []scored

	for _, n := range s.nodes {
		if memType != nil && n.Type != *memType {
			continue
		}
		if depth != nil && n.Depth != *depth {
			continue
		}
		haystack := strings.ToLower(string(n.Content))
		matchCount := strings.Count(haystack, needle)
		if matchCount == 0 {
			continue
		}
		accessScore := float64(n.AccessCount) / 10.0
		if accessScore > 1 {
			accessScore = 1
		}
		score := 0.5*float64(matchCount) + 0.3*n.MemoryStrength + 0.2*accessScore
		results = append(results, scored{node: n, score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].node.ID < results[j].node.ID
	})

	if limit < len(results) {
		results = results[:limit]
	}

	out := make([]*model.MemoryNode, len(results))
	for i, r := range results {
		out[i] = r.node.Clone()
	}

	return out, nil
}

// NodeView implements internal/gc.Hooks.
func (s *Store) NodeView(id string) (gc.NodeView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return gc.NodeView{}, false
	}
	return gc.NodeView{
		ID: n.ID, Depth: n.Depth, AccessCount: n.AccessCount,
		MemoryStrength: n.MemoryStrength, AssociationCount: len(n.Associations),
		LastAccessedAt: n.LastAccessedAt, SkipCount: n.SkipCount,
	}, true
}

// IncrSkipCount implements internal/gc.Hooks.
func (s *Store) IncrSkipCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return 0
	}
	n.SkipCount++
	return n.SkipCount
}

// EvictNode implements internal/gc.Hooks: the 5-step eviction procedure
// of spec.md §4.E.
func (s *Store) EvictNode(id string, forced bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil
	}

	ctx := context.Background()

	if sp, ok := s.spirals[n.SpiralID]; ok {
		delete(sp.Nodes, id)
		sp.NodeCount--
		if _, err := s.adapter.AtomicIncr(ctx, storage.PrefixSpiralCount+sp.ID, -1); err != nil {
			return err
		}
		if err := s.persistSpiral(ctx, sp); err != nil {
			return err
		}
	}

	for target := range n.Associations {
		if t, ok := s.nodes[target]; ok {
			delete(t.Associations, id)
		}
	}

	delete(s.sigilRegistry, n.Sigil.Signature)
	_ = s.adapter.Del(ctx, storage.PrefixSigil+n.Sigil.Signature)

	delete(s.nodes, id)
	_ = s.adapter.Del(ctx, storage.PrefixMem+id)

	s.cache.Remove(n.Sigil.Signature)

	return nil
}

func (s *Store) persistNode(ctx context.Context, n *model.MemoryNode) error {
	data, err := encodeNode(n)
	if err != nil {
		return storeerr.Wrap(storeerr.InvariantViolation, "encode node", err)
	}
	if err := s.adapter.Set(ctx, storage.PrefixMem+n.ID, data); err != nil {
		return err
	}
	return nil
}

func (s *Store) persistSpiral(ctx context.Context, sp *model.Spiral) error {
	data, err := encodeSpiral(sp)
	if err != nil {
		return storeerr.Wrap(storeerr.InvariantViolation, "encode spiral", err)
	}
	return s.adapter.Set(ctx, storage.PrefixSpiral+sp.ID, data)
}

func (s *Store) persistSigil(ctx context.Context, signature, nodeID string) error {
	data, err := encodeSigilRecord(signature, nodeID)
	if err != nil {
		return storeerr.Wrap(storeerr.InvariantViolation, "encode sigil record", err)
	}
	return s.adapter.Set(ctx, storage.PrefixSigil+signature, data)
}

// Snapshot returns the node and spiral tables for the rebuilder
// (internal/rebuild), which needs a consistent point-in-time view to
// reconcile counters.
func (s *Store) Snapshot() (nodes map[string]*model.MemoryNode, spirals map[string]*model.Spiral) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes = make(map[string]*model.MemoryNode, len(s.nodes))
	for k, v := range s.nodes {
		nodes[k] = v
	}
	spirals = make(map[string]*model.Spiral, len(s.spirals))
	for k, v := range s.spirals {
		spirals[k] = v
	}
	return
}

// ApplySpiralCorrection overwrites a spiral's derived fields and
// persists it, used only by internal/rebuild.
func (s *Store) ApplySpiralCorrection(ctx context.Context, id string, nodeCount int, averageDepth, currentRadius float64, totalTurns int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spirals[id]
	if !ok {
		return fmt.Errorf("unknown spiral %q", id)
	}
	sp.NodeCount = nodeCount
	sp.AverageDepth = averageDepth
	sp.CurrentRadius = currentRadius
	sp.TotalTurns = totalTurns
	sp.LastUpdatedAt = s.clock()
	return s.persistSpiral(ctx, sp)
}

// Close releases the underlying storage adapter.
func (s *Store) Close() error {
	return s.adapter.Close()
}
