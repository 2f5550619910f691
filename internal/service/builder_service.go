package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"blgu-assess-go/internal/indicator"
	"blgu-assess-go/internal/model"
	"blgu-assess-go/internal/repository"
	"blgu-assess-go/pkg/log"
	"blgu-assess-go/pkg/storage"
)

var (
	ErrDraftNotFound  = errors.New("draft not found")
	ErrDraftConflict  = errors.New("draft was changed by another save; the latest version has been reloaded")
	ErrSessionNotOpen = errors.New("draft is not open for editing by this user")
	ErrDraftLocked    = repository.ErrDraftLocked
)

// SnapshotExporter uploads a published snapshot and returns a download link.
type SnapshotExporter interface {
	ExportSnapshot(ctx context.Context, objectName string, data []byte) (string, error)
}

// IndicatorIndexer replaces the searchable leaves of a draft.
type IndicatorIndexer interface {
	ReplaceDraft(ctx context.Context, draftID uint, docs []model.IndicatorDocument) error
}

// BuilderOptions tunes a BuilderService. Zero values fall back to defaults.
type BuilderOptions struct {
	LockTTL  time.Duration
	CacheTTL time.Duration
	// NewStore builds the tree of a freshly opened session.
	NewStore func() *indicator.Store
	Now      func() time.Time
}

// TreeView is the builder's full picture of an open draft.
type TreeView struct {
	DraftID          uint                  `json:"draftId"`
	Version          int64                 `json:"version"`
	GovernanceAreaID int                   `json:"governanceAreaId"`
	Roots            []*indicator.TreeNode `json:"roots"`
	Progress         indicator.Progress    `json:"progress"`
	SelectedID       string                `json:"selectedId,omitempty"`
	EditingID        string                `json:"editingId,omitempty"`
}

// IndicatorDetail is one node with its derived state.
type IndicatorDetail struct {
	Node                *indicator.IndicatorNode    `json:"node"`
	IsLeaf              bool                        `json:"isLeaf"`
	CanConfigureSchemas bool                        `json:"canConfigureSchemas"`
	SchemaStatus        indicator.SchemaStatus      `json:"schemaStatus"`
	ParentStatus        *indicator.ParentStatusInfo `json:"parentStatus,omitempty"`
}

// PublishResult reports a publish. Export and indexing are best effort; their
// failures are reported here and do not undo the publish.
type PublishResult struct {
	DraftID      uint               `json:"draftId"`
	Version      int64              `json:"version"`
	ExportObject string             `json:"exportObject,omitempty"`
	DownloadURL  string             `json:"downloadUrl,omitempty"`
	Indexed      int                `json:"indexed"`
	Progress     indicator.Progress `json:"progress"`
	ExportError  string             `json:"exportError,omitempty"`
	IndexError   string             `json:"indexError,omitempty"`
}

// BuilderService runs indicator builder sessions. Each open draft has one
// in-memory Store owned by the user holding the draft's lock.
type BuilderService interface {
	CreateDraft(ctx context.Context, title string, governanceAreaID int, user *model.User) (*model.IndicatorDraft, error)
	ImportDraft(ctx context.Context, title string, snap indicator.Snapshot, user *model.User) (*model.IndicatorDraft, error)
	ListDrafts(ctx context.Context, governanceAreaID int) ([]model.DraftSummary, error)
	OpenDraft(ctx context.Context, draftID uint, user *model.User) (*TreeView, error)
	CloseDraft(ctx context.Context, draftID uint, user *model.User) error
	SaveDraft(ctx context.Context, draftID uint, user *model.User) (int64, error)
	PublishDraft(ctx context.Context, draftID uint, user *model.User) (*PublishResult, error)

	AddIndicator(draftID uint, user *model.User, parentID string, patch indicator.NodePatch) (*IndicatorDetail, error)
	UpdateIndicator(draftID uint, user *model.User, id string, patch indicator.NodePatch) (*IndicatorDetail, error)
	DeleteIndicator(draftID uint, user *model.User, id string) ([]string, error)
	DuplicateIndicator(draftID uint, user *model.User, id string, includeChildren bool) (*IndicatorDetail, error)
	MoveIndicator(draftID uint, user *model.User, id, newParentID string, newIndex int) error
	ReorderIndicators(draftID uint, user *model.User, parentID string, orderedIDs []string) error
	SetGovernanceArea(draftID uint, user *model.User, governanceAreaID int) error
	ArchiveSchemas(draftID uint, user *model.User, id string) error
	RestoreSchemas(draftID uint, user *model.User, id string) (bool, error)
	SelectIndicator(draftID uint, user *model.User, id string, editing bool) error

	Tree(draftID uint, user *model.User) (*TreeView, error)
	Indicator(draftID uint, user *model.User, id string) (*IndicatorDetail, error)
	Children(draftID uint, user *model.User, parentID string) ([]*indicator.IndicatorNode, error)
	Siblings(draftID uint, user *model.User, id string) ([]*indicator.IndicatorNode, error)
	Snapshot(draftID uint, user *model.User) (*indicator.Snapshot, error)
}

type builderSession struct {
	mu      sync.Mutex
	owner   uint
	version int64
	store   *indicator.Store
}

type builderService struct {
	draftRepo repository.DraftRepository
	sessions  repository.DraftSessionRepository
	exporter  SnapshotExporter
	indexer   IndicatorIndexer
	opts      BuilderOptions

	mu   sync.Mutex
	open map[uint]*builderSession
}

// NewBuilderService wires the builder. sessions, exporter and indexer may be
// nil; locking, export and indexing are then skipped.
func NewBuilderService(draftRepo repository.DraftRepository, sessions repository.DraftSessionRepository, exporter SnapshotExporter, indexer IndicatorIndexer, opts BuilderOptions) BuilderService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.NewStore == nil {
		opts.NewStore = func() *indicator.Store { return indicator.NewStore() }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &builderService{
		draftRepo: draftRepo,
		sessions:  sessions,
		exporter:  exporter,
		indexer:   indexer,
		opts:      opts,
		open:      make(map[uint]*builderSession),
	}
}

func (s *builderService) CreateDraft(ctx context.Context, title string, governanceAreaID int, user *model.User) (*model.IndicatorDraft, error) {
	return s.ImportDraft(ctx, title, indicator.Snapshot{GovernanceAreaID: governanceAreaID}, user)
}

// ImportDraft stores snap as a new draft. The snapshot is normalised through a
// Store first, so codes, orders and broken parent links are repaired.
func (s *builderService) ImportDraft(ctx context.Context, title string, snap indicator.Snapshot, user *model.User) (*model.IndicatorDraft, error) {
	store := s.opts.NewStore()
	if repaired := store.Initialize(snap); len(repaired) > 0 {
		log.Warnw("imported snapshot had detached indicators", "title", title, "repaired", repaired)
	}
	normalized := store.Snapshot()
	normalized.Version = 1
	payload, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	draft := &model.IndicatorDraft{
		Title:            title,
		GovernanceAreaID: normalized.GovernanceAreaID,
		Version:          1,
		Payload:          payload,
		CreatedBy:        user.ID,
		UpdatedBy:        user.ID,
	}
	if err := s.draftRepo.Create(ctx, draft); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	log.Infow("draft created", "draftId", draft.ID, "userId", user.ID, "indicators", store.Len())
	return draft, nil
}

func (s *builderService) ListDrafts(ctx context.Context, governanceAreaID int) ([]model.DraftSummary, error) {
	drafts, err := s.draftRepo.List(ctx, governanceAreaID)
	if err != nil {
		return nil, err
	}
	out := make([]model.DraftSummary, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, d.Summary())
	}
	return out, nil
}

func (s *builderService) loadDraft(ctx context.Context, draftID uint) (*model.IndicatorDraft, indicator.Snapshot, error) {
	var snap indicator.Snapshot
	draft, err := s.draftRepo.FindByID(ctx, draftID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, snap, ErrDraftNotFound
	}
	if err != nil {
		return nil, snap, err
	}
	if len(draft.Payload) > 0 {
		if err := json.Unmarshal(draft.Payload, &snap); err != nil {
			return nil, snap, fmt.Errorf("decode draft %d: %w", draftID, err)
		}
	}
	// the row's version is authoritative over whatever the payload carries
	snap.Version = draft.Version
	if snap.GovernanceAreaID == 0 {
		snap.GovernanceAreaID = draft.GovernanceAreaID
	}
	return draft, snap, nil
}

// OpenDraft takes the draft's editing lock and loads it into a fresh Store.
// Opening a draft the caller already has open returns the current session.
func (s *builderService) OpenDraft(ctx context.Context, draftID uint, user *model.User) (*TreeView, error) {
	if s.sessions != nil {
		if err := s.sessions.AcquireLock(ctx, draftID, user.ID, s.opts.LockTTL); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	sess, ok := s.open[draftID]
	s.mu.Unlock()
	if ok && sess.owner == user.ID {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return s.view(draftID, sess), nil
	}

	_, snap, err := s.loadDraft(ctx, draftID)
	if err != nil {
		s.releaseLock(ctx, draftID, user.ID)
		return nil, err
	}
	sess = &builderSession{owner: user.ID, version: snap.Version, store: s.opts.NewStore()}
	if repaired := sess.store.Initialize(snap); len(repaired) > 0 {
		log.Warnw("draft had detached indicators, re-attached as roots", "draftId", draftID, "repaired", repaired)
	}

	s.mu.Lock()
	s.open[draftID] = sess
	s.mu.Unlock()
	log.Infow("draft opened", "draftId", draftID, "userId", user.ID, "version", sess.version)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.view(draftID, sess), nil
}

func (s *builderService) releaseLock(ctx context.Context, draftID, owner uint) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.ReleaseLock(ctx, draftID, owner); err != nil {
		log.Warnf("[BuilderService] release lock of draft %d: %v", draftID, err)
	}
}

// CloseDraft discards unsaved edits and releases the lock.
func (s *builderService) CloseDraft(ctx context.Context, draftID uint, user *model.User) error {
	s.mu.Lock()
	sess, ok := s.open[draftID]
	if !ok || sess.owner != user.ID {
		s.mu.Unlock()
		return ErrSessionNotOpen
	}
	delete(s.open, draftID)
	s.mu.Unlock()

	sess.mu.Lock()
	sess.store.Reset()
	sess.mu.Unlock()
	s.releaseLock(ctx, draftID, user.ID)
	log.Infow("draft closed", "draftId", draftID, "userId", user.ID)
	return nil
}

func (s *builderService) session(draftID uint, user *model.User) (*builderSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.open[draftID]
	if !ok || user == nil || sess.owner != user.ID {
		return nil, ErrSessionNotOpen
	}
	return sess, nil
}

// withStore runs fn on the caller's session with the session locked. Every
// call extends the editing lock, so it only lapses after LockTTL of
// inactivity; if another editor has taken it meanwhile, fn is not run.
func (s *builderService) withStore(draftID uint, user *model.User, fn func(sess *builderSession) error) error {
	sess, err := s.session(draftID, user)
	if err != nil {
		return err
	}
	if err := s.refreshLock(draftID, user.ID); err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

func (s *builderService) refreshLock(draftID, owner uint) error {
	if s.sessions == nil {
		return nil
	}
	err := s.sessions.AcquireLock(context.Background(), draftID, owner, s.opts.LockTTL)
	switch {
	case errors.Is(err, ErrDraftLocked):
		return err
	case err != nil:
		log.Warnf("[BuilderService] refresh lock of draft %d: %v", draftID, err)
	}
	return nil
}

// SaveDraft persists the open tree. When someone else saved in between, the
// session is reloaded from the database and ErrDraftConflict is returned.
func (s *builderService) SaveDraft(ctx context.Context, draftID uint, user *model.User) (int64, error) {
	var version int64
	err := s.withStore(draftID, user, func(sess *builderSession) error {
		v, err := s.save(ctx, draftID, user, sess)
		version = v
		return err
	})
	return version, err
}

func (s *builderService) save(ctx context.Context, draftID uint, user *model.User, sess *builderSession) (int64, error) {
	snap := sess.store.Snapshot()
	snap.Version = sess.version + 1
	payload, err := json.Marshal(snap)
	if err != nil {
		return 0, err
	}

	newVersion, err := s.draftRepo.SaveSnapshot(ctx, draftID, sess.version, payload, snap.GovernanceAreaID, user.ID)
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		log.Warnw("draft save conflict, reloading", "draftId", draftID, "userId", user.ID, "staleVersion", sess.version)
		_, fresh, loadErr := s.loadDraft(ctx, draftID)
		if loadErr != nil {
			return 0, loadErr
		}
		sess.store.Initialize(fresh)
		sess.version = fresh.Version
		return fresh.Version, ErrDraftConflict
	case errors.Is(err, gorm.ErrRecordNotFound):
		return 0, ErrDraftNotFound
	case err != nil:
		return 0, err
	}

	sess.version = newVersion
	log.Infow("draft saved", "draftId", draftID, "userId", user.ID, "version", newVersion)
	return newVersion, nil
}

// PublishDraft saves the open tree and makes that version the one assessments
// read. The snapshot is exported to object storage and its leaves indexed for
// search.
func (s *builderService) PublishDraft(ctx context.Context, draftID uint, user *model.User) (*PublishResult, error) {
	var res *PublishResult
	err := s.withStore(draftID, user, func(sess *builderSession) error {
		version, err := s.save(ctx, draftID, user, sess)
		if err != nil {
			return err
		}
		snap := sess.store.Snapshot()
		snap.Version = version
		payload, err := json.Marshal(snap)
		if err != nil {
			return err
		}

		res = &PublishResult{DraftID: draftID, Version: version, Progress: sess.store.Progress()}
		if s.exporter != nil {
			object := storage.SnapshotObjectName(draftID, version)
			url, err := s.exporter.ExportSnapshot(ctx, object, payload)
			if err != nil {
				log.Error("snapshot export failed", err)
				res.ExportError = err.Error()
			} else {
				res.ExportObject = object
				res.DownloadURL = url
			}
		}

		if err := s.draftRepo.MarkPublished(ctx, draftID, version, res.ExportObject, s.opts.Now()); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return ErrDraftConflict
			}
			return err
		}
		if s.sessions != nil {
			if err := s.sessions.CacheSnapshot(ctx, draftID, version, payload, s.opts.CacheTTL); err != nil {
				log.Warnf("[BuilderService] cache published draft %d: %v", draftID, err)
			}
		}

		if s.indexer != nil {
			docs := IndicatorDocuments(draftID, snap)
			if err := s.indexer.ReplaceDraft(ctx, draftID, docs); err != nil {
				log.Error("indicator indexing failed", err)
				res.IndexError = err.Error()
			} else {
				res.Indexed = len(docs)
			}
		}
		log.Infow("draft published", "draftId", draftID, "userId", user.ID, "version", version,
			"complete", res.Progress.Complete, "leaves", res.Progress.Total)
		return nil
	})
	return res, err
}

func (s *builderService) view(draftID uint, sess *builderSession) *TreeView {
	return &TreeView{
		DraftID:          draftID,
		Version:          sess.version,
		GovernanceAreaID: sess.store.GovernanceAreaID(),
		Roots:            sess.store.GetTreeView(),
		Progress:         sess.store.Progress(),
		SelectedID:       sess.store.SelectedID(),
		EditingID:        sess.store.EditingID(),
	}
}

func detail(st *indicator.Store, id string) (*IndicatorDetail, error) {
	n, ok := st.GetNodeByID(id)
	if !ok {
		return nil, indicator.ErrNodeNotFound
	}
	status, _ := st.SchemaStatus(id)
	d := &IndicatorDetail{
		Node:                n,
		IsLeaf:              st.IsLeaf(id),
		CanConfigureSchemas: st.CanConfigureSchemas(id),
		SchemaStatus:        status,
	}
	if !d.IsLeaf {
		info, err := st.ParentStatus(id)
		if err != nil {
			return nil, err
		}
		d.ParentStatus = &info
	}
	return d, nil
}

func (s *builderService) AddIndicator(draftID uint, user *model.User, parentID string, patch indicator.NodePatch) (*IndicatorDetail, error) {
	var out *IndicatorDetail
	err := s.withStore(draftID, user, func(sess *builderSession) error {
		id, err := sess.store.AddNode(parentID, patch)
		if err != nil {
			return err
		}
		out, err = detail(sess.store, id)
		return err
	})
	return out, err
}

func (s *builderService) UpdateIndicator(draftID uint, user *model.User, id string, patch indicator.NodePatch) (*IndicatorDetail, error) {
	var out *IndicatorDetail
	err := s.withStore(draftID, user, func(sess *builderSession) error {
		if err := sess.store.UpdateNode(id, patch); err != nil {
			return err
		}
		var err error
		out, err = detail(sess.store, id)
		return err
	})
	return out, err
}

func (s *builderService) DeleteIndicator(draftID uint, user *model.User, id string) ([]string, error) {
	var removed []string
	err := s.withStore(draftID, user, func(sess *builderSession) error {
		var err error
		removed, err = sess.store.DeleteNode(id)
		return err
	})
	return removed, err
}

func (s *builderService) DuplicateIndicator(draftID uint, user *model.User, id string, includeChildren bool) (*IndicatorDetail, error) {
	var out *IndicatorDetail
	err := s.withStore(draftID, user, func(sess *builderSession) error {
		copyID, err := sess.store.DuplicateNode(id, includeChildren)
		if err != nil {
			return err
		}
		out, err = detail(sess.store, copyID)
		return err
	})
	return out, err
}

func (s *builderService) MoveIndicator(draftID uint, user *model.User, id, newParentID string, newIndex int) error {
	return s.withStore(draftID, user, func(sess *builderSession) error {
		return sess.store.MoveNode(id, newParentID, newIndex)
	})
}

func (s *builderService) ReorderIndicators(draftID uint, user *model.User, parentID string, orderedIDs []string) error {
	return s.withStore(draftID, user, func(sess *builderSession) error {
		return sess.store.ReorderNodes(parentID, orderedIDs)
	})
}

func (s *builderService) SetGovernanceArea(draftID uint, user *model.User, governanceAreaID int) error {
	return s.withStore(draftID, user, func(sess *builderSession) error {
		sess.store.SetGovernanceArea(governanceAreaID)
		return nil
	})
}

func (s *builderService) ArchiveSchemas(draftID uint, user *model.User, id string) error {
	return s.withStore(draftID, user, func(sess *builderSession) error {
		return sess.store.ArchiveSchemasForIndicator(id)
	})
}

func (s *builderService) RestoreSchemas(draftID uint, user *model.User, id string) (bool, error) {
	var restored bool
	err := s.withStore(draftID, user, func(sess *builderSession) error {
		var err error
		restored, err = sess.store.RestoreArchivedSchemas(id)
		return err
	})
	return restored, err
}

// SelectIndicator moves the selection, or the editing pointer when editing is
// set. An empty id clears it.
func (s *builderService) SelectIndicator(draftID uint, user *model.User, id string, editing bool) error {
	return s.withStore(draftID, user, func(sess *builderSession) error {
		if id != "" {
			if _, ok := sess.store.GetNodeByID(id); !ok {
				return indicator.ErrNodeNotFound
			}
		}
		if editing {
			sess.store.Edit(id)
		} else {
			sess.store.Select(id)
		}
		return nil
	})
}

func (s *builderService) Tree(draftID uint, user *model.User) (*TreeView, error) {
	var out *TreeView
	err := s.withStore(draftID, user, func(sess *builderSession) error {
		out = s.view(draftID, sess)
		return nil
	})
	return out, err
}

func (s *builderService) Indicator(draftID uint, user *model.User, id string) (*IndicatorDetail, error) {
	var out *IndicatorDetail
	err := s.withStore(draftID, user, func(sess *builderSession) error {
		var err error
		out, err = detail(sess.store, id)
		return err
	})
	return out, err
}

func (s *builderService) Children(draftID uint, user *model.User, parentID string) ([]*indicator.IndicatorNode, error) {
	var out []*indicator.IndicatorNode
	err := s.withStore(draftID, user, func(sess *builderSession) error {
		if parentID != "" {
			if _, ok := sess.store.GetNodeByID(parentID); !ok {
				return indicator.ErrNodeNotFound
			}
		}
		out = sess.store.GetChildrenOf(parentID)
		return nil
	})
	return out, err
}

func (s *builderService) Siblings(draftID uint, user *model.User, id string) ([]*indicator.IndicatorNode, error) {
	var out []*indicator.IndicatorNode
	err := s.withStore(draftID, user, func(sess *builderSession) error {
		if _, ok := sess.store.GetNodeByID(id); !ok {
			return indicator.ErrNodeNotFound
		}
		out = sess.store.GetSiblingsOf(id)
		return nil
	})
	return out, err
}

func (s *builderService) Snapshot(draftID uint, user *model.User) (*indicator.Snapshot, error) {
	var out *indicator.Snapshot
	err := s.withStore(draftID, user, func(sess *builderSession) error {
		snap := sess.store.Snapshot()
		snap.Version = sess.version
		out = &snap
		return nil
	})
	return out, err
}
