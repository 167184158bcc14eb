package cli

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dshills/flowedit/pkg/editor"
	operrors "github.com/dshills/flowedit/pkg/errors"
	"github.com/dshills/flowedit/pkg/graphstore"
	"github.com/dshills/flowedit/pkg/refdata"
	"github.com/dshills/flowedit/pkg/storage"
)

// session is one open flow wired to a headless node editor
type session struct {
	name   string
	repo   *storage.FilesystemFlowRepository
	store  *graphstore.Store
	form   *editor.MapForm
	syncer *editor.Synchronizer
	vars   *editor.VariableController
	detach func()
}

func openFlowRepository() (*storage.FilesystemFlowRepository, error) {
	return storage.NewFilesystemFlowRepository(GetConfigDir())
}

// openSession loads a flow and binds an editor to it
func openSession(name string) (*session, error) {
	repo, err := openFlowRepository()
	if err != nil {
		return nil, err
	}
	g, err := repo.Load(name)
	if err != nil {
		return nil, operrors.NewOperationalError("loading flow", name, "", err)
	}

	logger := slog.Default().With("flow", name)
	store := graphstore.New(g,
		graphstore.WithUndoCapacity(GlobalConfig.UndoCapacity),
		graphstore.WithLogger(logger),
	)
	form := editor.NewMapForm()
	syncer := editor.NewSynchronizer(store, form, editor.WithLogger(logger))
	form.OnChange = syncer.HandleValuesChange

	return &session{
		name:   name,
		repo:   repo,
		store:  store,
		form:   form,
		syncer: syncer,
		vars:   editor.NewVariableController(syncer, ""),
		detach: syncer.Attach(store),
	}, nil
}

// selectNode binds the editor to a node
func (s *session) selectNode(id string) error {
	if err := s.store.Select(id); err != nil {
		return operrors.NewOperationalError("selecting node", s.name, id, err)
	}
	return nil
}

// save writes the edited flow back to its file
func (s *session) save() error {
	if err := s.repo.Save(s.store.Graph()); err != nil {
		return operrors.NewOperationalError("saving flow", s.name, "", err)
	}
	return nil
}

func (s *session) close() {
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
}

var (
	referenceOnce  sync.Once
	referenceRepo  *storage.SQLiteReferenceRepository
	referenceCache *refdata.Cache
	referenceErr   error
)

// referenceData opens the reference repository and the process-wide cache over it
func referenceData() (*storage.SQLiteReferenceRepository, *refdata.Cache, error) {
	referenceOnce.Do(func() {
		referenceRepo, referenceErr = storage.NewSQLiteReferenceRepository(GetDatabasePath())
		if referenceErr != nil {
			return
		}
		referenceCache = refdata.NewCache(referenceRepo,
			refdata.WithFetchTimeout(GlobalConfig.FetchTimeout),
			refdata.WithLogger(slog.Default()),
		)
	})
	return referenceRepo, referenceCache, referenceErr
}

// closeReferenceData releases the reference database so a later command
// may open another one
func closeReferenceData() {
	if referenceRepo != nil {
		_ = referenceRepo.Close()
	}
	referenceOnce = sync.Once{}
	referenceRepo, referenceCache, referenceErr = nil, nil, nil
}

func projectScope(flowName string) (refdata.ScopeKey, error) {
	key := refdata.NewScopeKey(GlobalConfig.Project, flowName)
	if key.IsZero() {
		return "", fmt.Errorf("no project configured: pass --project or set project in config.yaml")
	}
	return key, nil
}
