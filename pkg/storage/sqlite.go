package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/dshills/flowedit/pkg/flow"
	"github.com/dshills/flowedit/pkg/refdata"
	"github.com/dshills/flowedit/pkg/validation"
)

var (
	// ErrEntityNotFound is returned when no reference entity has the given id
	ErrEntityNotFound = errors.New("reference entity not found")

	// ErrDuplicateEntity is returned when an entity of the same kind and name exists in the scope
	ErrDuplicateEntity = errors.New("reference entity already exists")
)

// SQLiteReferenceRepository stores enumerations and constants.
// It is the fetcher behind the reference data cache.
type SQLiteReferenceRepository struct {
	db *sql.DB
}

var _ refdata.Fetcher = (*SQLiteReferenceRepository)(nil)

// NewSQLiteReferenceRepository opens (or creates) the database at dbPath
func NewSQLiteReferenceRepository(dbPath string) (*SQLiteReferenceRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	if err := InitializeDatabase(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &SQLiteReferenceRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteReferenceRepository) Close() error {
	return r.db.Close()
}

// Create validates and stores a new entity. An empty ID is generated; the
// scope is derived from FlowID.
func (r *SQLiteReferenceRepository) Create(ctx context.Context, e *refdata.Entity) error {
	if e == nil {
		return fmt.Errorf("cannot save nil entity")
	}
	if e.ID == "" {
		e.ID = flow.NewID()
	}
	e.Scope = refdata.ScopeProject
	if e.FlowID != "" {
		e.Scope = refdata.ScopeFlow
	}
	if err := validateEntity(e); err != nil {
		return err
	}

	var value, values sql.NullString
	if e.Value != nil {
		data, err := json.Marshal(e.Value)
		if err != nil {
			return fmt.Errorf("failed to encode value of %s: %w", e.Name, err)
		}
		value = sql.NullString{String: string(data), Valid: true}
	}
	if len(e.Values) > 0 {
		data, err := json.Marshal(e.Values)
		if err != nil {
			return fmt.Errorf("failed to encode values of %s: %w", e.Name, err)
		}
		values = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO reference_entities (
			id, kind, name, value_type, value, labeled_values, scope, project_id, flow_id, description
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		string(e.Kind),
		e.Name,
		e.ValueType,
		value,
		values,
		string(e.Scope),
		e.ProjectID,
		e.FlowID,
		e.Description,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s %s", ErrDuplicateEntity, e.Kind, e.Name)
		}
		return fmt.Errorf("failed to save reference entity: %w", err)
	}
	return nil
}

// Get loads one entity by id
func (r *SQLiteReferenceRepository) Get(ctx context.Context, id string) (*refdata.Entity, error) {
	query := `
		SELECT id, kind, name, value_type, value, labeled_values, scope, project_id, flow_id, description
		FROM reference_entities
		WHERE id = ?
	`
	e, err := scanEntity(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reference entity: %w", err)
	}
	return e, nil
}

// Delete removes an entity by id
func (r *SQLiteReferenceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM reference_entities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete reference entity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete reference entity: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return nil
}

// List returns the entities visible in a scope, ordered by kind and name.
// A project key sees project level entities; a project:flow key also sees
// that flow's own entities.
func (r *SQLiteReferenceRepository) List(ctx context.Context, key refdata.ScopeKey) ([]refdata.Entity, error) {
	if key.IsZero() {
		return nil, refdata.ErrNoScope
	}

	query := `
		SELECT id, kind, name, value_type, value, labeled_values, scope, project_id, flow_id, description
		FROM reference_entities
		WHERE project_id = ? AND (flow_id = '' OR flow_id = ?)
		ORDER BY kind, name, flow_id
	`
	rows, err := r.db.QueryContext(ctx, query, key.Project(), key.Flow())
	if err != nil {
		return nil, fmt.Errorf("failed to query reference entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entities := make([]refdata.Entity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reference entity: %w", err)
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reference entities: %w", err)
	}
	return entities, nil
}

// FetchReferenceList serves the reference data cache
func (r *SQLiteReferenceRepository) FetchReferenceList(ctx context.Context, key refdata.ScopeKey) ([]refdata.Entity, error) {
	return r.List(ctx, key)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row rowScanner) (*refdata.Entity, error) {
	var e refdata.Entity
	var kind, scope string
	var value, values sql.NullString

	err := row.Scan(
		&e.ID,
		&kind,
		&e.Name,
		&e.ValueType,
		&value,
		&values,
		&scope,
		&e.ProjectID,
		&e.FlowID,
		&e.Description,
	)
	if err != nil {
		return nil, err
	}
	e.Kind = refdata.Kind(kind)
	e.Scope = refdata.Scope(scope)

	if value.Valid {
		if err := json.Unmarshal([]byte(value.String), &e.Value); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", e.Name, err)
		}
	}
	if values.Valid {
		if err := json.Unmarshal([]byte(values.String), &e.Values); err != nil {
			return nil, fmt.Errorf("invalid values for %s: %w", e.Name, err)
		}
	}
	return &e, nil
}

// constant value types
var valueTypes = map[string]bool{
	"":        true,
	"string":  true,
	"number":  true,
	"boolean": true,
	"json":    true,
}

func validateEntity(e *refdata.Entity) error {
	if err := validation.ValidateName(e.ProjectID); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}
	if e.FlowID != "" {
		if err := validation.ValidateName(e.FlowID); err != nil {
			return fmt.Errorf("invalid flow: %w", err)
		}
	}
	if !validation.IsVariableName(e.Name) {
		return fmt.Errorf("invalid reference name %q: must start with a letter and contain only letters, digits and underscores", e.Name)
	}

	switch e.Kind {
	case refdata.KindEnum:
		if len(e.Values) == 0 {
			return fmt.Errorf("enum %s must define at least one value", e.Name)
		}
		seen := make(map[string]bool, len(e.Values))
		for _, v := range e.Values {
			if v.Value == "" {
				return fmt.Errorf("enum %s has an empty value", e.Name)
			}
			if seen[v.Value] {
				return fmt.Errorf("enum %s has duplicate value %q", e.Name, v.Value)
			}
			seen[v.Value] = true
		}
	case refdata.KindConstant:
		if !valueTypes[e.ValueType] {
			return fmt.Errorf("constant %s has unknown value type %q", e.Name, e.ValueType)
		}
		if e.Value == nil {
			return fmt.Errorf("constant %s must have a value", e.Name)
		}
	default:
		return fmt.Errorf("unknown reference kind %q", e.Kind)
	}
	return nil
}
