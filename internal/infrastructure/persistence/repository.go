package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/infrastructure/persistence/scope"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// entity is the pointer constraint every workspace-scoped model satisfies
type entity[T any] interface {
	*T
	shared.Scoped
}

type nameNormalizer interface {
	NormalizeName()
}

type validatable interface {
	Validate() error
}

var schemaCache sync.Map

// columns that no patch may touch
var systemColumns = []string{"id", "user_id", "workspace_id", "created_at", "updated_at"}

// repoSpec describes the queryable surface of one table
type repoSpec struct {
	label    string
	order    orderable
	search   []string
	filters  []string
	readonly []string
}

// Repository implements workspace-scoped CRUD for one business table. Every
// operation takes an explicit selector; the scope guard rejects anything
// that would reach the table without one.
type Repository[T any, PT entity[T]] struct {
	db   *gorm.DB
	spec repoSpec
}

func newRepository[T any, PT entity[T]](db *gorm.DB, spec repoSpec) *Repository[T, PT] {
	return &Repository[T, PT]{db: db, spec: spec}
}

// Insert stamps the selector's workspace on e and stores it. An unscoped
// selector stores a legacy row with no workspace.
func (r *Repository[T, PT]) Insert(ctx context.Context, sel shared.Selector, e PT) error {
	if err := sel.Validate(); err != nil {
		return err
	}
	if err := prepare(e); err != nil {
		return err
	}
	e.AssignScope(e.Owner(), sel)
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return translate(err, r.spec.label)
	}
	return nil
}

// FindByID returns the row with id if the selector admits it
func (r *Repository[T, PT]) FindByID(ctx context.Context, sel shared.Selector, id int64) (PT, error) {
	e := PT(new(T))
	if err := r.db.WithContext(ctx).Scopes(scope.Apply(sel)).First(e, id).Error; err != nil {
		return nil, translate(err, r.spec.label)
	}
	return e, nil
}

// QueryAll returns the rows the selector admits, filtered and paged
func (r *Repository[T, PT]) QueryAll(ctx context.Context, sel shared.Selector, filter shared.Filter) (shared.Paginated[T], error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(PT(new(T))).Scopes(scope.Apply(sel))
		return r.applyFilter(q, filter)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return shared.Paginated[T]{}, translate(err, r.spec.label)
	}

	items := make([]T, 0)
	q := r.applyOrder(base(), filter)
	if !filter.Unpaged() {
		q = q.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	if err := q.Find(&items).Error; err != nil {
		return shared.Paginated[T]{}, translate(err, r.spec.label)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	return shared.NewPaginated(items, total, page, filter.PageSize), nil
}

// Count returns how many rows the selector admits
func (r *Repository[T, PT]) Count(ctx context.Context, sel shared.Selector) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(PT(new(T))).Scopes(scope.Apply(sel)).Count(&n).Error; err != nil {
		return 0, translate(err, r.spec.label)
	}
	return n, nil
}

// Update applies patch, keyed by column name, to the row with id and
// returns the stored result. System and read-only columns are refused.
func (r *Repository[T, PT]) Update(ctx context.Context, sel shared.Selector, id int64, patch map[string]any) (PT, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	clean, err := r.sanitize(patch)
	if err != nil {
		return nil, err
	}
	if len(clean) == 0 {
		return r.FindByID(ctx, sel, id)
	}

	out := PT(new(T))
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur := PT(new(T))
		if err := tx.Scopes(scope.Apply(sel)).First(cur, id).Error; err != nil {
			return translate(err, r.spec.label)
		}
		if err := tx.Model(cur).Scopes(scope.Apply(sel)).Updates(clean).Error; err != nil {
			return translate(err, r.spec.label)
		}
		if err := tx.Scopes(scope.Apply(sel)).First(out, id).Error; err != nil {
			return translate(err, r.spec.label)
		}
		// rolls the update back when the patch leaves the row invalid
		return validateEntity(out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the row with id and returns it as it was
func (r *Repository[T, PT]) Delete(ctx context.Context, sel shared.Selector, id int64) (PT, error) {
	old := PT(new(T))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(scope.Apply(sel)).First(old, id).Error; err != nil {
			return translate(err, r.spec.label)
		}
		result := tx.Scopes(scope.Apply(sel)).Delete(PT(new(T)), id)
		if result.Error != nil {
			return translate(result.Error, r.spec.label)
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError(shared.CodeNotFound, r.spec.label+" not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}

func (r *Repository[T, PT]) sanitize(patch map[string]any) (map[string]any, error) {
	s, err := schema.Parse(PT(new(T)), &schemaCache, r.db.NamingStrategy)
	if err != nil {
		return nil, storeIO("parse "+r.spec.label+" schema", err)
	}

	refused := make(map[string]bool, len(systemColumns)+len(r.spec.readonly))
	for _, c := range systemColumns {
		refused[c] = true
	}
	for _, c := range r.spec.readonly {
		refused[c] = true
	}

	clean := make(map[string]any, len(patch))
	var bad []string
	for k, v := range patch {
		if _, ok := s.FieldsByDBName[k]; !ok || refused[k] {
			bad = append(bad, k)
			continue
		}
		if str, ok := v.(string); ok && (k == "name" || k == "product_name") {
			v = shared.NormalizeName(str)
		}
		clean[k] = v
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("%s fields cannot be updated: %s", r.spec.label, strings.Join(bad, ", ")))
	}
	return clean, nil
}

func (r *Repository[T, PT]) applyFilter(q *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" && len(r.spec.search) > 0 {
		pattern := "%" + filter.Search + "%"
		conds := make([]string, len(r.spec.search))
		args := make([]any, len(r.spec.search))
		for i, col := range r.spec.search {
			conds[i] = col + " LIKE ?"
			args[i] = pattern
		}
		q = q.Where(strings.Join(conds, " OR "), args...)
	}

	keys := make([]string, 0, len(filter.Filters))
	for k := range filter.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !contains(r.spec.filters, k) {
			continue
		}
		if v := filter.Filters[k]; v == nil {
			q = q.Where(k + " IS NULL")
		} else {
			q = q.Where(k+" = ?", v)
		}
	}
	return q
}

func (r *Repository[T, PT]) applyOrder(q *gorm.DB, filter shared.Filter) *gorm.DB {
	return ordered(q, r.spec.order, filter)
}

// NamedRepository adds the soft-reference lookup to name-keyed tables
type NamedRepository[T any, PT entity[T]] struct {
	*Repository[T, PT]
}

// FindByName resolves a name-keyed reference. When an inclusive selector
// admits both a workspace row and a legacy row, the workspace row wins.
func (r *NamedRepository[T, PT]) FindByName(ctx context.Context, sel shared.Selector, name string) (PT, error) {
	name = shared.NormalizeName(name)
	e := PT(new(T))
	err := r.db.WithContext(ctx).
		Scopes(scope.Apply(sel)).
		Where("name = ?", name).
		Order("workspace_id IS NULL").
		First(e).Error
	if err != nil {
		if translated := translate(err, r.spec.label); !isNotFound(translated) {
			return nil, translated
		}
		return nil, shared.NewDomainError(shared.CodeReferentNotFound,
			fmt.Sprintf("%s %q does not exist in %s", r.spec.label, name, sel))
	}
	return e, nil
}

func prepare(e any) error {
	if n, ok := e.(nameNormalizer); ok {
		n.NormalizeName()
	}
	return validateEntity(e)
}

func validateEntity(e any) error {
	if v, ok := e.(validatable); ok {
		return v.Validate()
	}
	return shared.ValidateStruct(e)
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
