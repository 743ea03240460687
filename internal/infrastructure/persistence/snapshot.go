package persistence

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/erp/ledgerstore/internal/domain/audit"
	"github.com/erp/ledgerstore/internal/domain/catalog"
	"github.com/erp/ledgerstore/internal/domain/finance"
	"github.com/erp/ledgerstore/internal/domain/partner"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/trade"
	"github.com/erp/ledgerstore/internal/domain/workspace"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const restoreBatchSize = 200

// Snapshot is a complete copy of the store at one schema version
type Snapshot struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`

	Workspaces []workspace.Workspace `json:"workspaces"`
	Members    []workspace.Member    `json:"workspace_members"`
	Suppliers  []partner.Supplier    `json:"suppliers"`
	Customers  []partner.Customer    `json:"customers"`
	Employees  []partner.Employee    `json:"employees"`
	Products   []catalog.Product     `json:"products"`
	Purchases  []trade.Purchase      `json:"purchases"`
	Sales      []trade.Sale          `json:"sales"`
	Returns    []trade.Return        `json:"returns"`
	Income     []finance.Income      `json:"income"`
	Remittance []finance.Remittance  `json:"remittance"`
	AuditLog   []audit.Entry         `json:"operation_logs"`
}

// Counts returns the number of rows per table
func (s *Snapshot) Counts() map[string]int {
	return map[string]int{
		"workspaces":        len(s.Workspaces),
		"workspace_members": len(s.Members),
		"suppliers":         len(s.Suppliers),
		"customers":         len(s.Customers),
		"employees":         len(s.Employees),
		"products":          len(s.Products),
		"purchases":         len(s.Purchases),
		"sales":             len(s.Sales),
		"returns":           len(s.Returns),
		"income":            len(s.Income),
		"remittance":        len(s.Remittance),
		"operation_logs":    len(s.AuditLog),
	}
}

// WorkspaceData is the payload of an overwrite import. Row ids are only used
// to resolve the references between rows of the same payload.
type WorkspaceData struct {
	Suppliers  []partner.Supplier   `json:"suppliers"`
	Customers  []partner.Customer   `json:"customers"`
	Employees  []partner.Employee   `json:"employees"`
	Products   []catalog.Product    `json:"products"`
	Purchases  []trade.Purchase     `json:"purchases"`
	Sales      []trade.Sale         `json:"sales"`
	Returns    []trade.Return       `json:"returns"`
	Income     []finance.Income     `json:"income"`
	Remittance []finance.Remittance `json:"remittance"`
}

// ImportResult reports what an overwrite import replaced
type ImportResult struct {
	Removed  map[string]int64 `json:"removed"`
	Imported map[string]int64 `json:"imported"`
	AuditID  int64            `json:"audit_id"`
}

// SnapshotRepository exports, restores and overwrites store contents. Its
// statements bypass the workspace guard and must stay confined to this file.
type SnapshotRepository struct {
	db            *gorm.DB
	logger        *zap.Logger
	schemaVersion int
	now           func() time.Time
}

// NewSnapshotRepository creates a SnapshotRepository for a store at schemaVersion
func NewSnapshotRepository(db *gorm.DB, logger *zap.Logger, schemaVersion int) *SnapshotRepository {
	return &SnapshotRepository{
		db:            db,
		logger:        logger,
		schemaVersion: schemaVersion,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Export reads every table inside one transaction
func (r *SnapshotRepository) Export(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		ID:            uuid.NewString(),
		SchemaVersion: r.schemaVersion,
		CreatedAt:     r.now(),
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Unscoped().Order("id").Session(&gorm.Session{})
		for _, dest := range []any{
			&snap.Workspaces, &snap.Members, &snap.Suppliers, &snap.Customers, &snap.Employees, &snap.Products,
			&snap.Purchases, &snap.Sales, &snap.Returns, &snap.Income, &snap.Remittance, &snap.AuditLog,
		} {
			if err := all.Find(dest).Error; err != nil {
				return translate(err, "snapshot")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Restore replaces the whole store with snap, keeping row ids. The snapshot
// must come from a store at the same schema version.
func (r *SnapshotRepository) Restore(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "snapshot is required")
	}
	if snap.SchemaVersion != r.schemaVersion {
		return shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("snapshot schema version %d does not match store version %d", snap.SchemaVersion, r.schemaVersion))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wipe := tx.Unscoped().Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, m := range append(scopedModels(), &audit.Entry{}, &workspace.Member{}, &workspace.Workspace{}) {
			if err := wipe.Delete(m).Error; err != nil {
				return translate(err, "clear "+m.TableName())
			}
		}

		for _, rows := range []any{
			&snap.Workspaces, &snap.Members, &snap.Suppliers, &snap.Customers, &snap.Employees, &snap.Products,
			&snap.Purchases, &snap.Sales, &snap.Returns, &snap.Income, &snap.Remittance, &snap.AuditLog,
		} {
			if err := insertRows(tx, rows); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("store restored from snapshot",
		zap.String("snapshot_id", snap.ID),
		zap.Any("counts", snap.Counts()),
	)
	return nil
}

// insertRows stores a pointer to a slice of rows with their ids
func insertRows(tx *gorm.DB, rows any) error {
	if reflect.Indirect(reflect.ValueOf(rows)).Len() == 0 {
		return nil
	}
	if err := tx.CreateInBatches(rows, restoreBatchSize).Error; err != nil {
		return translate(err, "restore")
	}
	return nil
}

// ImportWorkspace replaces every row of one workspace with data inside one
// transaction and records a single COVER audit entry. References between
// payload rows are remapped to the new ids; references that do not resolve
// are cleared, and unknown product units fall back to the default unit.
func (r *SnapshotRepository) ImportWorkspace(ctx context.Context, workspaceID int64, data *WorkspaceData, actor audit.Actor) (*ImportResult, error) {
	if data == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "import data is required")
	}
	sel := shared.StrictWorkspace(workspaceID)
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	result := &ImportResult{Imported: make(map[string]int64)}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ws workspace.Workspace
		if err := tx.First(&ws, workspaceID).Error; err != nil {
			return translate(err, "workspace")
		}

		removed, err := purgeWorkspace(tx, workspaceID)
		if err != nil {
			return err
		}
		result.Removed = removed

		imp := &importer{tx: tx, sel: sel, userID: actor.UserID, counts: result.Imported}
		if err := imp.run(data); err != nil {
			return err
		}

		entry, err := NewAuditRepository(tx).Record(ctx, audit.Record{
			Operation:   audit.OperationCover,
			Entity:      audit.EntityWorkspaceData,
			EntityID:    workspaceID,
			EntityName:  ws.Name,
			WorkspaceID: sel.WorkspaceRef(),
			Old:         countState(result.Removed),
			New:         countState(result.Imported),
			Actor:       actor,
			Note:        "overwrite import",
		})
		if err != nil {
			return err
		}
		result.AuditID = entry.ID
		return nil
	})
	if err != nil {
		r.logger.Warn("workspace import failed", zap.Int64("workspace_id", workspaceID), zap.Error(err))
		return nil, err
	}

	r.logger.Info("workspace data imported",
		zap.Int64("workspace_id", workspaceID),
		zap.Any("imported", result.Imported),
	)
	return result, nil
}

func countState(counts map[string]int64) audit.State {
	st := make(audit.State, len(counts))
	for k, v := range counts {
		st[k] = v
	}
	return st
}

// importer inserts one WorkspaceData payload, tracking id remaps
type importer struct {
	tx     *gorm.DB
	sel    shared.Selector
	userID int64
	counts map[string]int64

	suppliers map[int64]int64
	customers map[int64]int64
	employees map[int64]int64
}

func (im *importer) run(data *WorkspaceData) error {
	im.suppliers = make(map[int64]int64)
	im.customers = make(map[int64]int64)
	im.employees = make(map[int64]int64)

	for i := range data.Suppliers {
		src := data.Suppliers[i]
		row := &partner.Supplier{Party: partner.Party{Name: src.Name, Note: src.Note}}
		if err := im.insert(row, "suppliers"); err != nil {
			return err
		}
		im.suppliers[src.ID] = row.ID
	}
	for i := range data.Customers {
		src := data.Customers[i]
		row := &partner.Customer{Party: partner.Party{Name: src.Name, Note: src.Note}}
		if err := im.insert(row, "customers"); err != nil {
			return err
		}
		im.customers[src.ID] = row.ID
	}
	for i := range data.Employees {
		src := data.Employees[i]
		row := &partner.Employee{Party: partner.Party{Name: src.Name, Note: src.Note}}
		if err := im.insert(row, "employees"); err != nil {
			return err
		}
		im.employees[src.ID] = row.ID
	}
	for i := range data.Products {
		src := data.Products[i]
		row := &catalog.Product{
			Name:        src.Name,
			Description: src.Description,
			Stock:       src.Stock,
			Unit:        catalog.ParseUnit(string(src.Unit)),
			SupplierID:  remap(im.suppliers, src.SupplierID),
			Version:     1,
		}
		if err := im.insert(row, "products"); err != nil {
			return err
		}
	}
	for i := range data.Purchases {
		src := data.Purchases[i]
		row := &trade.Purchase{
			Line:               trade.Line{ProductName: src.ProductName, Quantity: src.Quantity, Note: src.Note},
			PurchaseDate:       src.PurchaseDate,
			SupplierID:         remap(im.suppliers, src.SupplierID),
			TotalPurchasePrice: src.TotalPurchasePrice,
		}
		if err := im.insert(row, "purchases"); err != nil {
			return err
		}
	}
	for i := range data.Sales {
		src := data.Sales[i]
		row := &trade.Sale{
			Line:           trade.Line{ProductName: src.ProductName, Quantity: src.Quantity, Note: src.Note},
			SaleDate:       src.SaleDate,
			CustomerID:     remap(im.customers, src.CustomerID),
			TotalSalePrice: src.TotalSalePrice,
		}
		if err := im.insert(row, "sales"); err != nil {
			return err
		}
	}
	for i := range data.Returns {
		src := data.Returns[i]
		row := &trade.Return{
			Line:             trade.Line{ProductName: src.ProductName, Quantity: src.Quantity, Note: src.Note},
			ReturnDate:       src.ReturnDate,
			CustomerID:       remap(im.customers, src.CustomerID),
			TotalReturnPrice: src.TotalReturnPrice,
		}
		if err := im.insert(row, "returns"); err != nil {
			return err
		}
	}
	for i := range data.Income {
		src := data.Income[i]
		row := &finance.Income{
			IncomeDate:    src.IncomeDate,
			CustomerID:    remap(im.customers, src.CustomerID),
			Amount:        src.Amount,
			Discount:      src.Discount,
			EmployeeID:    remap(im.employees, src.EmployeeID),
			PaymentMethod: paymentOrCash(src.PaymentMethod),
			Note:          src.Note,
		}
		if err := im.insert(row, "income"); err != nil {
			return err
		}
	}
	for i := range data.Remittance {
		src := data.Remittance[i]
		row := &finance.Remittance{
			RemittanceDate: src.RemittanceDate,
			SupplierID:     remap(im.suppliers, src.SupplierID),
			Amount:         src.Amount,
			EmployeeID:     remap(im.employees, src.EmployeeID),
			PaymentMethod:  paymentOrCash(src.PaymentMethod),
			Note:           src.Note,
		}
		if err := im.insert(row, "remittance"); err != nil {
			return err
		}
	}
	return nil
}

func (im *importer) insert(row shared.Scoped, table string) error {
	if err := prepare(row); err != nil {
		return fmt.Errorf("import %s row %d: %w", table, im.counts[table]+1, err)
	}
	row.AssignScope(im.userID, im.sel)
	if err := im.tx.Create(row).Error; err != nil {
		return translate(err, "import "+table)
	}
	im.counts[table]++
	return nil
}

// remap translates a payload reference; zero and unknown ids become nil
func remap(ids map[int64]int64, ref *int64) *int64 {
	if ref == nil || *ref == 0 {
		return nil
	}
	id, ok := ids[*ref]
	if !ok {
		return nil
	}
	return &id
}

func paymentOrCash(m finance.PaymentMethod) finance.PaymentMethod {
	if m.IsValid() {
		return m
	}
	return finance.PaymentCash
}
