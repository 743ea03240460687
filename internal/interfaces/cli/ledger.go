package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/erp/ledgerstore/internal/application/ledger"
	"github.com/erp/ledgerstore/internal/domain/audit"
	"github.com/erp/ledgerstore/internal/domain/catalog"
	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/erp/ledgerstore/internal/domain/trade"
	"github.com/erp/ledgerstore/internal/domain/workspace"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func workspaceFlag(cmd *cobra.Command, id *int64) {
	cmd.PersistentFlags().Int64VarP(id, "workspace", "w", 0, "workspace id")
	_ = cmd.MarkPersistentFlagRequired("workspace")
}

func newProductCommand(a *app) *cobra.Command {
	var wsID int64
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage products in a workspace",
	}
	workspaceFlag(cmd, &wsID)

	var unit, stock, description string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseDecimal("stock", stock)
			if err != nil {
				return err
			}
			p, err := catalog.NewProduct(args[0], catalog.Unit(unit), qty)
			if err != nil {
				return err
			}
			p.Description = description
			return a.mutate(cmd, wsID, workspace.PermCreate, func(svc *ledger.Service, sess ledger.Session) (*ledger.Result, error) {
				return svc.Create(cmd.Context(), sess, p)
			})
		},
	}
	add.Flags().StringVar(&unit, "unit", string(catalog.DefaultUnit), "unit of measure")
	add.Flags().StringVar(&stock, "stock", "0", "opening stock")
	add.Flags().StringVar(&description, "description", "", "product description")

	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := svc.Authorize(cmd.Context(), a.actor(), wsID, workspace.PermRead); err != nil {
				return err
			}
			repos, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			page, err := repos.Products.QueryAll(cmd.Context(), shared.Workspace(wsID), shared.Filter{Search: search, OrderBy: "name"})
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), page, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tNAME\tSTOCK\tUNIT\tVERSION")
				for _, p := range page.Items {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Stock, p.Unit, p.Version)
				}
			})
		},
	}
	list.Flags().StringVar(&search, "search", "", "match name or description")

	var delta string
	var expected int
	adjust := &cobra.Command{
		Use:   "adjust <id>",
		Short: "Change a product's stock under its version guard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, err := parseDecimal("delta", delta)
			if err != nil {
				return err
			}
			return a.mutate(cmd, wsID, workspace.PermUpdate, func(svc *ledger.Service, sess ledger.Session) (*ledger.Result, error) {
				return svc.AdjustStock(cmd.Context(), sess, id, expected, d)
			})
		},
	}
	adjust.Flags().StringVar(&delta, "delta", "", "signed stock change")
	adjust.Flags().IntVar(&expected, "expect-version", 0, "version the change is based on")
	_ = adjust.MarkFlagRequired("delta")
	_ = adjust.MarkFlagRequired("expect-version")

	cmd.AddCommand(add, list, adjust)
	return cmd
}

type movementFlags struct {
	total string
	date  string
	note  string
}

func newRecordCommand(a *app) *cobra.Command {
	var wsID int64
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record stock movements",
	}
	workspaceFlag(cmd, &wsID)

	kinds := []struct {
		use   string
		short string
		build func(product string, qty decimal.Decimal, date time.Time, total decimal.Decimal) (shared.Scoped, error)
	}{
		{"purchase", "Record goods bought; a negative quantity returns goods to the supplier",
			func(p string, q decimal.Decimal, d time.Time, t decimal.Decimal) (shared.Scoped, error) {
				return trade.NewPurchase(p, q, d, nil, t)
			}},
		{"sale", "Record goods sold",
			func(p string, q decimal.Decimal, d time.Time, t decimal.Decimal) (shared.Scoped, error) {
				return trade.NewSale(p, q, d, nil, t)
			}},
		{"return", "Record goods returned by a customer",
			func(p string, q decimal.Decimal, d time.Time, t decimal.Decimal) (shared.Scoped, error) {
				return trade.NewReturn(p, q, d, nil, t)
			}},
	}

	for _, k := range kinds {
		k := k
		f := &movementFlags{}
		sub := &cobra.Command{
			Use:   k.use + " <product> <quantity>",
			Short: k.short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				qty, err := parseDecimal("quantity", args[1])
				if err != nil {
					return err
				}
				total, err := parseDecimal("total", f.total)
				if err != nil {
					return err
				}
				date := time.Now().UTC().Truncate(24 * time.Hour)
				if f.date != "" {
					if date, err = time.Parse(dateLayout, f.date); err != nil {
						return shared.WrapDomainError(shared.CodeInvalidInput, "parse date", err)
					}
				}
				rec, err := k.build(args[0], qty, date, total)
				if err != nil {
					return err
				}
				setNote(rec, f.note)
				return a.mutate(cmd, wsID, workspace.PermCreate, func(svc *ledger.Service, sess ledger.Session) (*ledger.Result, error) {
					return svc.Create(cmd.Context(), sess, rec)
				})
			},
		}
		sub.Flags().StringVar(&f.total, "total", "0", "total price")
		sub.Flags().StringVar(&f.date, "date", "", "date as YYYY-MM-DD, default today")
		sub.Flags().StringVar(&f.note, "note", "", "free text note")
		cmd.AddCommand(sub)
	}

	var kind string
	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record, reversing its stock effect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.mutate(cmd, wsID, workspace.PermDelete, func(svc *ledger.Service, sess ledger.Session) (*ledger.Result, error) {
				return svc.Delete(cmd.Context(), sess, audit.EntityKind(kind), id)
			})
		},
	}
	del.Flags().StringVar(&kind, "kind", "", "entity kind (purchase, sale, return, product, ...)")
	_ = del.MarkFlagRequired("kind")
	cmd.AddCommand(del)
	return cmd
}

func setNote(rec shared.Scoped, note string) {
	switch v := rec.(type) {
	case *trade.Purchase:
		v.Note = note
	case *trade.Sale:
		v.Note = note
	case *trade.Return:
		v.Note = note
	}
}

// mutate runs fn in a session for wsID once the actor's role grants perm,
// and renders the result
func (a *app) mutate(cmd *cobra.Command, wsID int64, perm workspace.Permission, fn func(*ledger.Service, ledger.Session) (*ledger.Result, error)) error {
	svc, err := a.service(cmd.Context())
	if err != nil {
		return err
	}
	if _, err := svc.Authorize(cmd.Context(), a.actor(), wsID, perm); err != nil {
		return err
	}
	res, err := fn(svc, a.session(wsID))
	if err != nil {
		return err
	}
	return a.render(cmd.OutOrStdout(), res, func(tw *tabwriter.Writer) {
		if e, ok := res.Entity.(shared.Scoped); ok {
			fmt.Fprintf(tw, "%s\t%d\n", e.TableName(), e.GetID())
		}
		for _, c := range res.Stock {
			fmt.Fprintf(tw, "stock %s\t%s -> %s\tv%d\n", c.ProductName, c.Before, c.After, c.Version)
		}
	})
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, shared.WrapDomainError(shared.CodeInvalidInput, "parse "+field, err)
	}
	return d, nil
}

func newHistoryCommand(a *app) *cobra.Command {
	var (
		wsID   int64
		legacy bool
		q      audit.Query
		op     string
		entity string
		from   string
		to     string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := a.session(wsID)
			if legacy {
				sess.Selector = shared.Unscoped()
			}
			q.Operation = audit.OperationKind(op)
			q.Entity = audit.EntityKind(entity)
			var err error
			if q.From, err = parseOptionalDate(from); err != nil {
				return err
			}
			if q.To, err = parseOptionalDate(to); err != nil {
				return err
			}
			if !q.To.IsZero() {
				q.To = q.To.Add(24*time.Hour - time.Nanosecond)
			}

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			page, err := svc.History(cmd.Context(), sess, q)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), page, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tTIME\tUSER\tOPERATION\tENTITY\tNAME")
				for _, e := range page.Items {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", e.ID,
						e.OperationTime.Format(time.RFC3339), e.Username, e.OperationType, e.EntityType, e.EntityName)
				}
				fmt.Fprintf(tw, "page %d/%d\t%d entries\n", page.Page, page.TotalPages, page.Total)
			})
		},
	}
	cmd.Flags().Int64VarP(&wsID, "workspace", "w", 0, "workspace id")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "show entries written before workspaces existed")
	cmd.Flags().StringVar(&op, "operation", "", "CREATE, UPDATE, DELETE or COVER")
	cmd.Flags().StringVar(&entity, "entity", "", "entity kind")
	cmd.Flags().StringVar(&q.Search, "search", "", "match entity name or note")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", 20, "entries per page")
	cmd.MarkFlagsMutuallyExclusive("workspace", "legacy")
	cmd.MarkFlagsOneRequired("workspace", "legacy")
	return cmd
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, shared.WrapDomainError(shared.CodeInvalidInput, "parse date", err)
	}
	return t, nil
}
