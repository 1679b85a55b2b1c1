package config

import (
	"context"
	"strings"

	"github.com/symphonia/tms_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrgGuardPlugin enforces multi-organization isolation by automatically scoping
// queries/updates/deletes to the request's organization_id when the model has an
// organization_id column.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include organization_id manually.
// - Background jobs that sweep all organizations bypass explicitly via context flags.
type OrgGuardPlugin struct{}

func NewOrgGuardPlugin() *OrgGuardPlugin { return &OrgGuardPlugin{} }

func (p *OrgGuardPlugin) Name() string { return "org_guard" }

func (p *OrgGuardPlugin) Initialize(db *gorm.DB) error {
	// Query
	if err := db.Callback().Query().Before("gorm:query").Register("org_guard:query", orgGuardCallback); err != nil {
		return err
	}
	// Row (First/Take)
	if err := db.Callback().Row().Before("gorm:row").Register("org_guard:row", orgGuardCallback); err != nil {
		return err
	}
	// Update
	if err := db.Callback().Update().Before("gorm:update").Register("org_guard:update", orgGuardCallback); err != nil {
		return err
	}
	// Delete
	if err := db.Callback().Delete().Before("gorm:delete").Register("org_guard:delete", orgGuardCallback); err != nil {
		return err
	}
	return nil
}

func orgGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassOrgScope(ctx) {
		return
	}
	orgID := organizationIdFromContext(ctx)
	if orgID == "" {
		return
	}

	// Only apply if the current model/table includes an organization_id column.
	if db.Statement.Schema == nil {
		return
	}
	hasOrgID := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "organization_id") {
			hasOrgID = true
			break
		}
	}
	if !hasOrgID {
		return
	}

	// Don't duplicate an explicit org filter.
	if whereHasOrgID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "organization_id"},
				Value:  orgID,
			},
		},
	})
}

func organizationIdFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(appctx.ContextKeyOrganizationId).(string); ok && v != "" {
		return v
	}
	return ""
}

func shouldBypassOrgScope(ctx context.Context) bool {
	if v, ok := ctx.Value(appctx.ContextKeySkipOrgScope).(bool); ok && v {
		return true
	}
	if v, ok := ctx.Value(appctx.ContextKeyIsAdmin).(bool); ok && v {
		return true
	}
	return false
}

func whereHasOrgID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasOrgID(e) {
			return true
		}
	}
	return false
}

func exprHasOrgID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsOrgID(v.Column)
	case clause.Neq:
		return colIsOrgID(v.Column)
	case clause.Gt:
		return colIsOrgID(v.Column)
	case clause.Gte:
		return colIsOrgID(v.Column)
	case clause.Lt:
		return colIsOrgID(v.Column)
	case clause.Lte:
		return colIsOrgID(v.Column)
	case clause.IN:
		return colIsOrgID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasOrgID(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasOrgID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "organization_id")
	default:
		return false
	}
}

func colIsOrgID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "organization_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "organization_id")
	default:
		return false
	}
}
