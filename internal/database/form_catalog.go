package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Saiid2001/login-security-landscape/internal/domain"
)

// FormCatalog implements domain.FormCatalog over the login_forms table
// written by the crawler subsystem. Read-only from this service.
type FormCatalog struct {
	pool *pgxpool.Pool
}

func NewFormCatalog(pool *pgxpool.Pool) *FormCatalog {
	return &FormCatalog{pool: pool}
}

// BestLoginForm prefers a form that already succeeded for the site,
// falls back to any form for the site, and returns nil when the catalog
// has nothing.
func (c *FormCatalog) BestLoginForm(ctx context.Context, site string) (*domain.LoginForm, error) {
	form, err := c.lookup(ctx, site, true)
	if err != nil {
		return nil, err
	}
	if form != nil {
		return form, nil
	}
	return c.lookup(ctx, site, false)
}

func (c *FormCatalog) lookup(ctx context.Context, site string, successOnly bool) (*domain.LoginForm, error) {
	query := `SELECT id, site, form_url, success FROM login_forms WHERE site = $1`
	if successOnly {
		query += ` AND success`
	}
	query += ` ORDER BY id LIMIT 1`

	var form domain.LoginForm
	err := c.pool.QueryRow(ctx, query, site).Scan(&form.ID, &form.Site, &form.FormURL, &form.Success)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up login form: %w", err)
	}
	return &form, nil
}
