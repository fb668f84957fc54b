// Package access decides whether a principal may read a document or an
// application. There are two roles: the applicant who owns the application
// and admins listed in the admin registry. Every decision is recomputed
// from the stores; nothing is cached.
package access

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
)

var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "merchantdesk_access_decisions_total",
		Help: "Access decisions by verdict.",
	},
	[]string{"verdict"},
)

// Verdict is the outcome of a decision.
type Verdict string

const (
	Allow Verdict = "allow"
	// DenyNotFound: the owning application does not exist.
	DenyNotFound Verdict = "not_found"
	// DenyForbidden: the principal is neither the owner nor an admin.
	DenyForbidden Verdict = "forbidden"
)

func (v Verdict) Allowed() bool { return v == Allow }

// AdminChecker answers whether an email is in the admin registry.
// admins.Repository satisfies it.
type AdminChecker interface {
	Exists(ctx context.Context, email string) (bool, error)
}

type Decider struct {
	admins AdminChecker
}

func NewDecider(admins AdminChecker) *Decider {
	return &Decider{admins: admins}
}

// IsAdmin reports whether the principal's email is registered. A principal
// without an email is never an admin.
func (d *Decider) IsAdmin(ctx context.Context, p *models.Principal) (bool, error) {
	if p == nil || p.Email == "" {
		return false, nil
	}
	ok, err := d.admins.Exists(ctx, p.Email)
	if err != nil {
		return false, fmt.Errorf("admin lookup: %w", err)
	}
	return ok, nil
}

// Decide rules on reading doc. A nil doc means the document or its owning
// application could not be resolved. The error is non-nil only when the
// admin registry could not be consulted; the verdict is then DenyForbidden.
func (d *Decider) Decide(ctx context.Context, p *models.Principal, doc *models.DocumentWithOwner) (Verdict, error) {
	if doc == nil {
		return d.record(DenyNotFound, nil)
	}
	return d.decide(ctx, p, doc.ApplicantID)
}

// DecideApplication applies the same rule to an application record.
func (d *Decider) DecideApplication(ctx context.Context, p *models.Principal, app *models.Application) (Verdict, error) {
	if app == nil {
		return d.record(DenyNotFound, nil)
	}
	return d.decide(ctx, p, app.ApplicantID)
}

func (d *Decider) decide(ctx context.Context, p *models.Principal, applicantID string) (Verdict, error) {
	if p == nil {
		return d.record(DenyForbidden, nil)
	}
	if p.ID != "" && p.ID == applicantID {
		return d.record(Allow, nil)
	}

	admin, err := d.IsAdmin(ctx, p)
	if err != nil {
		return d.record(DenyForbidden, err)
	}
	if admin {
		return d.record(Allow, nil)
	}
	return d.record(DenyForbidden, nil)
}

func (d *Decider) record(v Verdict, err error) (Verdict, error) {
	label := string(v)
	if err != nil {
		label = "error"
	}
	decisionsTotal.WithLabelValues(label).Inc()
	return v, err
}
