// internal/authz/authz.go
package authz

import (
	"context"
	"os"

	"github.com/open-policy-agent/opa/rego"
	"go.uber.org/zap"

	"appmonitor/pkg/companies"
)

// defaultPolicy grants company management to platform admins and to
// company admins of the company in question.
const defaultPolicy = `package appmonitor.authz

default allow = false

allow {
	input.user.is_admin
}

allow {
	input.user.role == "admin"
	input.user.company_id == input.company_id
}
`

// Authorizer answers company-management questions by evaluating a Rego
// policy. Evaluation errors deny.
type Authorizer struct {
	query rego.PreparedEvalQuery
	log   *zap.SugaredLogger
}

// New compiles the policy (from policyFile when set, else the built-in
// default) and prepares it for evaluation.
func New(policyFile string, log *zap.SugaredLogger) (*Authorizer, error) {
	src := defaultPolicy
	if policyFile != "" {
		b, err := os.ReadFile(policyFile)
		if err != nil {
			return nil, err
		}
		src = string(b)
	}
	q, err := rego.New(
		rego.Query("data.appmonitor.authz.allow"),
		rego.Module("authz.rego", src),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, err
	}
	return &Authorizer{query: q, log: log}, nil
}

// CanManageCompany reports whether user may manage the given company.
func (a *Authorizer) CanManageCompany(ctx context.Context, user companies.User, companyID string) bool {
	input := map[string]any{
		"company_id": companyID,
		"user": map[string]any{
			"id":         user.ID,
			"company_id": user.CompanyID,
			"role":       user.Role,
			"is_admin":   user.IsAdmin,
		},
	}
	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		a.log.Warnw("authz eval failed", "err", err)
		return false
	}
	return rs.Allowed()
}
