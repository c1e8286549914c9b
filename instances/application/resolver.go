package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/AzielCF/az-crm/instances/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	tenantDomain "github.com/AzielCF/az-crm/tenants/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	instanceIDPrefix  = "crm-"
	allocationLockTTL = 15 * time.Second
)

// Resolver maps provider instance ids to tenants and allocates ids for new tenants.
type Resolver struct {
	tenants tenantDomain.TenantRepository
	cache   domain.TenantCache    // optional
	lock    domain.AllocationLock // optional
	now     func() time.Time
}

func NewResolver(tenants tenantDomain.TenantRepository, cache domain.TenantCache, lock domain.AllocationLock) *Resolver {
	return &Resolver{
		tenants: tenants,
		cache:   cache,
		lock:    lock,
		now:     time.Now,
	}
}

// ResolveTenant returns the owning tenant id, or a *ResolutionError.
func (r *Resolver) ResolveTenant(ctx context.Context, instanceID string) (string, error) {
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return "", &pkgError.ResolutionError{Kind: "tenant", Key: instanceID}
	}

	if r.cache != nil {
		if tenantID, ok := r.cache.GetTenantID(ctx, instanceID); ok {
			return tenantID, nil
		}
	}

	tenant, err := r.tenants.GetByInstanceID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, tenantDomain.ErrTenantNotFound) {
			return "", &pkgError.ResolutionError{Kind: "tenant", Key: instanceID}
		}
		return "", &pkgError.PersistenceError{Op: "resolve tenant for " + instanceID, Err: err}
	}

	if r.cache != nil {
		r.cache.SetTenantID(ctx, instanceID, tenant.ID)
	}
	return tenant.ID, nil
}

// Forget drops a cached mapping.
func (r *Resolver) Forget(ctx context.Context, instanceID string) {
	if r.cache != nil && instanceID != "" {
		r.cache.Forget(ctx, instanceID)
	}
}

// EnsureInstanceID returns the tenant's instance id, generating and persisting one if missing.
// The tenant row is re-read right before the write, and the write only lands on a null id.
func (r *Resolver) EnsureInstanceID(ctx context.Context, tenantID string) (string, error) {
	tenant, err := r.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if tenant.InstanceID != "" {
		return tenant.InstanceID, nil
	}

	if r.lock != nil {
		release, acquired, err := r.lock.Acquire(ctx, tenantID, allocationLockTTL)
		switch {
		case err != nil:
			logrus.WithError(err).Warnf("[INSTANCE] allocation lock unavailable for tenant %s, continuing without it", tenantID)
		case acquired:
			defer release()
		default:
			logrus.Infof("[INSTANCE] another allocation for tenant %s is in flight", tenantID)
		}
	}

	candidate := DeriveInstanceID(tenant, r.now())

	fresh, err := r.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if fresh.InstanceID != "" {
		return fresh.InstanceID, nil
	}

	assigned, err := r.tenants.AssignInstanceID(ctx, tenantID, candidate)
	if errors.Is(err, tenantDomain.ErrInstanceIDTaken) {
		candidate = fmt.Sprintf("%s-%d", candidate, r.now().Unix())
		logrus.Warnf("[INSTANCE] derived id taken by another tenant, retrying with %s", candidate)
		assigned, err = r.tenants.AssignInstanceID(ctx, tenantID, candidate)
	}
	if err != nil {
		return "", &pkgError.PersistenceError{Op: "assign instance id", Err: err}
	}

	if !assigned {
		// Lost the race: someone else wrote an id between our re-check and the write.
		winner, err := r.tenants.GetByID(ctx, tenantID)
		if err != nil {
			return "", err
		}
		if winner.InstanceID == "" {
			return "", &pkgError.PersistenceError{Op: "assign instance id", Err: errors.New("instance id was not persisted")}
		}
		return winner.InstanceID, nil
	}

	logrus.Infof("[INSTANCE] allocated instance id %s for tenant %s", candidate, tenantID)
	return candidate, nil
}

// DeriveInstanceID builds a deterministic id from the slug, then the name,
// and finally falls back to a timestamped placeholder.
func DeriveInstanceID(tenant *tenantDomain.Tenant, now time.Time) string {
	if s := sanitizeIdentifier(tenant.Slug); s != "" {
		return instanceIDPrefix + s
	}
	if s := sanitizeIdentifier(tenant.Name); s != "" {
		return instanceIDPrefix + s
	}
	return fmt.Sprintf("%stenant-%d", instanceIDPrefix, now.Unix())
}

// sanitizeIdentifier folds accents, lowercases and collapses every run of
// non-alphanumerics into one '-'. "Clínica São João" -> "clinica-sao-joao".
func sanitizeIdentifier(raw string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), raw)
	if err != nil {
		folded = raw
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(folded)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingSep = false
			continue
		}
		pendingSep = true
	}
	return b.String()
}
