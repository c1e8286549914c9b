package application

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-crm/instances/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	tenantDomain "github.com/AzielCF/az-crm/tenants/domain"
	"github.com/sirupsen/logrus"
)

// Reconciler is the only writer of connection state. Each call upserts the instance
// record and then, independently, the tenant flag; a failed half converges on the next call.
type Reconciler struct {
	instances domain.InstanceRepository
	tenants   tenantDomain.TenantRepository
	now       func() time.Time
}

func NewReconciler(instances domain.InstanceRepository, tenants tenantDomain.TenantRepository) *Reconciler {
	return &Reconciler{
		instances: instances,
		tenants:   tenants,
		now:       time.Now,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, obs domain.Observation) (*domain.InstanceRecord, error) {
	log := logrus.WithFields(logrus.Fields{
		"tenant_id":   obs.TenantID,
		"instance_id": obs.InstanceID,
		"state":       obs.State,
		"error_kind":  obs.ErrorKind,
		"source":      obs.Source,
	})

	current, err := r.current(ctx, obs)
	if err != nil {
		return nil, &pkgError.PersistenceError{Op: "load instance record", Err: err}
	}

	// A failed probe says nothing about the session.
	if obs.ErrorKind == domain.ErrorKindError && !obs.Reset {
		log.Debug("[RECONCILER] transient gateway failure, keeping stored state")
		return current, nil
	}

	next := Transition(*current, obs, r.now().UTC())

	var errs []error
	if next.InstanceID != "" {
		if err := r.instances.Upsert(ctx, &next); err != nil {
			errs = append(errs, &pkgError.PersistenceError{Op: "upsert instance record", Err: err})
		}
	}
	if err := r.syncTenant(ctx, next, obs.Reset); err != nil {
		errs = append(errs, err)
	}

	if current.Status != next.Status {
		log.Infof("[RECONCILER] %s -> %s", current.Status, next.Status)
	}
	return &next, errors.Join(errs...)
}

func (r *Reconciler) current(ctx context.Context, obs domain.Observation) (*domain.InstanceRecord, error) {
	fresh := &domain.InstanceRecord{
		InstanceID: obs.InstanceID,
		TenantID:   obs.TenantID,
		Status:     domain.StatusDisconnected,
	}
	if obs.InstanceID == "" {
		return fresh, nil
	}
	record, err := r.instances.GetByInstanceID(ctx, obs.InstanceID)
	if errors.Is(err, domain.ErrInstanceNotFound) {
		return fresh, nil
	}
	return record, err
}

// syncTenant sets the flag on open and clears it on closed states, writing only when it differs.
func (r *Reconciler) syncTenant(ctx context.Context, next domain.InstanceRecord, force bool) error {
	if next.TenantID == "" {
		return nil
	}

	var connected bool
	var phone string
	switch next.Status {
	case domain.StatusOpen:
		connected, phone = true, next.PhoneNumber
	case domain.StatusDisconnected, domain.StatusError:
		connected, phone = false, ""
	default:
		return nil
	}

	tenant, err := r.tenants.GetByID(ctx, next.TenantID)
	if err != nil {
		return &pkgError.PersistenceError{Op: "load tenant", Err: err}
	}
	if !force && tenant.Connected == connected && tenant.ConnectedPhone == phone {
		return nil
	}
	if err := r.tenants.UpdateConnection(ctx, next.TenantID, connected, phone); err != nil {
		return &pkgError.PersistenceError{Op: "update tenant connection", Err: err}
	}
	return nil
}

// Transition applies one observation to the stored record.
//
//	reset                 -> disconnected, QR and phone cleared
//	not_found             -> error, QR cleared so the next attempt starts fresh
//	open                  -> open, QR cleared
//	connecting (+QR)      -> connecting, QR replaced when one is given
//	close                 -> disconnected; a QR issued while connecting is kept
func Transition(current domain.InstanceRecord, obs domain.Observation, now time.Time) domain.InstanceRecord {
	next := current
	if obs.TenantID != "" {
		next.TenantID = obs.TenantID
	}
	if obs.InstanceID != "" {
		next.InstanceID = obs.InstanceID
	}
	wasOpen := current.Status == domain.StatusOpen

	switch {
	case obs.Reset:
		next.Status = domain.StatusDisconnected
		next.QRCode = ""
		next.PhoneNumber = ""
		next.DisconnectedAt = &now

	case obs.ErrorKind == domain.ErrorKindNotFound:
		next.Status = domain.StatusError
		next.QRCode = ""
		if wasOpen {
			next.PhoneNumber = ""
			next.DisconnectedAt = &now
		}

	case obs.State == domain.StateOpen:
		next.Status = domain.StatusOpen
		next.QRCode = ""
		if obs.Phone != "" {
			next.PhoneNumber = obs.Phone
		}
		if !wasOpen {
			next.ConnectedAt = &now
		}

	case obs.State == domain.StateConnecting:
		next.Status = domain.StatusConnecting
		if obs.QRCode != "" {
			next.QRCode = obs.QRCode
		}

	case obs.State == domain.StateClose:
		if current.Status != domain.StatusConnecting {
			next.QRCode = ""
		}
		next.Status = domain.StatusDisconnected
		next.PhoneNumber = ""
		if wasOpen {
			next.DisconnectedAt = &now
		}
	}
	return next
}
