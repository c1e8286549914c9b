package cmd

import (
	"context"
	"fmt"

	clientApp "github.com/AzielCF/az-crm/clients/application"
	clientRepo "github.com/AzielCF/az-crm/clients/repository"
	convApp "github.com/AzielCF/az-crm/conversations/application"
	convRepo "github.com/AzielCF/az-crm/conversations/repository"
	coreconfig "github.com/AzielCF/az-crm/core/config"
	coreDB "github.com/AzielCF/az-crm/core/database"
	"github.com/AzielCF/az-crm/infrastructure/evolution"
	"github.com/AzielCF/az-crm/infrastructure/valkey"
	ingestionApp "github.com/AzielCF/az-crm/ingestion/application"
	instanceApp "github.com/AzielCF/az-crm/instances/application"
	instanceDomain "github.com/AzielCF/az-crm/instances/domain"
	instanceRepo "github.com/AzielCF/az-crm/instances/repository"
	"github.com/AzielCF/az-crm/integrations/automation"
	"github.com/AzielCF/az-crm/pkg/msgworker"
	tenantRepo "github.com/AzielCF/az-crm/tenants/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// application holds every wired component of a running process.
type application struct {
	db     *gorm.DB
	valkey *valkey.Client

	tenants   *tenantRepo.TenantGormRepository
	instances *instanceRepo.InstanceGormRepository
	clients   *clientRepo.ClientGormRepository
	messages  *convRepo.MessageGormRepository

	gateway      *evolution.Client
	resolver     *instanceApp.Resolver
	provisioning *instanceApp.ProvisioningService
	clientSvc    *clientApp.ClientResolver
	outbound     *convApp.OutboundService
	pool         *msgworker.Pool
	automation   *automation.AsyncDispatcher
	pipeline     *ingestionApp.Pipeline
}

type initializer interface {
	Init(ctx context.Context) error
}

// openStorage connects the database and migrates every table.
func openStorage(ctx context.Context, c *coreconfig.Config) (*application, error) {
	db, err := coreDB.NewDatabase(c.Database, c.App.Debug)
	if err != nil {
		return nil, err
	}

	a := &application{
		db:        db,
		tenants:   tenantRepo.NewTenantGormRepository(db),
		instances: instanceRepo.NewInstanceGormRepository(db),
		clients:   clientRepo.NewClientGormRepository(db),
		messages:  convRepo.NewMessageGormRepository(db),
	}

	for name, repo := range map[string]initializer{
		"tenants":   a.tenants,
		"instances": a.instances,
		"clients":   a.clients,
		"messages":  a.messages,
	} {
		if err := repo.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate %s: %w", name, err)
		}
	}
	return a, nil
}

// buildApplication wires storage, provider, automation and ingestion.
func buildApplication(ctx context.Context, c *coreconfig.Config) (*application, error) {
	a, err := openStorage(ctx, c)
	if err != nil {
		return nil, err
	}

	a.gateway, err = evolution.NewClient(evolution.Config{
		BaseURL: c.Evolution.BaseURL,
		APIKey:  c.Evolution.APIKey,
		Timeout: c.Evolution.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var (
		cache instanceDomain.TenantCache
		lock  instanceDomain.AllocationLock
	)
	if c.Database.ValkeyEnabled {
		a.valkey, err = valkey.NewClient(valkey.Config{
			Address:   c.Database.ValkeyAddress,
			Password:  c.Database.ValkeyPassword,
			DB:        c.Database.ValkeyDB,
			KeyPrefix: c.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.WithError(err).Warn("[VALKEY] unavailable, continuing without cache")
		} else {
			store := instanceRepo.NewValkeyTenantCache(a.valkey)
			cache, lock = store, store
			logrus.Infof("[VALKEY] connected to %s", c.Database.ValkeyAddress)
		}
	}

	a.resolver = instanceApp.NewResolver(a.tenants, cache, lock)
	reconciler := instanceApp.NewReconciler(a.instances, a.tenants)
	poller := instanceApp.NewPoller(c.Provisioning.PollInterval, c.Provisioning.PollAttempts)
	a.provisioning = instanceApp.NewProvisioningService(
		a.gateway, a.resolver, reconciler, a.instances, a.tenants, poller, c.Evolution.WebhookURL,
	)

	a.clientSvc = clientApp.NewClientResolver(a.clients)
	a.outbound = convApp.NewOutboundService(a.gateway, a.tenants, a.clientSvc, a.messages)

	dispatcher := automation.NewDispatcher(automation.Config{
		WorkflowURL: c.Automation.WorkflowURL,
		Token:       c.Automation.Token,
		Timeout:     c.Automation.Timeout,
	}, a.tenants)
	if !dispatcher.Enabled() {
		logrus.Warn("[AUTOMATION] AUTOMATION_WORKFLOW_URL is empty, inbound messages will not be forwarded")
	}
	a.pool = msgworker.NewPool(c.Automation.Workers, c.Automation.QueueSize)
	a.pool.Start(ctx)
	a.automation = automation.NewAsyncDispatcher(dispatcher, a.pool, c.Automation.Timeout)

	a.pipeline = ingestionApp.NewPipeline(a.resolver, a.clientSvc, a.messages, reconciler, a.automation)
	return a, nil
}

// stop releases background work first, then connections.
func (a *application) stop() {
	logrus.Info("[APP] Stopping application...")
	if a.provisioning != nil {
		a.provisioning.Close()
	}
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.valkey != nil {
		a.valkey.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
