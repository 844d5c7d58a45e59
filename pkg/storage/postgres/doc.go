// Package postgres stores users in PostgreSQL through lib/pq.
//
// ConnectionManager owns the primary handle and any read replicas. Writes
// always use the primary; reads round-robin over healthy replicas and fall
// back to the primary when none are configured.
//
//	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
//		PrimaryURL:  cfg.PostgresURL,
//		ReplicaURLs: cfg.ReplicaURLs(),
//		MaxConns:    cfg.PostgresMaxConns,
//		MinConns:    cfg.PostgresMinConns,
//		Timeout:     cfg.PostgresTimeout,
//	}, logger)
//	store := postgres.NewUserStore(cm, logger)
//	err = store.Migrate(ctx)
package postgres
