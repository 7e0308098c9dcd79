// Package database manages the pgx connection pool and the schema for
// the snapshot, batch, and change-event tables.
package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Database wraps a pgxpool used by the postgres-backed snapshot store and
// ledger. The management DSN points at a maintenance database (usually
// "postgres") and is only needed for Reset.
type Database struct {
	dsn           string
	managementDsn string
	dbName        string

	Pool *pgxpool.Pool
}

func New(dsn, managementDsn, dbName string) *Database {
	return &Database{dsn: dsn, managementDsn: managementDsn, dbName: dbName}
}

// Connect opens the pool and verifies the connection with a ping.
func (db *Database) Connect(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, db.dsn)
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	db.Pool = pool
	return nil
}

func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// EnsureSchema creates the tables and indexes if they do not exist. Safe
// to run on every startup.
func (db *Database) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Reset drops and recreates the application database, then applies the
// schema. Destructive; meant for dbinit and test environments only.
func (db *Database) Reset(ctx context.Context) error {
	mgmt, err := pgxpool.New(ctx, db.managementDsn)
	if err != nil {
		return fmt.Errorf("open management pool: %w", err)
	}
	defer mgmt.Close()

	if _, err := mgmt.Exec(ctx, fmt.Sprintf(`DROP DATABASE IF EXISTS %q`, db.dbName)); err != nil {
		return fmt.Errorf("drop database %s: %w", db.dbName, err)
	}
	if _, err := mgmt.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %q`, db.dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", db.dbName, err)
	}

	if db.Pool != nil {
		db.Pool.Close()
		db.Pool = nil
	}
	if err := db.Connect(ctx); err != nil {
		return err
	}
	return db.EnsureSchema(ctx)
}
