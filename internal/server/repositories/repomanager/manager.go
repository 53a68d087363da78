package repomanager

import (
	"context"
	"database/sql"

	"framevault/internal/dbx"
	"framevault/internal/server/repositories/assets"
	"framevault/internal/server/repositories/invites"
	"framevault/internal/server/repositories/members"
	"framevault/internal/server/repositories/users"
	"framevault/internal/server/repositories/workspaces"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Workspaces(db dbx.DBTX) workspaces.Repository
	Members(db dbx.DBTX) members.Repository
	Assets(db dbx.DBTX) assets.Repository
	Invites(db dbx.DBTX) invites.Repository
}
