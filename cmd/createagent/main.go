// Command createagent registers an agent directly in Postgres. It is how the first
// admin is created, since POST /v1/agents itself requires an admin token.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"callcenter/internal/agents"
	"callcenter/internal/config"
	"callcenter/internal/rbac"
	"callcenter/pkg/logger"
	"callcenter/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var (
		name      = flag.String("name", "", "display name")
		email     = flag.String("email", "", "login email")
		password  = flag.String("password", "", "login password (or CREATEAGENT_PASSWORD)")
		extension = flag.String("extension", "", "softphone extension / client identity")
		role      = flag.String("role", rbac.RoleAgent, "agent, supervisor or admin")
		skills    = flag.String("skills", "", "comma separated skills")
	)
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("CREATEAGENT_PASSWORD")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	store := agents.NewPostgresRepo(db)
	svc := agents.NewService(store, agents.NewTracker(store, nil))

	a, err := svc.Create(ctx, agents.CreateRequest{
		Name:      *name,
		Email:     *email,
		Password:  *password,
		Extension: *extension,
		Skills:    splitList(*skills),
		Role:      *role,
	})
	if err != nil {
		log.Error("create agent failed", "err", err)
		os.Exit(1)
	}
	fmt.Printf("created agent %s (%s, %s)\n", a.ID, a.Email, a.Role)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
