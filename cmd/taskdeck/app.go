package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tmarchal/taskdeck/internal/auth"
	"github.com/tmarchal/taskdeck/internal/config"
	"github.com/tmarchal/taskdeck/internal/crypto"
	"github.com/tmarchal/taskdeck/internal/metrics"
	"github.com/tmarchal/taskdeck/internal/rest"
	"github.com/tmarchal/taskdeck/internal/session"
	"github.com/tmarchal/taskdeck/internal/task"
	"github.com/tmarchal/taskdeck/internal/team"
	"github.com/tmarchal/taskdeck/internal/wire"
)

// app wires the client stack: config, session, REST client, stores, metrics.
type app struct {
	cfg       *config.Config
	sessions  *session.Manager
	client    *rest.Client
	metrics   *metrics.Metrics
	authStore *auth.Store
	taskStore *task.Store
	teamStore *team.Store
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	cipher := crypto.NewCipher(cfg.Session.Passphrase)
	sessions := session.NewManager(cfg.Session.File, cipher)
	client := rest.NewClient(cfg.API.BaseURL, cfg.API.Timeout, cfg.API.MaxResponseSize, sessions)

	m := metrics.New()
	client.SetMetrics(m)

	authStore := auth.NewStore(client, sessions)
	authStore.SetMetrics(m)

	taskStore := task.NewStore(client, task.Options{
		EnforceTeamMembership: cfg.Assignment.EnforceTeamMembership,
	})
	taskStore.SetMetrics(m)

	teamStore := team.NewStore(client)
	teamStore.SetMetrics(m)

	// The two stores cross-reference through narrow interfaces: team deletion
	// cascades into cached tasks, assignment policy consults team membership.
	teamStore.SetTaskCascader(taskStore)
	taskStore.SetMembershipChecker(teamStore)

	return &app{
		cfg:       cfg,
		sessions:  sessions,
		client:    client,
		metrics:   m,
		authStore: authStore,
		taskStore: taskStore,
		teamStore: teamStore,
	}, nil
}

// requireAuth restores the persisted session and fails if none is active.
func (a *app) requireAuth(ctx context.Context) error {
	if err := a.authStore.Init(ctx); err != nil {
		return err
	}
	if !a.authStore.IsAuthenticated() {
		return fmt.Errorf("not logged in; run \"taskdeck login\" first")
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseIDArg parses a single id argument.
func parseIDArg(s string) (wire.ID, error) {
	return wire.ParseID(s)
}

// parseIDList parses a comma-separated or space-separated list of ids.
func parseIDList(args []string) ([]wire.ID, error) {
	var out []wire.ID
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := wire.ParseID(part)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		}
	}
	return out, nil
}
