package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/config"
	"github.com/sysfr3ak/archive-sys/internal/db"
	"github.com/sysfr3ak/archive-sys/internal/logging"
	"github.com/sysfr3ak/archive-sys/internal/user"
	"golang.org/x/term"
	"gorm.io/gorm"
)

// session is an open config + database pair for one command run.
type session struct {
	cfg *config.Config
	db  *gorm.DB
	log *slog.Logger
}

// loadConfig reads the config file. A missing file at the default path
// falls back to built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return config.Default()
	}
	return nil, fmt.Errorf("load config: %w", err)
}

func (o *rootOpts) open(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	gormDB, err := db.Connect(cfg.Database, false)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Database.Driver, err)
	}
	return &session{cfg: cfg, db: gormDB, log: logger}, nil
}

func (s *session) close() {
	db.Close(s.db)
}

// actor resolves the --as user and checks it holds perm.
func (s *session) actor(o *rootOpts, perm access.Permission) (access.Actor, error) {
	username := strings.TrimSpace(o.as)
	if username == "" {
		return access.Actor{}, fmt.Errorf("--as (or ARCHIVE_USER) is required for this command")
	}
	u, err := user.GetByUsername(s.db, username)
	if err != nil {
		return access.Actor{}, err
	}
	a := access.Actor{ID: u.ID, Name: u.FullName, Role: access.Role(u.Role)}
	if err := access.Authorize(a, perm); err != nil {
		return access.Actor{}, fmt.Errorf("%s (%s): %w", u.Username, u.Role, err)
	}
	return a, nil
}

// confirm asks the user to type "yes". It refuses to prompt when stdin is a
// file descriptor that is not a terminal.
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return false, fmt.Errorf("stdin is not a terminal; pass --yes to confirm")
	}

	fmt.Fprintln(out, prompt)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")
	return readYes(in), nil
}

func readYes(in io.Reader) bool {
	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
