// Command chatctl seeds users and groups and mints development identity
// tokens against the configured store.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/sarthak03dot/Chat-App/internal/config"
	"github.com/sarthak03dot/Chat-App/internal/domain"
	"github.com/sarthak03dot/Chat-App/internal/security"
	"github.com/sarthak03dot/Chat-App/internal/service"
	"github.com/sarthak03dot/Chat-App/internal/store"
	"github.com/sarthak03dot/Chat-App/internal/store/sqlstore"
)

const usage = `usage: chatctl [--config file] <command> [flags]

commands:
  user add <username> [--profile url]
  user list
  group add --name <name> --creator <user> [--member <user>]...
  token --user <user> [--ttl 24h]

<user> is a user id or username.
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "chatctl: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	users  *service.UserService
	groups *service.GroupService
	out    io.Writer
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := pflag.NewFlagSet("chatctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	configPath := global.StringP("config", "c", "", "path to a YAML config file")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(args); err != nil {
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	userRepo := sqlstore.NewUserRepo(db)
	a := &app{
		cfg:    cfg,
		users:  service.NewUserService(userRepo),
		groups: service.NewGroupService(sqlstore.NewGroupRepo(db), userRepo),
		out:    out,
	}

	switch {
	case match(rest, "user", "add"):
		return a.userAdd(ctx, rest[2:])
	case match(rest, "user", "list"):
		return a.userList(ctx)
	case match(rest, "group", "add"):
		return a.groupAdd(ctx, rest[2:])
	case match(rest, "token"):
		return a.token(ctx, rest[1:])
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func match(args []string, words ...string) bool {
	if len(args) < len(words) {
		return false
	}
	for i, w := range words {
		if args[i] != w {
			return false
		}
	}
	return true
}

func (a *app) userAdd(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("user add", pflag.ContinueOnError)
	profile := fs.String("profile", "", "profile picture URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("user add takes exactly one username")
	}

	var p *string
	if *profile != "" {
		p = profile
	}
	u, err := a.users.Create(ctx, fs.Arg(0), p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\n", u.ID, u.Username)
	return nil
}

func (a *app) userList(ctx context.Context) error {
	users, err := a.users.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Fprintf(a.out, "%s\t%s\n", u.ID, u.Username)
	}
	return nil
}

func (a *app) groupAdd(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("group add", pflag.ContinueOnError)
	name := fs.String("name", "", "group name")
	creator := fs.String("creator", "", "creating user")
	members := fs.StringSlice("member", nil, "additional member (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	creatorID, err := a.lookup(ctx, *creator)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(*members))
	for _, m := range *members {
		id, err := a.lookup(ctx, m)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	g, err := a.groups.Create(ctx, creatorID, *name, ids)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\t%d members\n", g.ID, g.Name, len(g.Members))
	return nil
}

func (a *app) token(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	user := fs.String("user", "", "user the token identifies")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := a.lookup(ctx, *user)
	if err != nil {
		return err
	}
	token, err := security.NewTokenService(a.cfg.JWTSecret, *ttl).CreateForUser(id)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(a.out, token)
	return nil
}

// lookup resolves a user id or username to an id.
func (a *app) lookup(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", domain.Invalid("a user is required")
	}
	users, err := a.users.List(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.ID == ref || u.Username == ref {
			return u.ID, nil
		}
	}
	return "", fmt.Errorf("user %q: %w", ref, domain.ErrNotFound)
}
