// Command pd is a CLI client for the ParishDesk church-management service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/parishdesk/parishdesk/internal/config"
	"github.com/parishdesk/parishdesk/internal/gateway"
	"github.com/parishdesk/parishdesk/internal/model"
	"github.com/parishdesk/parishdesk/internal/session"
	"github.com/parishdesk/parishdesk/internal/store/sqlite"
)

// ---- app wiring ----

type app struct {
	cfg *config.Config
	log *zap.Logger
	st  *sqlite.Store
	mgr *session.Manager
}

// newApp loads config (CLI overrides win), opens the client store, and wires
// the gateway's global auth header to the persisted token.
func newApp(ctx context.Context, endpoint, dataDir string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	log := newLogger(cfg.LogLevel)

	st, err := sqlite.Open(ctx, cfg.DataDir)
	if err != nil {
		return nil, err
	}

	tokens := func() string {
		tok, _, err := st.AccessToken(context.Background())
		if err != nil {
			return ""
		}
		return tok
	}
	gw := gateway.New(cfg.Endpoint, &http.Client{Timeout: cfg.RequestTimeout}, tokens)

	return &app{cfg: cfg, log: log, st: st, mgr: session.New(gw, st, log)}, nil
}

func (a *app) close() {
	_ = a.st.Close()
	_ = a.log.Sync()
}

func (a *app) withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.cfg.RequestTimeout)
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// failWith prefers the session manager's recorded message over the raw error.
func failWith(mgr *session.Manager, err error) {
	if msg := mgr.LastError(); msg != "" {
		fmt.Fprintln(os.Stderr, msg)
		os.Exit(1)
	}
	fail(err)
}

func usage() {
	fmt.Fprintf(os.Stderr, `pd CLI
Usage:
  pd [-endpoint URL] [-data DIR] <cmd> [args]

Commands:
  version
  register             -email -password -first -last [-branch]
  login                -email -password [-remember] [-branch]
  logout
  whoami
  branch               -id <branch-id>
  can                  -perm <permission> [-branch id]
  update-profile       [-first name] [-last name] [-photo url]
  reset-password       -email
  resend-verification  -email
  mfa-setup
  mfa-verify           -code
  mfa-disable
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands and wires config/storage/session for each.
func main() {
	// global flags
	endpoint := flag.String("endpoint", "", "GraphQL endpoint override")
	dataDir := flag.String("data", "", "data directory override")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	switch cmd {

	case "version":
		fmt.Printf("pd %s (%s)\n", version, buildDate)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		remember := fs.Bool("remember", false, "persist user snapshot")
		branch := fs.String("branch", "", "preferred branch id")
		_ = fs.Parse(args)
		if *email == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "need -email and -password")
			os.Exit(1)
		}

		a, err := newApp(context.Background(), *endpoint, *dataDir)
		if err != nil {
			fail(err)
		}
		defer a.close()

		ctx, cancel := a.withTimeout()
		defer cancel()

		res, err := a.mgr.Login(ctx, model.Credentials{
			Email:      *email,
			Password:   *password,
			RememberMe: *remember || a.cfg.RememberMe,
			BranchID:   *branch,
		})
		if err != nil {
			failWith(a.mgr, err)
		}
		fmt.Printf("ok -> %s\n", res.RedirectTo)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		first := fs.String("first", "", "first name")
		last := fs.String("last", "", "last name")
		branch := fs.String("branch", "", "branch id")
		_ = fs.Parse(args)
		if *email == "" || *password == "" || *first == "" || *last == "" {
			fmt.Fprintln(os.Stderr, "need -email, -password, -first and -last")
			os.Exit(1)
		}

		a, err := newApp(context.Background(), *endpoint, *dataDir)
		if err != nil {
			fail(err)
		}
		defer a.close()

		ctx, cancel := a.withTimeout()
		defer cancel()

		route, err := a.mgr.Register(ctx, model.RegisterInput{
			Email:     *email,
			Password:  *password,
			FirstName: *first,
			LastName:  *last,
			BranchID:  *branch,
		})
		if err != nil {
			failWith(a.mgr, err)
		}
		if route == model.LoginRoute {
			fmt.Printf("registered; log in to continue -> %s\n", route)
		} else {
			fmt.Printf("ok -> %s\n", route)
		}

	case "logout":
		a, err := newApp(context.Background(), *endpoint, *dataDir)
		if err != nil {
			fail(err)
		}
		defer a.close()

		ctx, cancel := a.withTimeout()
		defer cancel()

		// Local teardown is unconditional; a backend failure is only a warning.
		if err := a.mgr.Logout(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: backend logout failed: %v\n", err)
		}
		fmt.Println("ok")

	case "whoami":
		a, err := newApp(context.Background(), *endpoint, *dataDir)
		if err != nil {
			fail(err)
		}
		defer a.close()

		ctx, cancel := a.withTimeout()
		defer cancel()

		if err := a.mgr.Restore(ctx); err != nil {
			fail(err)
		}
		u := a.mgr.CurrentUser()
		if u == nil {
			if msg := a.mgr.LastError(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			} else {
				fmt.Fprintln(os.Stderr, "not logged in")
			}
			os.Exit(1)
		}
		printJSON(u)
		if route, ok := a.mgr.TakeLoginRedirect(ctx); ok {
			fmt.Printf("redirect -> %s\n", route)
		}

	case "branch":
		fs := flag.NewFlagSet("branch", flag.ExitOnError)
		id := fs.String("id", "", "branch id")
		_ = fs.Parse(args)
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}

		a, err := newApp(context.Background(), *endpoint, *dataDir)
		if err != nil {
			fail(err)
		}
		defer a.close()

		ctx, cancel := a.withTimeout()
		defer cancel()

		if err := a.mgr.Restore(ctx); err != nil {
			fail(err)
		}
		if err := a.mgr.SetActiveBranch(*id); err != nil {
			failWith(a.mgr, err)
		}
		fmt.Printf("active branch -> %s\n", *id)

	case "can":
		fs := flag.NewFlagSet("can", flag.ExitOnError)
		perm := fs.String("perm", "", "permission key")
		branch := fs.String("branch", "", "branch id (defaults to primary)")
		_ = fs.Parse(args)
		if *perm == "" {
			fmt.Fprintln(os.Stderr, "need -perm")
			os.Exit(1)
		}

		a, err := newApp(context.Background(), *endpoint, *dataDir)
		if err != nil {
			fail(err)
		}
		defer a.close()

		ctx, cancel := a.withTimeout()
		defer cancel()

		if err := a.mgr.Restore(ctx); err != nil {
			fail(err)
		}
		if *branch != "" {
			if err := a.mgr.SetActiveBranch(*branch); err != nil {
				failWith(a.mgr, err)
			}
		}
		if a.mgr.CheckPermission(*perm) {
			fmt.Println("allowed")
		} else {
			fmt.Println("denied")
			os.Exit(1)
		}

	case "update-profile":
		cmdUpdateProfile(args, *endpoint, *dataDir)
	case "reset-password":
		cmdResetPassword(args, *endpoint, *dataDir)
	case "resend-verification":
		cmdResendVerification(args, *endpoint, *dataDir)
	case "mfa-setup":
		cmdMFASetup(args, *endpoint, *dataDir)
	case "mfa-verify":
		cmdMFAVerify(args, *endpoint, *dataDir)
	case "mfa-disable":
		cmdMFADisable(args, *endpoint, *dataDir)
	default:
		usage()
	}
}
