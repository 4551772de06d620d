package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/parishdesk/parishdesk/internal/model"
)

// authedApp builds the app and restores the persisted session; commands that
// act on the current account need a user in memory before calling the manager.
func authedApp(endpoint, dataDir string) (*app, context.Context, context.CancelFunc) {
	a, err := newApp(context.Background(), endpoint, dataDir)
	if err != nil {
		fail(err)
	}
	ctx, cancel := a.withTimeout()
	if err := a.mgr.Restore(ctx); err != nil {
		cancel()
		a.close()
		fail(err)
	}
	if a.mgr.CurrentUser() == nil {
		cancel()
		a.close()
		if msg := a.mgr.LastError(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		} else {
			fmt.Fprintln(os.Stderr, "not logged in")
		}
		os.Exit(1)
	}
	return a, ctx, cancel
}

func cmdUpdateProfile(args []string, endpoint, dataDir string) {
	fs := flag.NewFlagSet("update-profile", flag.ExitOnError)
	first := fs.String("first", "", "new first name")
	last := fs.String("last", "", "new last name")
	photo := fs.String("photo", "", "new photo URL")
	theme := fs.String("theme", "", "preferred theme (light, dark, system)")
	lang := fs.String("lang", "", "preferred language code")
	_ = fs.Parse(args)
	if *first == "" && *last == "" && *photo == "" && *theme == "" && *lang == "" {
		fmt.Fprintln(os.Stderr, "nothing to update")
		os.Exit(1)
	}

	a, ctx, cancel := authedApp(endpoint, dataDir)
	defer a.close()
	defer cancel()

	var upd model.UserUpdate
	if *first != "" {
		upd.FirstName = first
	}
	if *last != "" {
		upd.LastName = last
	}
	if *photo != "" {
		upd.PhotoURL = photo
	}
	if *theme != "" || *lang != "" {
		prefs := a.mgr.CurrentUser().Preferences
		if *theme != "" {
			prefs.Theme = *theme
		}
		if *lang != "" {
			prefs.Language = *lang
		}
		upd.Preferences = &prefs
	}

	u, err := a.mgr.UpdateUser(ctx, upd)
	if err != nil {
		failWith(a.mgr, err)
	}
	printJSON(u)
}

func cmdResetPassword(args []string, endpoint, dataDir string) {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	_ = fs.Parse(args)
	if *email == "" {
		fmt.Fprintln(os.Stderr, "need -email")
		os.Exit(1)
	}

	a, err := newApp(context.Background(), endpoint, dataDir)
	if err != nil {
		fail(err)
	}
	defer a.close()

	ctx, cancel := a.withTimeout()
	defer cancel()

	res, err := a.mgr.ResetPassword(ctx, *email)
	if err != nil {
		failWith(a.mgr, err)
	}
	reportProvider(res)
}

func cmdResendVerification(args []string, endpoint, dataDir string) {
	fs := flag.NewFlagSet("resend-verification", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	_ = fs.Parse(args)
	if *email == "" {
		fmt.Fprintln(os.Stderr, "need -email")
		os.Exit(1)
	}

	a, err := newApp(context.Background(), endpoint, dataDir)
	if err != nil {
		fail(err)
	}
	defer a.close()

	ctx, cancel := a.withTimeout()
	defer cancel()

	res, err := a.mgr.SendVerificationEmail(ctx, *email)
	if err != nil {
		failWith(a.mgr, err)
	}
	reportProvider(res)
}

func cmdMFASetup(args []string, endpoint, dataDir string) {
	_ = args

	a, ctx, cancel := authedApp(endpoint, dataDir)
	defer a.close()
	defer cancel()

	qr, err := a.mgr.SetupMFA(ctx)
	if err != nil {
		failWith(a.mgr, err)
	}
	fmt.Printf("scan: %s\n", qr)
	fmt.Println("then run: pd mfa-verify -code <totp>")
}

func cmdMFAVerify(args []string, endpoint, dataDir string) {
	fs := flag.NewFlagSet("mfa-verify", flag.ExitOnError)
	code := fs.String("code", "", "TOTP code")
	_ = fs.Parse(args)
	if *code == "" {
		fmt.Fprintln(os.Stderr, "need -code")
		os.Exit(1)
	}

	a, ctx, cancel := authedApp(endpoint, dataDir)
	defer a.close()
	defer cancel()

	ok, err := a.mgr.VerifyMFA(ctx, *code)
	if err != nil {
		failWith(a.mgr, err)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "code rejected")
		os.Exit(1)
	}
	fmt.Println("mfa enabled")
}

func cmdMFADisable(args []string, endpoint, dataDir string) {
	_ = args

	a, ctx, cancel := authedApp(endpoint, dataDir)
	defer a.close()
	defer cancel()

	if err := a.mgr.DisableMFA(ctx); err != nil {
		failWith(a.mgr, err)
	}
	fmt.Println("mfa disabled")
}

func reportProvider(res *model.ProviderResult) {
	if res.Message != "" {
		fmt.Println(res.Message)
	} else if res.Success {
		fmt.Println("ok")
	}
	if !res.Success {
		os.Exit(1)
	}
}
