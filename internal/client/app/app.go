// Package app wires the client components together and exposes the user
// actions of the shell.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/atinyakov/chemora/internal/client/analytics"
	"github.com/atinyakov/chemora/internal/client/api"
	"github.com/atinyakov/chemora/internal/client/navigation"
	"github.com/atinyakov/chemora/internal/client/registry"
	"github.com/atinyakov/chemora/internal/client/session"
	"github.com/atinyakov/chemora/internal/client/upload"
	"github.com/atinyakov/chemora/internal/models"
	"go.uber.org/zap"
)

// ErrNoDataset is returned by actions that need a selected dataset.
var ErrNoDataset = errors.New("no dataset selected")

// App owns one client session and everything derived from it.
type App struct {
	API       *api.Client
	Session   *session.Manager
	Nav       *navigation.Controller
	Registry  *registry.Registry
	Analytics *analytics.Pipeline
	Uploader  *upload.Uploader

	log *zap.Logger
}

// New builds an App talking to client and persisting into store.
func New(client *api.Client, store session.Store, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	sess := session.NewManager(store, client, log.Named("session"))
	reg := registry.New(client, sess.Authorizer, log.Named("registry"))
	a := &App{
		API:       client,
		Session:   sess,
		Nav:       navigation.NewController(sess),
		Registry:  reg,
		Analytics: analytics.NewPipeline(client, log.Named("analytics")),
		Uploader:  upload.NewUploader(client, reg, sess.Authorizer, log.Named("upload")),
		log:       log,
	}

	reg.OnSelect(func(id int64) {
		if id == 0 {
			a.Analytics.Reset()
		}
	})
	sess.Subscribe(func(c session.Change) {
		if c.Reason == session.LoggedOut {
			a.Registry.Clear()
			a.Analytics.Reset()
		}
	})
	return a
}

// Start restores a stored session without contacting the server. The
// shell stays on the home page either way.
func (a *App) Start() session.State {
	if a.Session.LocalPlausibilityCheck() {
		a.log.Info("session restored", zap.String("username", a.Session.State().Username))
	}
	return a.Session.State()
}

// Login authenticates and, on success, enters the dashboard. Dashboard
// requests start only after the session has installed its authorizer.
func (a *App) Login(ctx context.Context, username, password string) session.LoginResult {
	res := a.Session.Login(ctx, models.Credential{Username: username, Password: password})
	if res.Status != session.OK {
		return res
	}
	if err := a.EnterDashboard(ctx); err != nil {
		a.log.Warn("dashboard load failed after login", zap.Error(err))
	}
	return res
}

// Logout ends the session and returns to the home page.
func (a *App) Logout() {
	a.Session.Logout()
}

// Register creates an account. It does not log in.
func (a *App) Register(ctx context.Context, form session.SignupForm) error {
	return a.Session.Register(ctx, form)
}

// Navigate moves to target. Landing on the dashboard refreshes it.
func (a *App) Navigate(ctx context.Context, target navigation.Page) (navigation.Page, error) {
	page := a.Nav.Navigate(target)
	if page == navigation.Dashboard {
		return page, a.EnterDashboard(ctx)
	}
	return page, nil
}

// EnterDashboard refreshes the dataset list, applies the default selection
// and loads analytics for the active dataset.
func (a *App) EnterDashboard(ctx context.Context) error {
	if err := a.Registry.Refresh(ctx); err != nil {
		return err
	}
	return a.loadActive(ctx, false)
}

// Refresh reloads the dataset list and the analytics of the active dataset
// unless they are already loaded.
func (a *App) Refresh(ctx context.Context) error {
	return a.EnterDashboard(ctx)
}

// Select activates dataset id and loads its analytics. Unknown ids leave
// the selection unchanged.
func (a *App) Select(ctx context.Context, id int64) error {
	a.Registry.Select(id)
	if a.Registry.Selected() != id {
		return fmt.Errorf("dataset %d not found", id)
	}
	return a.loadActive(ctx, false)
}

// Reload fetches the analytics of the active dataset again.
func (a *App) Reload(ctx context.Context) error {
	return a.loadActive(ctx, true)
}

func (a *App) loadActive(ctx context.Context, force bool) error {
	active, ok := a.Registry.Active()
	if !ok {
		a.Analytics.Reset()
		return nil
	}
	if !force && !a.Analytics.Loading() {
		if v := a.Analytics.View(); v.DatasetID == active.ID && v.Ready {
			return nil
		}
	}
	err := a.Analytics.Load(ctx, active.ID, a.Session.Authorizer())
	if errors.Is(err, analytics.ErrSuperseded) {
		return nil
	}
	return err
}

// Upload sends the file at path. declaredType is the content type the
// caller reports for it; empty means derive it from the extension.
func (a *App) Upload(ctx context.Context, path, declaredType string) (upload.Result, error) {
	f, err := upload.FromPath(path, declaredType)
	if err != nil {
		return upload.Result{}, err
	}
	res, err := a.Uploader.Upload(ctx, f)
	if err != nil {
		return res, err
	}
	if err := a.loadActive(ctx, false); err != nil {
		a.log.Warn("analytics load after upload failed", zap.Error(err))
	}
	return res, nil
}

var whitespace = regexp.MustCompile(`\s+`)

// ReportFilename is the local name of the report of a dataset.
func ReportFilename(datasetName string) string {
	return whitespace.ReplaceAllString(datasetName, "_") + "_Report.pdf"
}

// DownloadReport saves the report of dataset id into dir and returns its
// path. The id must be in the cached list.
func (a *App) DownloadReport(ctx context.Context, id int64, dir string) (path string, err error) {
	ds, ok := a.Registry.Find(id)
	if !ok {
		return "", ErrNoDataset
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path = filepath.Join(dir, ReportFilename(ds.Name))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	n, err := a.API.Report(ctx, a.Session.Authorizer(), id, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	a.log.Info("report saved", zap.String("path", path), zap.Int64("bytes", n))
	return path, nil
}
